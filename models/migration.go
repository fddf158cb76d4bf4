package models

import (
	"log"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&RoleMember{},
		&Product{},
		&Quotation{},
		&ConsumerPurchase{},
		&LedgerEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
