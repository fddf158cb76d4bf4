package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireProductPostingLock serializes mutations per product across instances
// using MySQL advisory locks. GET_LOCK is connection-scoped, so this must be
// called on the same *gorm.DB (transaction) that will do the mutation.
func AcquireProductPostingLock(tx *gorm.DB, productId int) error {
	lockName := fmt.Sprintf("product:%d", productId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for product_id=%d", productId)
	}
	return nil
}

func ReleaseProductPostingLock(tx *gorm.DB, productId int) {
	lockName := fmt.Sprintf("product:%d", productId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// AcquireQuotationPostingLock serializes batch approval, which creates a
// product and mutates several quotations in one step.
func AcquireQuotationPostingLock(tx *gorm.DB) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", "quotation-posting").Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire quotation posting lock")
	}
	return nil
}

func ReleaseQuotationPostingLock(tx *gorm.DB) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", "quotation-posting").Scan(&_ok).Error
}

// AcquireOwnerPostingLock serializes owner bootstrap. The empty-set check and
// the seed insert hit no unique index together, so without this two bootstraps
// with different addresses could both see zero owners.
func AcquireOwnerPostingLock(tx *gorm.DB) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", "owner-posting").Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire owner posting lock")
	}
	return nil
}

func ReleaseOwnerPostingLock(tx *gorm.DB) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", "owner-posting").Scan(&_ok).Error
}
