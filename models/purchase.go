package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConsumerPurchase is the authoritative per-buyer record: cumulative quantity
// withdrawn from one lot by one address, plus the buyer's acknowledgement
// flag. Unlike the lot's single consumer slot, this supports many buyers per
// lot.
type ConsumerPurchase struct {
	ID           int       `gorm:"primary_key" json:"id"`
	ProductId    int       `gorm:"not null;uniqueIndex:idx_product_consumer,priority:1" json:"product_id"`
	Address      string    `gorm:"size:128;not null;uniqueIndex:idx_product_consumer,priority:2" json:"address"`
	Quantity     int64     `gorm:"not null" json:"quantity"`
	Acknowledged bool      `gorm:"not null" json:"acknowledged"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// recordConsumerPurchase adds quantity to the buyer's cumulative row for the
// lot, inside the caller's transaction. Shared by all three withdrawal paths.
func recordConsumerPurchase(tx *gorm.DB, productId int, address string, quantity int64) error {
	var existing ConsumerPurchase
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND address = ?", productId, address).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return tx.Create(&ConsumerPurchase{
			ProductId: productId,
			Address:   address,
			Quantity:  quantity,
		}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&ConsumerPurchase{}).Where("id = ?", existing.ID).
		Update("quantity", gorm.Expr("quantity + ?", quantity)).Error
}

// PurchaseFromSurplus lets any caller buy ad-hoc from a lot that is in store,
// independent of any quotation.
func PurchaseFromSurplus(ctx context.Context, productId int, quantity int64) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, NewValidationError("quantity must be greater than zero")
	}

	// Best-effort queueing of concurrent surplus buyers. Correctness comes
	// from the advisory lock and FOR UPDATE inside withProductTx.
	if locker := config.GetRedisLock(); locker != nil {
		if lock, lerr := locker.Obtain(ctx, fmt.Sprintf("surplus:%d", productId), 5*time.Second, nil); lerr == nil {
			defer func() { _ = lock.Release(ctx) }()
		}
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if serr := requireProductStatus(product, ProductStatusAvailableForSale); serr != nil {
			return serr
		}
		if werr := applyWithdrawal(product, quantity, caller); werr != nil {
			return werr
		}
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		if perr := recordConsumerPurchase(tx, product.ID, caller, quantity); perr != nil {
			return perr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductSoldToConsumer, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
			"consumer":   caller,
			"quantity":   quantity,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AcknowledgePurchase sets the caller's acknowledgement flag on their
// cumulative purchase of the lot. Re-acknowledging is a no-op, not an error.
func AcknowledgePurchase(ctx context.Context, productId int) (*ConsumerPurchase, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var result ConsumerPurchase
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchase ConsumerPurchase
		ferr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND address = ?", productId, caller).
			First(&purchase).Error
		if ferr == gorm.ErrRecordNotFound {
			return NewAuthorizationError("You have not purchased this product")
		}
		if ferr != nil {
			return ferr
		}
		if purchase.Quantity <= 0 {
			return NewAuthorizationError("You have not purchased this product")
		}
		if purchase.Acknowledged {
			result = purchase
			return nil
		}

		purchase.Acknowledged = true
		if uerr := tx.Model(&ConsumerPurchase{}).Where("id = ?", purchase.ID).
			Update("acknowledged", true).Error; uerr != nil {
			return uerr
		}
		result = purchase
		return appendEvent(tx, ctx, EventTypePurchaseAcknowledged, productId, 0, caller, map[string]interface{}{
			"product_id": productId,
			"consumer":   caller,
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

/* Reads */

// GetConsumerPurchaseQuantity returns the cumulative quantity the address has
// withdrawn from the lot (0 when it never bought).
func GetConsumerPurchaseQuantity(ctx context.Context, productId int, address string) (int64, error) {
	db := config.GetDB()
	var quantity int64
	err := db.WithContext(ctx).Model(&ConsumerPurchase{}).
		Where("product_id = ? AND address = ?", productId, address).
		Select("quantity").
		Scan(&quantity).Error
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

func IsPurchaseAcknowledged(ctx context.Context, productId int, address string) (bool, error) {
	db := config.GetDB()
	var acknowledged bool
	err := db.WithContext(ctx).Model(&ConsumerPurchase{}).
		Where("product_id = ? AND address = ?", productId, address).
		Select("acknowledged").
		Scan(&acknowledged).Error
	if err != nil {
		return false, err
	}
	return acknowledged, nil
}
