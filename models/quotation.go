package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Quotation is a buyer-initiated request for a named product and quantity.
// ProductId stays 0 until approval links it to the lot created for it, and
// never changes afterwards.
type Quotation struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Requester   string          `gorm:"size:128;not null;index" json:"requester"`
	ProductName string          `gorm:"size:255;not null;index" json:"product_name"`
	Description string          `gorm:"type:text" json:"description"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Status      QuotationStatus `gorm:"size:20;not null;index" json:"status"`
	ProductId   int             `gorm:"not null;default:0;index" json:"product_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewQuotation struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity" binding:"required"`
}

// CreateQuotation records a Pending request owned by the caller. Any caller
// may act as a consumer here.
func CreateQuotation(ctx context.Context, input *NewQuotation) (*Quotation, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("product name must not be empty")
	}
	if input.Quantity <= 0 {
		return nil, NewValidationError("quantity must be greater than zero")
	}

	quotation := Quotation{
		Requester:   caller,
		ProductName: strings.TrimSpace(input.Name),
		Description: input.Description,
		Quantity:    input.Quantity,
		Status:      QuotationStatusPending,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cerr := tx.Create(&quotation).Error; cerr != nil {
			return cerr
		}
		return appendEvent(tx, ctx, EventTypeQuotationCreated, 0, quotation.ID, caller, map[string]interface{}{
			"quotation_id": quotation.ID,
			"consumer":     caller,
			"name":         quotation.ProductName,
			"quantity":     quotation.Quantity,
		})
	})
	if err != nil {
		return nil, err
	}
	return &quotation, nil
}

// validateApprovalBatch checks every quotation is Pending, every quotation is
// for the same product name, and totalQuantity covers the sum requested.
// Returns the shared name and the sum.
func validateApprovalBatch(quotations []*Quotation, totalQuantity int64) (string, int64, error) {
	sharedName := ""
	var sum int64
	for _, q := range quotations {
		if q.Status != QuotationStatusPending {
			return "", 0, NewStateError("Quotation must be pending")
		}
		if sharedName == "" {
			sharedName = q.ProductName
		} else if q.ProductName != sharedName {
			return "", 0, NewConsistencyError("All quotations must be for the same product")
		}
		sum += q.Quantity
	}
	if totalQuantity < sum {
		return "", 0, NewConsistencyError("Total quantity is below the sum of requested quantities")
	}
	return sharedName, sum, nil
}

// fetchQuotationsForUpdate loads the listed quotations under FOR UPDATE,
// preserving the caller's list order. Every id must exist.
func fetchQuotationsForUpdate(tx *gorm.DB, ids []int) ([]*Quotation, error) {
	var rows []*Quotation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byId := make(map[int]*Quotation, len(rows))
	for _, q := range rows {
		byId[q.ID] = q
	}
	ordered := make([]*Quotation, 0, len(ids))
	for _, id := range ids {
		q, ok := byId[id]
		if !ok {
			return nil, NewNotFoundError("Quotation does not exist")
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

// ApproveQuotations converts one or more compatible Pending quotations into a
// single new lot in one atomic step. The new lot's description comes from the
// first quotation in the list.
func ApproveQuotations(ctx context.Context, ids []int, totalQuantity int64) (*Product, error) {
	caller, err := requireProducer(ctx)
	if err != nil {
		return nil, err
	}
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return nil, NewValidationError("quotation id list must not be empty")
	}
	if totalQuantity <= 0 {
		return nil, NewValidationError("total quantity must be greater than zero")
	}

	var product Product
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if lerr := AcquireQuotationPostingLock(tx); lerr != nil {
			return lerr
		}
		defer ReleaseQuotationPostingLock(tx)

		quotations, ferr := fetchQuotationsForUpdate(tx, ids)
		if ferr != nil {
			return ferr
		}
		sharedName, _, verr := validateApprovalBatch(quotations, totalQuantity)
		if verr != nil {
			return verr
		}

		product = Product{
			Name:              sharedName,
			Description:       quotations[0].Description,
			TotalQuantity:     totalQuantity,
			AvailableQuantity: totalQuantity,
			Status:            ProductStatusCreated,
			Producer:          caller,
			IsFromQuotation:   true,
		}
		if cerr := tx.Create(&product).Error; cerr != nil {
			return cerr
		}
		if eerr := appendEvent(tx, ctx, EventTypeProductCreated, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
			"name":       product.Name,
			"producer":   caller,
		}); eerr != nil {
			return eerr
		}

		for _, q := range quotations {
			if uerr := tx.Model(&Quotation{}).Where("id = ?", q.ID).Updates(map[string]interface{}{
				"status":     QuotationStatusApproved,
				"product_id": product.ID,
			}).Error; uerr != nil {
				return uerr
			}
		}

		if len(ids) == 1 {
			return appendEvent(tx, ctx, EventTypeQuotationApproved, product.ID, ids[0], caller, map[string]interface{}{
				"quotation_id": ids[0],
				"product_id":   product.ID,
				"producer":     caller,
			})
		}
		return appendEvent(tx, ctx, EventTypeQuotationsBatchApproved, product.ID, 0, caller, map[string]interface{}{
			"quotation_ids": ids,
			"product_id":    product.ID,
			"producer":      caller,
		})
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// RejectQuotation turns a Pending quotation down.
func RejectQuotation(ctx context.Context, quotationId int) (*Quotation, error) {
	caller, err := requireProducer(ctx)
	if err != nil {
		return nil, err
	}

	var result Quotation
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quotation Quotation
		ferr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&quotation, quotationId).Error
		if ferr == gorm.ErrRecordNotFound {
			return NewNotFoundError("Quotation does not exist")
		}
		if ferr != nil {
			return ferr
		}
		if quotation.Status != QuotationStatusPending {
			return NewStateError("Quotation must be pending")
		}

		quotation.Status = QuotationStatusRejected
		if uerr := tx.Model(&Quotation{}).Where("id = ?", quotation.ID).
			Update("status", QuotationStatusRejected).Error; uerr != nil {
			return uerr
		}
		result = quotation
		return appendEvent(tx, ctx, EventTypeQuotationRejected, 0, quotation.ID, caller, map[string]interface{}{
			"quotation_id": quotation.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FulfillQuotations withdraws inventory from the lot for each listed Approved
// quotation, in list order, marking each Fulfilled. The caller must be the
// lot's retailer and the lot must be in store.
func FulfillQuotations(ctx context.Context, productId int, ids []int) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return nil, NewValidationError("quotation id list must not be empty")
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Retailer != caller {
			return NewAuthorizationError("You are not the retailer of this product")
		}
		if serr := requireProductStatus(product, ProductStatusAvailableForSale); serr != nil {
			return serr
		}

		quotations, ferr := fetchQuotationsForUpdate(tx, ids)
		if ferr != nil {
			return ferr
		}
		for _, q := range quotations {
			if q.Status != QuotationStatusApproved {
				return NewConsistencyError("Quotation must be approved")
			}
			if q.ProductId != product.ID {
				return NewConsistencyError("Quotation not linked to this product")
			}
		}

		for _, q := range quotations {
			if werr := applyWithdrawal(product, q.Quantity, q.Requester); werr != nil {
				return werr
			}
			if uerr := tx.Model(&Quotation{}).Where("id = ?", q.ID).
				Update("status", QuotationStatusFulfilled).Error; uerr != nil {
				return uerr
			}
			if perr := recordConsumerPurchase(tx, product.ID, q.Requester, q.Quantity); perr != nil {
				return perr
			}
			if eerr := appendEvent(tx, ctx, EventTypeQuotationFulfilled, product.ID, q.ID, caller, map[string]interface{}{
				"quotation_id": q.ID,
				"product_id":   product.ID,
				"consumer":     q.Requester,
			}); eerr != nil {
				return eerr
			}
		}

		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

/* Reads */

// GetQuotation returns the record, or the zero record for an unknown id (same
// sentinel convention as GetProduct).
func GetQuotation(ctx context.Context, quotationId int) (*Quotation, error) {
	db := config.GetDB()
	var quotation Quotation
	err := db.WithContext(ctx).First(&quotation, quotationId).Error
	if err == gorm.ErrRecordNotFound {
		return &Quotation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &quotation, nil
}

// GetConsumerQuotations lists the ids of every quotation the address created,
// in insertion order.
func GetConsumerQuotations(ctx context.Context, address string) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Quotation{}).
		Where("requester = ?", address).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetPendingQuotations lists every currently Pending quotation id, in creation
// order.
func GetPendingQuotations(ctx context.Context) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Quotation{}).
		Where("status = ?", QuotationStatusPending).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetProductQuotations lists every quotation id ever linked to the product,
// in insertion order.
func GetProductQuotations(ctx context.Context, productId int) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Quotation{}).
		Where("product_id = ?", productId).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
