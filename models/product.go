package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Product is one lot of a given quantity moving through the custody chain.
// TotalQuantity is fixed at creation; AvailableQuantity only ever decreases.
// Consumer is the legacy last-buyer slot (last writer wins); the authoritative
// per-buyer record is ConsumerPurchase.
type Product struct {
	ID                int           `gorm:"primary_key" json:"id"`
	Name              string        `gorm:"size:255;not null;index" json:"name"`
	Description       string        `gorm:"type:text;not null" json:"description"`
	TotalQuantity     int64         `gorm:"not null" json:"total_quantity"`
	AvailableQuantity int64         `gorm:"not null" json:"available_quantity"`
	Status            ProductStatus `gorm:"size:30;not null;index" json:"status"`
	Producer          string        `gorm:"size:128;not null;index" json:"producer"`
	Supplier          string        `gorm:"size:128;index" json:"supplier"`
	Retailer          string        `gorm:"size:128;index" json:"retailer"`
	Consumer          string        `gorm:"size:128" json:"consumer"`
	ShippingInfo      string        `gorm:"type:text" json:"shipping_info"`
	IsFromQuotation   bool          `gorm:"not null" json:"is_from_quotation"`
	Version           int64         `gorm:"not null;default:0" json:"version"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required"`
}

func (input *NewProduct) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return NewValidationError("product name must not be empty")
	}
	if strings.TrimSpace(input.Description) == "" {
		return NewValidationError("product description must not be empty")
	}
	if input.Quantity <= 0 {
		return NewValidationError("quantity must be greater than zero")
	}
	return nil
}

// requireProductStatus is the single lifecycle guard: the operation's required
// "from" state must match the product's current state exactly.
func requireProductStatus(product *Product, want ProductStatus) error {
	if product.Status != want {
		return NewStateError("product must be in " + string(want) + " state")
	}
	return nil
}

// applyWithdrawal is the inventory arithmetic shared by sale, quotation
// fulfillment and surplus purchase. It never lets AvailableQuantity go
// negative and flips the terminal status at exactly zero.
func applyWithdrawal(product *Product, quantity int64, buyer string) error {
	if quantity <= 0 {
		return NewValidationError("quantity must be greater than zero")
	}
	if quantity > product.AvailableQuantity {
		return NewConsistencyError("Insufficient available quantity")
	}
	product.AvailableQuantity -= quantity
	product.Consumer = buyer
	if product.AvailableQuantity == 0 {
		product.Status = ProductStatusSoldToConsumer
	}
	return nil
}

// fetchProductForUpdate loads the row under FOR UPDATE so guards and writes
// see the same committed state.
func fetchProductForUpdate(tx *gorm.DB, productId int) (*Product, error) {
	var product Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, productId).Error
	if err == gorm.ErrRecordNotFound {
		return nil, NewNotFoundError("Product does not exist")
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func saveProduct(tx *gorm.DB, product *Product) error {
	product.Version++
	return tx.Model(&Product{}).Where("id = ?", product.ID).Updates(map[string]interface{}{
		"name":               product.Name,
		"description":        product.Description,
		"available_quantity": product.AvailableQuantity,
		"status":             product.Status,
		"supplier":           product.Supplier,
		"retailer":           product.Retailer,
		"consumer":           product.Consumer,
		"shipping_info":      product.ShippingInfo,
		"version":            product.Version,
	}).Error
}

// withProductTx runs fn inside one transaction holding both the per-product
// advisory lock and the FOR UPDATE row lock. Either fn commits in full or
// nothing is applied.
func withProductTx(ctx context.Context, productId int, fn func(tx *gorm.DB, product *Product) error) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireProductPostingLock(tx, productId); err != nil {
			return err
		}
		defer ReleaseProductPostingLock(tx, productId)

		product, err := fetchProductForUpdate(tx, productId)
		if err != nil {
			return err
		}
		return fn(tx, product)
	})
}

// CreateProduct registers a new lot owned by the calling producer.
func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	caller, err := requireProducer(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	product := Product{
		Name:              strings.TrimSpace(input.Name),
		Description:       input.Description,
		TotalQuantity:     input.Quantity,
		AvailableQuantity: input.Quantity,
		Status:            ProductStatusCreated,
		Producer:          caller,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cerr := tx.Create(&product).Error; cerr != nil {
			return cerr
		}
		return appendEvent(tx, ctx, EventTypeProductCreated, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
			"name":       product.Name,
			"producer":   caller,
		})
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SendToSupplier hands the lot from its producer to a supplier.
func SendToSupplier(ctx context.Context, productId int, supplierAddr string) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	supplierAddr = strings.TrimSpace(supplierAddr)
	if supplierAddr == "" {
		return nil, NewValidationError("supplier address must not be empty")
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Producer != caller {
			return NewAuthorizationError("You are not the producer of this product")
		}
		if serr := requireProductStatus(product, ProductStatusCreated); serr != nil {
			return serr
		}

		product.Supplier = supplierAddr
		product.Status = ProductStatusSentToSupplier
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductSentToSupplier, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
			"supplier":   supplierAddr,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReceiveProduct is the assigned supplier confirming custody.
func ReceiveProduct(ctx context.Context, productId int) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Supplier != caller {
			return NewAuthorizationError("You are not the supplier of this product")
		}
		if serr := requireProductStatus(product, ProductStatusSentToSupplier); serr != nil {
			return serr
		}

		product.Status = ProductStatusReceivedBySupplier
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductReceivedBySupplier, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateShippingInfo annotates the lot while the supplier holds it. No state
// change.
func UpdateShippingInfo(ctx context.Context, productId int, shippingInfo string) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Supplier != caller {
			return NewAuthorizationError("You are not the supplier of this product")
		}
		if serr := requireProductStatus(product, ProductStatusReceivedBySupplier); serr != nil {
			return serr
		}

		product.ShippingInfo = shippingInfo
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeShippingInfoUpdated, product.ID, 0, caller, map[string]interface{}{
			"product_id":    product.ID,
			"shipping_info": shippingInfo,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendToRetailer hands the lot from its supplier to a retailer.
func SendToRetailer(ctx context.Context, productId int, retailerAddr string) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	retailerAddr = strings.TrimSpace(retailerAddr)
	if retailerAddr == "" {
		return nil, NewValidationError("retailer address must not be empty")
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Supplier != caller {
			return NewAuthorizationError("You are not the supplier of this product")
		}
		if serr := requireProductStatus(product, ProductStatusReceivedBySupplier); serr != nil {
			return serr
		}

		product.Retailer = retailerAddr
		product.Status = ProductStatusSentToRetailer
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductSentToRetailer, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
			"retailer":   retailerAddr,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReceiveProductFromSupplier is the assigned retailer confirming custody.
func ReceiveProductFromSupplier(ctx context.Context, productId int) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Retailer != caller {
			return NewAuthorizationError("You are not the retailer of this product")
		}
		if serr := requireProductStatus(product, ProductStatusSentToRetailer); serr != nil {
			return serr
		}

		product.Status = ProductStatusReceivedByRetailer
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductReceivedByRetailer, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddToStore puts a received lot up for sale.
func AddToStore(ctx context.Context, productId int) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Retailer != caller {
			return NewAuthorizationError("You are not the retailer of this product")
		}
		if serr := requireProductStatus(product, ProductStatusReceivedByRetailer); serr != nil {
			return serr
		}

		product.Status = ProductStatusAvailableForSale
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductAddedToStore, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SellToConsumer withdraws quantity for a buyer, on behalf of the retailer.
// quantity == 0 means "all remaining" (the legacy no-quantity overload). The
// lot stays AvailableForSale while quantity remains, so partial sales can
// continue.
func SellToConsumer(ctx context.Context, productId int, consumerAddr string, quantity int64) (*Product, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	consumerAddr = strings.TrimSpace(consumerAddr)
	if consumerAddr == "" {
		return nil, NewValidationError("consumer address must not be empty")
	}
	if quantity < 0 {
		return nil, NewValidationError("quantity must not be negative")
	}

	var result *Product
	err = withProductTx(ctx, productId, func(tx *gorm.DB, product *Product) error {
		if product.Retailer != caller {
			return NewAuthorizationError("You are not the retailer of this product")
		}
		if serr := requireProductStatus(product, ProductStatusAvailableForSale); serr != nil {
			return serr
		}

		qty := quantity
		if qty == 0 {
			qty = product.AvailableQuantity
		}
		if serr := applyWithdrawal(product, qty, consumerAddr); serr != nil {
			return serr
		}
		if serr := saveProduct(tx, product); serr != nil {
			return serr
		}
		if serr := recordConsumerPurchase(tx, product.ID, consumerAddr, qty); serr != nil {
			return serr
		}
		result = product
		return appendEvent(tx, ctx, EventTypeProductSoldToConsumer, product.ID, 0, caller, map[string]interface{}{
			"product_id": product.ID,
			"consumer":   consumerAddr,
			"quantity":   qty,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

/* Reads */

// GetProduct returns the record, or the zero record for an unknown id (callers
// check the id field for existence; 0 is the "does not exist" sentinel).
func GetProduct(ctx context.Context, productId int) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).First(&product, productId).Error
	if err == gorm.ErrRecordNotFound {
		return &Product{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductExtended adds the quotation linkage to the base record.
type ProductExtended struct {
	Product
	QuotationIds []int `json:"quotation_ids"`
}

func GetProductExtended(ctx context.Context, productId int) (*ProductExtended, error) {
	product, err := GetProduct(ctx, productId)
	if err != nil {
		return nil, err
	}
	result := ProductExtended{Product: *product}
	if product.ID == 0 {
		return &result, nil
	}

	// Quotation linkage is fixed at approval time, so a version-keyed cache
	// entry never goes stale.
	cacheKey := fmt.Sprintf("product-extended:%d:v%d", product.ID, product.Version)
	var cached ProductExtended
	if hit, cerr := config.GetRedisObject(cacheKey, &cached); cerr == nil && hit {
		return &cached, nil
	}

	ids, err := GetProductQuotations(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	result.QuotationIds = ids
	_ = config.SetRedisObject(cacheKey, result, time.Minute)
	return &result, nil
}

func ProductCount(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// RetailerStoreProducts holds parallel lists for the retailer store view.
type RetailerStoreProducts struct {
	Ids                 []int    `json:"ids"`
	Names               []string `json:"names"`
	Descriptions        []string `json:"descriptions"`
	TotalQuantities     []int64  `json:"total_quantities"`
	AvailableQuantities []int64  `json:"available_quantities"`
}

// GetRetailerStoreProducts lists every lot the retailer has put in store,
// including sold-out ones.
func GetRetailerStoreProducts(ctx context.Context, retailerAddr string) (*RetailerStoreProducts, error) {
	db := config.GetDB()
	var products []*Product
	err := db.WithContext(ctx).
		Where("retailer = ? AND status IN ?", retailerAddr,
			[]ProductStatus{ProductStatusAvailableForSale, ProductStatusSoldToConsumer}).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	result := &RetailerStoreProducts{}
	for _, p := range products {
		result.Ids = append(result.Ids, p.ID)
		result.Names = append(result.Names, p.Name)
		result.Descriptions = append(result.Descriptions, p.Description)
		result.TotalQuantities = append(result.TotalQuantities, p.TotalQuantity)
		result.AvailableQuantities = append(result.AvailableQuantities, p.AvailableQuantity)
	}
	return result, nil
}

// AvailableProductsByName holds parallel lists of purchasable lots.
type AvailableProductsByName struct {
	Ids                 []int   `json:"ids"`
	AvailableQuantities []int64 `json:"available_quantities"`
}

// GetAvailableProductsByName lists every for-sale lot whose name matches
// exactly and which still has quantity left.
func GetAvailableProductsByName(ctx context.Context, name string) (*AvailableProductsByName, error) {
	db := config.GetDB()
	var products []*Product
	err := db.WithContext(ctx).
		Where("name = ? AND status = ? AND available_quantity > 0", name, ProductStatusAvailableForSale).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	result := &AvailableProductsByName{}
	for _, p := range products {
		result.Ids = append(result.Ids, p.ID)
		result.AvailableQuantities = append(result.AvailableQuantities, p.AvailableQuantity)
	}
	return result, nil
}
