// ledger-verify audits the ledger invariants without modifying any data.
// It is meant to be run against a live database after incidents or
// migrations. Exit code 0 means every check passed; 3 means violations
// were found (each printed to stderr).
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/ledger-verify
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/models"
)

type violation struct {
	ProductId int
	Detail    string
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var violations []violation

	var products []models.Product
	if err := db.WithContext(ctx).Model(&models.Product{}).Order("id ASC").Find(&products).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to load products: %v\n", err)
		os.Exit(1)
	}

	for _, p := range products {
		if p.AvailableQuantity < 0 {
			violations = append(violations, violation{p.ID, fmt.Sprintf("available quantity is negative (%d)", p.AvailableQuantity)})
		}
		if p.AvailableQuantity > p.TotalQuantity {
			violations = append(violations, violation{p.ID, fmt.Sprintf("available quantity %d exceeds total %d", p.AvailableQuantity, p.TotalQuantity)})
		}

		// Every withdrawal path records a consumer purchase row, so the
		// purchase rows must account exactly for the withdrawn quantity.
		var withdrawn int64
		err := db.WithContext(ctx).Model(&models.ConsumerPurchase{}).
			Where("product_id = ?", p.ID).
			Select("COALESCE(SUM(quantity), 0)").Scan(&withdrawn).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to sum purchases for product %d: %v\n", p.ID, err)
			os.Exit(1)
		}
		if p.TotalQuantity-withdrawn != p.AvailableQuantity {
			violations = append(violations, violation{p.ID, fmt.Sprintf(
				"quantity mismatch: total=%d withdrawn=%d available=%d", p.TotalQuantity, withdrawn, p.AvailableQuantity)})
		}

		if p.Status == models.ProductStatusSoldToConsumer && p.AvailableQuantity != 0 {
			violations = append(violations, violation{p.ID, fmt.Sprintf(
				"status is %s but available quantity is %d", models.ProductStatusSoldToConsumer, p.AvailableQuantity)})
		}
		if p.AvailableQuantity == 0 && withdrawn > 0 && p.Status != models.ProductStatusSoldToConsumer {
			violations = append(violations, violation{p.ID, fmt.Sprintf(
				"available quantity is zero but status is %s", p.Status)})
		}
	}

	var quotations []models.Quotation
	if err := db.WithContext(ctx).Model(&models.Quotation{}).Order("id ASC").Find(&quotations).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to load quotations: %v\n", err)
		os.Exit(1)
	}
	productById := make(map[int]*models.Product, len(products))
	for i := range products {
		productById[products[i].ID] = &products[i]
	}
	for _, q := range quotations {
		switch q.Status {
		case models.QuotationStatusApproved, models.QuotationStatusFulfilled:
			p, ok := productById[q.ProductId]
			if !ok {
				violations = append(violations, violation{q.ProductId, fmt.Sprintf(
					"quotation %d is %s but its product %d does not exist", q.ID, q.Status, q.ProductId)})
				continue
			}
			if !p.IsFromQuotation {
				violations = append(violations, violation{p.ID, fmt.Sprintf(
					"quotation %d links to product %d which is not quotation-originated", q.ID, p.ID)})
			}
			if p.Name != q.ProductName {
				violations = append(violations, violation{p.ID, fmt.Sprintf(
					"quotation %d product name %q does not match product name %q", q.ID, q.ProductName, p.Name)})
			}
		default:
			if q.ProductId != 0 {
				violations = append(violations, violation{q.ProductId, fmt.Sprintf(
					"quotation %d is %s but has product link %d", q.ID, q.Status, q.ProductId)})
			}
		}
		if q.Status == models.QuotationStatusFulfilled {
			var purchased int64
			err := db.WithContext(ctx).Model(&models.ConsumerPurchase{}).
				Where("product_id = ? AND address = ?", q.ProductId, q.Requester).
				Select("COALESCE(SUM(quantity), 0)").Scan(&purchased).Error
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to check fulfillment of quotation %d: %v\n", q.ID, err)
				os.Exit(1)
			}
			if purchased < q.Quantity {
				violations = append(violations, violation{q.ProductId, fmt.Sprintf(
					"quotation %d fulfilled for %d units but requester %q purchases total %d", q.ID, q.Quantity, q.Requester, purchased)})
			}
		}
	}

	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "VIOLATION product=%d: %s\n", v.ProductId, v.Detail)
		}
		fmt.Fprintf(os.Stderr, "%d violation(s) found across %d products, %d quotations\n", len(violations), len(products), len(quotations))
		os.Exit(3)
	}
	fmt.Printf("OK: %d products, %d quotations verified\n", len(products), len(quotations))
}
