package models

import "errors"

type ProductStatus string

const (
	ProductStatusCreated            ProductStatus = "Created"
	ProductStatusSentToSupplier     ProductStatus = "SentToSupplier"
	ProductStatusReceivedBySupplier ProductStatus = "ReceivedBySupplier"
	ProductStatusSentToRetailer     ProductStatus = "SentToRetailer"
	ProductStatusReceivedByRetailer ProductStatus = "ReceivedByRetailer"
	ProductStatusAvailableForSale   ProductStatus = "AvailableForSale"
	ProductStatusSoldToConsumer     ProductStatus = "SoldToConsumer"
)

// convert input to enum type
func (t *ProductStatus) Parse(str string) error {
	switch str {
	case "Created":
		*t = ProductStatusCreated
	case "SentToSupplier":
		*t = ProductStatusSentToSupplier
	case "ReceivedBySupplier":
		*t = ProductStatusReceivedBySupplier
	case "SentToRetailer":
		*t = ProductStatusSentToRetailer
	case "ReceivedByRetailer":
		*t = ProductStatusReceivedByRetailer
	case "AvailableForSale":
		*t = ProductStatusAvailableForSale
	case "SoldToConsumer":
		*t = ProductStatusSoldToConsumer
	default:
		return errors.New("invalid product status")
	}
	return nil
}

type QuotationStatus string

const (
	QuotationStatusPending   QuotationStatus = "Pending"
	QuotationStatusApproved  QuotationStatus = "Approved"
	QuotationStatusRejected  QuotationStatus = "Rejected"
	QuotationStatusFulfilled QuotationStatus = "Fulfilled"
)

func (t *QuotationStatus) Parse(str string) error {
	switch str {
	case "Pending":
		*t = QuotationStatusPending
	case "Approved":
		*t = QuotationStatusApproved
	case "Rejected":
		*t = QuotationStatusRejected
	case "Fulfilled":
		*t = QuotationStatusFulfilled
	default:
		return errors.New("invalid quotation status")
	}
	return nil
}

type LedgerRole string

const (
	LedgerRoleOwner    LedgerRole = "Owner"
	LedgerRoleProducer LedgerRole = "Producer"
	LedgerRoleSupplier LedgerRole = "Supplier"
	LedgerRoleRetailer LedgerRole = "Retailer"
	LedgerRoleConsumer LedgerRole = "Consumer"
)

func (t *LedgerRole) Parse(str string) error {
	switch str {
	case "Owner":
		*t = LedgerRoleOwner
	case "Producer":
		*t = LedgerRoleProducer
	case "Supplier":
		*t = LedgerRoleSupplier
	case "Retailer":
		*t = LedgerRoleRetailer
	case "Consumer":
		*t = LedgerRoleConsumer
	default:
		return errors.New("invalid ledger role")
	}
	return nil
}

type EventType string

const (
	EventTypeOwnerAdded                EventType = "OwnerAdded"
	EventTypeOwnerRemoved              EventType = "OwnerRemoved"
	EventTypeProducerRegistered        EventType = "ProducerRegistered"
	EventTypeSupplierRegistered        EventType = "SupplierRegistered"
	EventTypeRetailerRegistered        EventType = "RetailerRegistered"
	EventTypeConsumerRegistered        EventType = "ConsumerRegistered"
	EventTypeProductCreated            EventType = "ProductCreated"
	EventTypeProductSentToSupplier     EventType = "ProductSentToSupplier"
	EventTypeProductReceivedBySupplier EventType = "ProductReceivedBySupplier"
	EventTypeShippingInfoUpdated       EventType = "ShippingInfoUpdated"
	EventTypeProductSentToRetailer     EventType = "ProductSentToRetailer"
	EventTypeProductReceivedByRetailer EventType = "ProductReceivedByRetailer"
	EventTypeProductAddedToStore       EventType = "ProductAddedToStore"
	EventTypeProductSoldToConsumer     EventType = "ProductSoldToConsumer"
	EventTypeQuotationCreated          EventType = "QuotationCreated"
	EventTypeQuotationApproved         EventType = "QuotationApproved"
	EventTypeQuotationsBatchApproved   EventType = "QuotationsBatchApproved"
	EventTypeQuotationRejected         EventType = "QuotationRejected"
	EventTypeQuotationFulfilled        EventType = "QuotationFulfilled"
	EventTypePurchaseAcknowledged      EventType = "PurchaseAcknowledged"
)
