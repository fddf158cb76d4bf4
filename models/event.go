package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox publish statuses for LedgerEvent.PublishStatus.
// Keep these as strings (DB values).
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// LedgerEvent is the transactional outbox row: one per committed transition,
// written inside the same transaction as the state change it records.
// Delivery to external consumers happens after commit via the dispatcher.
type LedgerEvent struct {
	ID          int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:2" json:"id"`
	EventType   EventType `gorm:"size:40;not null;index" json:"event_type"`
	ProductId   int       `gorm:"index" json:"product_id"`
	QuotationId int       `gorm:"index" json:"quotation_id"`
	Actor       string    `gorm:"size:128;not null" json:"actor"`
	Payload     []byte    `gorm:"type:blob" json:"payload"`
	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// appendEvent writes the event record inside the caller's DB transaction.
// Ordering is the auto-increment id; consumers must sort by it.
func appendEvent(tx *gorm.DB, ctx context.Context, eventType EventType, productId int, quotationId int, actor string, payload map[string]interface{}) error {
	var payloadInByte []byte
	if payload != nil {
		var err error
		payloadInByte, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	record := LedgerEvent{
		EventType:     eventType,
		ProductId:     productId,
		QuotationId:   quotationId,
		Actor:         actor,
		Payload:       payloadInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// GetLedgerEvents returns committed events with id > afterId, oldest first.
func GetLedgerEvents(ctx context.Context, afterId int, limit int) ([]*LedgerEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := config.GetDB()
	var results []*LedgerEvent
	err := db.WithContext(ctx).
		Where("id > ?", afterId).
		Order("id ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetProductEvents returns every event ever recorded for a product, oldest first.
func GetProductEvents(ctx context.Context, productId int) ([]*LedgerEvent, error) {
	if err := utils.ValidateResourceId[Product](ctx, productId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var results []*LedgerEvent
	err := db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
