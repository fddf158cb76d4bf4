package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// RoleMember is one address in one role set. Registration is monotonic append;
// only the owner set supports removal.
type RoleMember struct {
	ID        int        `gorm:"primary_key" json:"id"`
	Role      LedgerRole `gorm:"size:20;not null;uniqueIndex:idx_role_address,priority:1" json:"role"`
	Address   string     `gorm:"size:128;not null;uniqueIndex:idx_role_address,priority:2" json:"address"`
	AddedBy   string     `gorm:"size:128;not null" json:"added_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func roleSetKey(role LedgerRole) string {
	return "roleset:" + string(role)
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

var roleRegisteredEvents = map[LedgerRole]EventType{
	LedgerRoleOwner:    EventTypeOwnerAdded,
	LedgerRoleProducer: EventTypeProducerRegistered,
	LedgerRoleSupplier: EventTypeSupplierRegistered,
	LedgerRoleRetailer: EventTypeRetailerRegistered,
	LedgerRoleConsumer: EventTypeConsumerRegistered,
}

// HasRole reports membership of address in the role set. The redis set is a
// positive-only cache: a hit is trusted, a miss falls through to the DB so a
// partially warmed set can never hide a registered address.
func HasRole(ctx context.Context, role LedgerRole, address string) (bool, error) {
	if address == "" {
		return false, nil
	}
	if ok, cached, err := config.IsRedisSetMember(roleSetKey(role), address); err == nil && cached && ok {
		return true, nil
	}

	count, err := utils.ResourceCountWhere[RoleMember](ctx, "role = ? AND address = ?", role, address)
	if err != nil {
		return false, err
	}
	if count > 0 {
		// best-effort cache fill
		_ = config.AddRedisSet(roleSetKey(role), address)
		return true, nil
	}
	return false, nil
}

func IsOwner(ctx context.Context, address string) (bool, error) {
	return HasRole(ctx, LedgerRoleOwner, address)
}

func IsProducer(ctx context.Context, address string) (bool, error) {
	return HasRole(ctx, LedgerRoleProducer, address)
}

func IsSupplier(ctx context.Context, address string) (bool, error) {
	return HasRole(ctx, LedgerRoleSupplier, address)
}

func IsRetailer(ctx context.Context, address string) (bool, error) {
	return HasRole(ctx, LedgerRoleRetailer, address)
}

func IsConsumer(ctx context.Context, address string) (bool, error) {
	return HasRole(ctx, LedgerRoleConsumer, address)
}

// callerFromContext returns the authenticated caller address or an
// authorization error when the request carried no identity.
func callerFromContext(ctx context.Context) (string, error) {
	caller, ok := utils.GetCallerAddressFromContext(ctx)
	if !ok || caller == "" {
		return "", NewUnauthenticatedError("caller identity is required")
	}
	return caller, nil
}

func requireOwner(ctx context.Context) (string, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return "", err
	}
	ok, err := IsOwner(ctx, caller)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewAuthorizationError("You are not an owner")
	}
	return caller, nil
}

func requireProducer(ctx context.Context) (string, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return "", err
	}
	ok, err := IsProducer(ctx, caller)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewAuthorizationError("You are not a registered producer")
	}
	return caller, nil
}

// RegisterRole appends address to the role set. The caller must already be an
// owner. Re-registering an address that is already a member is a no-op success
// and emits no duplicate event (documented contract, relied on by UI retries).
func RegisterRole(ctx context.Context, role LedgerRole, address string) (*RoleMember, error) {
	caller, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, NewValidationError("address must not be empty")
	}
	eventType, ok := roleRegisteredEvents[role]
	if !ok {
		return nil, NewValidationError("invalid ledger role")
	}

	db := config.GetDB()
	var member RoleMember
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RoleMember
		ferr := tx.Where("role = ? AND address = ?", role, address).First(&existing).Error
		if ferr == nil {
			member = existing
			return nil
		}
		if ferr != gorm.ErrRecordNotFound {
			return ferr
		}

		member = RoleMember{Role: role, Address: address, AddedBy: caller}
		if cerr := tx.Create(&member).Error; cerr != nil {
			return cerr
		}
		return appendEvent(tx, ctx, eventType, 0, 0, caller, map[string]interface{}{
			"address": address,
		})
	})
	// Two owners registering the same address at once: the loser hits the
	// unique index. Same idempotent outcome as the pre-check path.
	if isDuplicateEntry(err) {
		ferr := db.WithContext(ctx).Where("role = ? AND address = ?", role, address).First(&member).Error
		if ferr != nil {
			return nil, ferr
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	// best-effort cache fill
	_ = config.AddRedisSet(roleSetKey(role), address)
	return &member, nil
}

func AddOwner(ctx context.Context, address string) (*RoleMember, error) {
	return RegisterRole(ctx, LedgerRoleOwner, address)
}

func RegisterProducer(ctx context.Context, address string) (*RoleMember, error) {
	return RegisterRole(ctx, LedgerRoleProducer, address)
}

func RegisterSupplier(ctx context.Context, address string) (*RoleMember, error) {
	return RegisterRole(ctx, LedgerRoleSupplier, address)
}

func RegisterRetailer(ctx context.Context, address string) (*RoleMember, error) {
	return RegisterRole(ctx, LedgerRoleRetailer, address)
}

// RegisterConsumer is advisory: the address is listed for visibility but no
// operation requires consumer membership.
func RegisterConsumer(ctx context.Context, address string) (*RoleMember, error) {
	return RegisterRole(ctx, LedgerRoleConsumer, address)
}

// RemoveOwner deletes an owner. Removal exists only for the owner set.
func RemoveOwner(ctx context.Context, address string) error {
	caller, err := requireOwner(ctx)
	if err != nil {
		return err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RoleMember
		ferr := tx.Where("role = ? AND address = ?", LedgerRoleOwner, address).First(&existing).Error
		if ferr == gorm.ErrRecordNotFound {
			return NewNotFoundError("owner does not exist")
		}
		if ferr != nil {
			return ferr
		}
		if derr := tx.Delete(&existing).Error; derr != nil {
			return derr
		}
		return appendEvent(tx, ctx, EventTypeOwnerRemoved, 0, 0, caller, map[string]interface{}{
			"address": address,
		})
	})
	if err != nil {
		return err
	}

	_ = config.RemoveRedisSetMember(roleSetKey(LedgerRoleOwner), address)
	return nil
}

// GetRoleMembers lists the addresses of a role set in registration order.
func GetRoleMembers(ctx context.Context, role LedgerRole) ([]string, error) {
	db := config.GetDB()
	var addresses []string
	err := db.WithContext(ctx).Model(&RoleMember{}).
		Where("role = ?", role).
		Order("id ASC").
		Pluck("address", &addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// EnsureBootstrapOwner seeds the very first owner. It is a no-op when any
// owner already exists, so deploys can run it unconditionally.
func EnsureBootstrapOwner(ctx context.Context, address string) (*RoleMember, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, NewValidationError("address must not be empty")
	}

	db := config.GetDB()
	var member RoleMember
	// The empty-set check has no row to lock, so the advisory lock has to
	// stay held across the commit. Connection pins one session for that;
	// GET_LOCK is session-scoped.
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if cerr := AcquireOwnerPostingLock(conn); cerr != nil {
			return cerr
		}
		defer ReleaseOwnerPostingLock(conn)

		return conn.Transaction(func(tx *gorm.DB) error {
			var count int64
			if cerr := tx.Model(&RoleMember{}).Where("role = ?", LedgerRoleOwner).Count(&count).Error; cerr != nil {
				return cerr
			}
			if count > 0 {
				return tx.Where("role = ? AND address = ?", LedgerRoleOwner, address).First(&member).Error
			}

			member = RoleMember{Role: LedgerRoleOwner, Address: address, AddedBy: address}
			if cerr := tx.Create(&member).Error; cerr != nil {
				return cerr
			}
			return appendEvent(tx, ctx, EventTypeOwnerAdded, 0, 0, address, map[string]interface{}{
				"address":   address,
				"bootstrap": true,
			})
		})
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewStateError("an owner already exists; bootstrap address is not it")
		}
		return nil, err
	}

	_ = config.AddRedisSet(roleSetKey(LedgerRoleOwner), address)
	return &member, nil
}
