package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrShopNotFound mirrors the adjacent pack's sql.ErrNoRows -> sentinel
// translation convention (ts-vms's data.ErrRecordNotFound).
var ErrShopNotFound = errors.New("shop not found")

// AccessChecker implements the §3 access rule: OWNER has access iff
// shop.owner_id == user.id; MANAGER has access iff (shop.id, user.id) is in
// the shop<->manager relation. The signaling endpoint depends on this
// interface, not on *gorm.DB directly, so it can be exercised with a fake
// in tests.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID uuid.UUID, role Role, shopID uuid.UUID) (bool, error)
	ShopByID(ctx context.Context, shopID uuid.UUID) (*Shop, error)
}

type GormAccessChecker struct {
	DB *gorm.DB
}

func NewGormAccessChecker(db *gorm.DB) *GormAccessChecker {
	return &GormAccessChecker{DB: db}
}

func (c *GormAccessChecker) ShopByID(ctx context.Context, shopID uuid.UUID) (*Shop, error) {
	var s Shop
	err := c.DB.WithContext(ctx).First(&s, "id = ?", shopID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *GormAccessChecker) HasAccess(ctx context.Context, userID uuid.UUID, role Role, shopID uuid.UUID) (bool, error) {
	shop, err := c.ShopByID(ctx, shopID)
	if err != nil {
		return false, err
	}
	if role == RoleOwner {
		return shop.OwnerID == userID, nil
	}
	var count int64
	err = c.DB.WithContext(ctx).Model(&ShopManager{}).
		Where("shop_id = ? AND user_id = ?", shopID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
