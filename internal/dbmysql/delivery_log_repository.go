package dbmysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type DeliveryLogRepository interface {
	Create(ctx context.Context, entry *DeliveryLog) error
	RecentByOrganization(ctx context.Context, organizationID string, limit int) ([]*DeliveryLog, error)
}

type deliveryLogRepository struct {
	db *gorm.DB
}

func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &deliveryLogRepository{
		db: db,
	}
}

func (r *deliveryLogRepository) Create(ctx context.Context, entry *DeliveryLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}
	return nil
}

func (r *deliveryLogRepository) RecentByOrganization(
	ctx context.Context,
	organizationID string,
	limit int,
) ([]*DeliveryLog, error) {
	var entries []*DeliveryLog

	query := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get delivery logs: %w", err)
	}

	return entries, nil
}
