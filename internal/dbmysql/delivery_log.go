package dbmysql

import (
	"time"
)

// DeliveryLog is one dispatch audit row: which event went out, how wide
// the audience was, and the per-token multicast outcome counts.
type DeliveryLog struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Category       string    `gorm:"not null;size:20;index" json:"category"`
	OrganizationID string    `gorm:"size:36;index" json:"organization_id"`
	ActorID        string    `gorm:"size:36" json:"actor_id"`
	Title          string    `gorm:"size:255" json:"title"`
	Recipients     int       `json:"recipients"`
	TokenCount     int       `json:"token_count"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DeliveryLog) TableName() string {
	return "delivery_logs"
}
