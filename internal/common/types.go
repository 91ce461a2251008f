package common

import (
	"time"
)

type Category string

const (
	CategoryChat         Category = "chat"
	CategoryAnnouncement Category = "announcement"
	CategoryDocument     Category = "document"
	CategoryBill         Category = "bill"
	CategoryPayment      Category = "payment"
)

// Categories returns every entity category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryChat,
		CategoryAnnouncement,
		CategoryDocument,
		CategoryBill,
		CategoryPayment,
	}
}

const PaymentStatusUnpaid = "unpaid"

// Entity is the generic viewable record shared by all five categories.
// Fields beyond what unread tracking needs stay in the store undecoded.
type Entity struct {
	ID             string    `bson:"_id" json:"id"`
	OrganizationID string    `bson:"organizationId,omitempty" json:"organization_id,omitempty"`
	ActorID        string    `bson:"actorId,omitempty" json:"actor_id,omitempty"`
	SenderID       string    `bson:"senderId,omitempty" json:"sender_id,omitempty"`
	ReceiverID     string    `bson:"receiverId,omitempty" json:"receiver_id,omitempty"`
	ViewedBy       []string  `bson:"viewedBy,omitempty" json:"viewed_by,omitempty"`
	PaymentStatus  string    `bson:"paymentStatus,omitempty" json:"payment_status,omitempty"`
	IsAnnouncement bool      `bson:"isAnnouncement,omitempty" json:"is_announcement,omitempty"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`

	Category Category `bson:"-" json:"category"`
}

// Snapshot is one delivery from a live query. Err set means the category
// is degraded; Entities is then empty and the count falls back to zero.
type Snapshot struct {
	Category Category
	Entities []Entity
	Err      error
}

// DispatchEvent describes one producer-side event to push to an audience.
type DispatchEvent struct {
	Category        Category `json:"category"`
	OrganizationID  string   `json:"organization_id"`
	ActorID         string   `json:"actor_id"`
	AudienceUserIDs []string `json:"audience_user_ids"`
	Title           string   `json:"title"`
	Body            string   `json:"body"`
}

// DispatchResult carries per-multicast outcome counts for observability.
type DispatchResult struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}

// RefreshSignal asks live aggregations to re-pull a category. An empty
// Category means all categories; an empty OrganizationID means all groups.
type RefreshSignal struct {
	Category       Category `json:"category"`
	OrganizationID string   `json:"organization_id"`
}
