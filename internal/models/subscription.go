package models

import "time"

// Read models for the subscription subsystem. The rows are owned by the
// billing collaborator; this service only queries them.

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Plan is a paid tier inside a project. AllChannels grants access to every
// chat of the project instead of the explicitly bound ones.
type Plan struct {
	ID          int64     `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"project_id"`
	Name        string    `db:"name" json:"name"`
	AllChannels bool      `db:"all_channels" json:"all_channels"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Subscription links a user to a plan. Access holds while the status is
// active and EndsAt is nil or in the future.
type Subscription struct {
	ID        int64              `db:"id" json:"id"`
	UserID    int64              `db:"user_id" json:"user_id"`
	PlanID    int64              `db:"plan_id" json:"plan_id"`
	Status    SubscriptionStatus `db:"status" json:"status"`
	EndsAt    *time.Time         `db:"ends_at" json:"ends_at,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}
