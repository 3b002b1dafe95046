package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan is the commercial plan attached to a user.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanProMonthly Plan = "pro_monthly"
	PlanProYearly  Plan = "pro_yearly"
)

// Known reports whether the plan is one of the defined plans. Unknown
// values are treated as free by quota enforcement.
func (p Plan) Known() bool {
	switch p {
	case PlanFree, PlanProMonthly, PlanProYearly:
		return true
	default:
		return false
	}
}

// Subscription statuses written by the billing transitions.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// User is the identity and entitlement record. It is created lazily on
// first verified contact and never hard-deleted.
type User struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	Email                 string       `gorm:"uniqueIndex;not null"`
	DisplayName           string       `gorm:"type:text"`
	Plan                  Plan         `gorm:"type:text;not null;default:free"`
	UsageCount            int          `gorm:"not null;default:0"`
	LastResetAt           time.Time    `gorm:"not null"`
	BillingCustomerID     *string      `gorm:"type:text"`
	SubscriptionID        *string      `gorm:"type:text;index"`
	SubscriptionStatus    *string      `gorm:"type:text"`
	SubscriptionPeriodEnd *time.Time
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// NormalizeEmail lower-cases and trims an email address. The normalized
// form is the natural key for user records.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
