package model

import "time"

// Subscription tiers. Free is the default for every new profile; paid tiers
// are assigned by the billing reconciler from the plan catalog.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Subscription statuses as stored on the profile.
const (
	SubStatusActive   = "active"
	SubStatusInactive = "inactive"
	SubStatusTrialing = "trialing"
	SubStatusCanceled = "canceled"
	SubStatusPastDue  = "past_due"
)

// Account statuses.
const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Profile struct {
	ID                   int64      `json:"id"`
	Email                string     `json:"email"`
	DisplayName          string     `json:"display_name"`
	Role                 string     `json:"role"`
	AccountStatus        string     `json:"account_status"`
	SubscriptionTier     string     `json:"subscription_tier"`
	SubscriptionStatus   string     `json:"subscription_status"`
	StripeCustomerID     *string    `json:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	SubscriptionRenewsAt *time.Time `json:"subscription_renews_at"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Suspended reports whether the account is blocked from logging in.
func (p *Profile) Suspended() bool {
	return p.AccountStatus == AccountSuspended
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	ProfileID int64     `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type MagicLink struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
