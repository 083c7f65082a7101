// Package reconcile maps payment-processor subscription state onto the
// first-party profile record. It is the idempotency boundary for the webhook
// and session-verification paths: applying the same snapshot twice is a
// no-op. Updates are last-write-wins; out-of-order delivery is not corrected.
package reconcile

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/openspot/openspot/internal/billing"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

// Snapshot is the subset of a processor subscription the reconciler acts on.
type Snapshot struct {
	SubscriptionID    string
	CustomerID        string
	Status            string
	PriceID           string
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// FromStripe flattens a Stripe subscription into a Snapshot. The period end
// and price live on the first subscription item.
func FromStripe(sub *stripe.Subscription) Snapshot {
	snap := Snapshot{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			snap.PeriodEnd = &t
		}
	}
	return snap
}

// UnknownStatusError is returned for a processor status outside the fixed
// mapping table. Unknown statuses are a defined error condition, never
// silently accepted.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown subscription status %q", e.Status)
}

// statusTable is the fixed processor-to-profile status mapping.
var statusTable = map[string]string{
	"active":   model.SubStatusActive,
	"trialing": model.SubStatusTrialing,
	"canceled": model.SubStatusCanceled,
	"past_due": model.SubStatusPastDue,
	// An incomplete subscription has not been paid for yet; the profile
	// stays inactive until the first invoice settles.
	"incomplete":         model.SubStatusInactive,
	"incomplete_expired": model.SubStatusInactive,
	"unpaid":             model.SubStatusPastDue,
}

// ProfileStore is the slice of the profile store the reconciler needs.
type ProfileStore interface {
	GetByID(id int64) (*model.Profile, error)
	GetByStripeCustomerID(customerID string) (*model.Profile, error)
	ApplySubscriptionState(profileID int64, state store.SubscriptionState) error
}

type Reconciler struct {
	profiles ProfileStore
	catalog  billing.Catalog
	logger   *slog.Logger
}

func New(profiles ProfileStore, catalog billing.Catalog, logger *slog.Logger) *Reconciler {
	return &Reconciler{profiles: profiles, catalog: catalog, logger: logger}
}

// Apply reconciles one subscription snapshot onto exactly one profile.
// An orphaned snapshot (no resolvable profile) is logged and dropped rather
// than surfaced, so a stray event cannot wedge the webhook pipeline.
func (r *Reconciler) Apply(snap Snapshot) error {
	profile, err := r.resolveProfile(snap)
	if err != nil {
		return err
	}
	if profile == nil {
		r.logger.Warn("subscription update without matching profile",
			"subscription_id", snap.SubscriptionID,
			"customer_id", snap.CustomerID,
		)
		return nil
	}

	status, ok := statusTable[snap.Status]
	if !ok {
		return &UnknownStatusError{Status: snap.Status}
	}

	// Tier follows the purchased price. Cancellation keeps the last tier so
	// the profile still shows what the user had; an unmapped price keeps the
	// current tier rather than inventing one.
	tier := profile.SubscriptionTier
	if status != model.SubStatusCanceled {
		if plan, ok := r.catalog.ByPrice(snap.PriceID); ok {
			tier = plan.Tier
		} else if snap.PriceID != "" {
			r.logger.Warn("subscription price not in plan catalog",
				"price_id", snap.PriceID,
				"subscription_id", snap.SubscriptionID,
			)
		}
	}

	state := store.SubscriptionState{
		Tier:              tier,
		Status:            status,
		SubscriptionID:    snap.SubscriptionID,
		RenewsAt:          snap.PeriodEnd,
		CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
	}
	if err := r.profiles.ApplySubscriptionState(profile.ID, state); err != nil {
		return fmt.Errorf("apply subscription state: %w", err)
	}

	r.logger.Info("subscription reconciled",
		"profile_id", profile.ID,
		"subscription_id", snap.SubscriptionID,
		"tier", tier,
		"status", status,
	)
	return nil
}

// resolveProfile attributes the snapshot: metadata user_id first, then the
// stored customer id.
func (r *Reconciler) resolveProfile(snap Snapshot) (*model.Profile, error) {
	if raw, ok := snap.Metadata["user_id"]; ok && raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			profile, err := r.profiles.GetByID(id)
			if err != nil {
				return nil, fmt.Errorf("resolve profile by metadata: %w", err)
			}
			if profile != nil {
				return profile, nil
			}
		}
	}
	if snap.CustomerID != "" {
		profile, err := r.profiles.GetByStripeCustomerID(snap.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("resolve profile by customer id: %w", err)
		}
		return profile, nil
	}
	return nil, nil
}
