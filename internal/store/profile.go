package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openspot/openspot/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var customerID, subscriptionID sql.NullString
	var renewsAt sql.NullTime
	var cancelAtPeriodEnd int

	err := scanner.Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.AccountStatus,
		&p.SubscriptionTier, &p.SubscriptionStatus,
		&customerID, &subscriptionID, &renewsAt, &cancelAtPeriodEnd,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		p.StripeCustomerID = &customerID.String
	}
	if subscriptionID.Valid {
		p.StripeSubscriptionID = &subscriptionID.String
	}
	if renewsAt.Valid {
		p.SubscriptionRenewsAt = &renewsAt.Time
	}
	p.CancelAtPeriodEnd = cancelAtPeriodEnd != 0
	return &p, nil
}

const profileCols = `id, email, display_name, role, account_status, subscription_tier, subscription_status, stripe_customer_id, stripe_subscription_id, subscription_renews_at, cancel_at_period_end, created_at, updated_at`

func (s *ProfileStore) Create(email, displayName string) (*model.Profile, error) {
	result, err := s.db.Exec(
		`INSERT INTO profiles (email, display_name) VALUES (?, ?)`,
		email, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) GetByID(id int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByEmail(email string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE email = ?`, email)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByStripeCustomerID(customerID string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE stripe_customer_id = ?`, customerID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by stripe customer id: %w", err)
	}
	return p, nil
}

// ClaimStripeCustomerID assigns a billing customer id to a profile that does
// not yet have one. The customer id is write-once: the conditional update
// makes concurrent first checkouts converge on a single claimed id. Returns
// false when another request already claimed one.
func (s *ProfileStore) ClaimStripeCustomerID(profileID int64, customerID string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE profiles SET stripe_customer_id = ?, updated_at = datetime('now') WHERE id = ? AND stripe_customer_id IS NULL`,
		customerID, profileID,
	)
	if err != nil {
		return false, fmt.Errorf("claim stripe customer id: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SubscriptionState is the set of profile fields owned by the billing
// reconciler.
type SubscriptionState struct {
	Tier              string
	Status            string
	SubscriptionID    string
	RenewsAt          *time.Time
	CancelAtPeriodEnd bool
}

// ApplySubscriptionState writes the reconciled subscription fields. The
// update is guarded on actual change, so reapplying an identical state is a
// no-op and leaves updated_at untouched.
func (s *ProfileStore) ApplySubscriptionState(profileID int64, state SubscriptionState) error {
	var subID sql.NullString
	if state.SubscriptionID != "" {
		subID = sql.NullString{String: state.SubscriptionID, Valid: true}
	}
	var renewsAt sql.NullTime
	if state.RenewsAt != nil {
		renewsAt = sql.NullTime{Time: state.RenewsAt.UTC(), Valid: true}
	}
	cancel := 0
	if state.CancelAtPeriodEnd {
		cancel = 1
	}

	_, err := s.db.Exec(
		`UPDATE profiles
		 SET subscription_tier = ?, subscription_status = ?, stripe_subscription_id = ?,
		     subscription_renews_at = ?, cancel_at_period_end = ?, updated_at = datetime('now')
		 WHERE id = ?
		   AND (subscription_tier IS NOT ? OR subscription_status IS NOT ?
		     OR stripe_subscription_id IS NOT ? OR subscription_renews_at IS NOT ?
		     OR cancel_at_period_end IS NOT ?)`,
		state.Tier, state.Status, subID, renewsAt, cancel,
		profileID,
		state.Tier, state.Status, subID, renewsAt, cancel,
	)
	if err != nil {
		return fmt.Errorf("apply subscription state: %w", err)
	}
	return nil
}

func (s *ProfileStore) UpdateAccountStatus(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET account_status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return nil
}

func (s *ProfileStore) UpdateDisplayName(id int64, name string) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET display_name = ?, updated_at = datetime('now') WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}
