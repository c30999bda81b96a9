package models

import (
	"strings"
	"time"
)

// Subscription tiers offered for FleetLog access.
const (
	TierSingle = "single"
	TierFleet  = "fleet"
)

// Subscription statuses stored in the ledger.
const (
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusCanceled = "CANCELED"
)

// SubscriptionRecord is the durable per-customer ledger entry. It is stored
// twice: under the email-derived key (canonical, used for access gating) and
// under the subscription-id-derived key (used by lifecycle events).
type SubscriptionRecord struct {
	Email          string `json:"email"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	Tier           string `json:"tier"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	CanceledAt     string `json:"canceled_at,omitempty"`
	Source         string `json:"source"`
}

// IsActive reports whether the stored status grants access. The comparison is
// case-insensitive because historical records carry mixed casing.
func (r *SubscriptionRecord) IsActive() bool {
	return strings.ToUpper(strings.TrimSpace(r.Status)) == SubscriptionStatusActive
}

// NormalizeTier maps arbitrary tier input to a supported tier, defaulting to
// single for anything unrecognized.
func NormalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case TierFleet:
		return TierFleet
	default:
		return TierSingle
	}
}

// NormalizeEmail trims and lowercases an address. The empty string signals an
// unusable address.
func NormalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(e, "@") {
		return ""
	}
	return e
}

// CanTransitionStatus reports whether moving the ledger from one status to
// another is a defined transition. Only uninitialized -> ACTIVE and
// ACTIVE -> CANCELED are legal; re-applying the current status is treated as a
// harmless duplicate delivery.
func CanTransitionStatus(from, to string) bool {
	f := strings.ToUpper(strings.TrimSpace(from))
	t := strings.ToUpper(strings.TrimSpace(to))
	if f == t {
		return true
	}
	switch {
	case f == "" && t == SubscriptionStatusActive:
		return true
	case f == SubscriptionStatusActive && t == SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}

// FormatTimestamp renders ledger timestamps in the wire format used across
// the API.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
