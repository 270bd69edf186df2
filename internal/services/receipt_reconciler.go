package services

import (
	"fmt"
	"strconv"
	"time"
)

// ClaimedReceipt is the purchase assertion submitted by the client app, unverified
type ClaimedReceipt struct {
	BundleID         string
	ProductID        string
	TransactionID    string
	Token            string
	DeveloperPayload string
}

// ValidatedPurchase is the normalized, trust-checked purchase record.
// Bundle id, product id, token and developer payload are passed through from
// the claimed receipt; the transaction ids and timestamps are vendor-reported.
type ValidatedPurchase struct {
	BundleID              string     `json:"bundle_id"`
	ProductID             string     `json:"product_id"`
	TransactionID         string     `json:"transaction_id"`
	OriginalTransactionID string     `json:"original_transaction_id"`
	PurchaseDate          time.Time  `json:"purchase_date"`
	ExpiresDate           *time.Time `json:"expires_date,omitempty"` // nil for non-subscription products
	Token                 string     `json:"token"`
	DeveloperPayload      string     `json:"developer_payload,omitempty"`
}

// ValidationOutcome is the single authoritative result of a verification
// request. Exactly one of Reason (on failure) or Purchase (on success) is set.
type ValidationOutcome struct {
	IsValid     bool               `json:"is_valid"`
	Reason      string             `json:"reason,omitempty"`
	Environment string             `json:"environment,omitempty"` // vendor-reported, recorded for auditing
	Purchase    *ValidatedPurchase `json:"purchase,omitempty"`
}

func invalidOutcome(format string, v ...interface{}) ValidationOutcome {
	return ValidationOutcome{Reason: fmt.Sprintf(format, v...)}
}

// Reconciler decides authenticity and currency of a claimed purchase against
// the vendor's response
type Reconciler struct {
	gracePeriodDays int
	now             func() time.Time
}

// NewReconciler creates a reconciler with the given grace period in days.
// Negative values are treated as zero.
func NewReconciler(gracePeriodDays int) *Reconciler {
	if gracePeriodDays < 0 {
		gracePeriodDays = 0
	}
	return &Reconciler{
		gracePeriodDays: gracePeriodDays,
		now:             time.Now,
	}
}

// Validate reconciles the claimed receipt with the vendor response and builds
// the validation outcome. It never returns an error or panics: every failure
// mode, including unexpected payload shapes, becomes an invalid outcome.
func (r *Reconciler) Validate(claimed ClaimedReceipt, resp *VendorResponse) (outcome ValidationOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = invalidOutcome("%v", rec)
		}
	}()

	if resp == nil {
		// No vendor reply obtained; do not leak why
		return invalidOutcome("invalid receipt")
	}

	switch resp.Status {
	case ReceiptStatusError:
		return invalidOutcome("%s", resp.ErrorMessage)
	case ReceiptStatusWrongEnvironment:
		// Defensive: the caller should have retried the other environment
		return invalidOutcome("invalid receipt")
	}

	if resp.Receipt == nil {
		return invalidOutcome("no receipt returned")
	}

	// The vendor's copy of the bundle id is authoritative; a mismatch means
	// the token does not belong to the bundle that sent it
	if resp.Receipt.BundleID != claimed.BundleID {
		return invalidOutcome("receipt bundle id %s does not match claimed bundle id %s",
			resp.Receipt.BundleID, claimed.BundleID)
	}

	// Prefer the latest_receipt_info list; an absent in_app array decodes as
	// an empty list and fails the product lookup below
	candidates := resp.LatestReceiptInfo
	if len(candidates) == 0 {
		candidates = resp.Receipt.InApp
	}

	// Entries are ordered oldest to newest; the last match is the most
	// recent renewal for the claimed product
	var entry *PurchaseEntry
	for i := range candidates {
		if candidates[i].ProductID == claimed.ProductID {
			entry = &candidates[i]
		}
	}
	if entry == nil {
		return invalidOutcome("did not find %s in list of purchases", claimed.ProductID)
	}

	// The client may hold a renewal's transaction id while the vendor record
	// still shows the original
	if claimed.TransactionID != entry.TransactionID && claimed.TransactionID != entry.OriginalTransactionID {
		return invalidOutcome("claimed transaction id %s does not match transaction id %s or original transaction id %s",
			claimed.TransactionID, entry.TransactionID, entry.OriginalTransactionID)
	}

	purchaseDate, err := parseAppleTimestamp(entry.PurchaseDateMS)
	if err != nil {
		return invalidOutcome("failed to parse purchase date: %v", err)
	}

	var expiresDate *time.Time
	if entry.ExpiresDateMS != "" {
		expiryMS, err := strconv.ParseInt(entry.ExpiresDateMS, 10, 64)
		if err != nil {
			return invalidOutcome("failed to parse expires date: %v", err)
		}
		if expiryMS > 0 {
			expiry := time.UnixMilli(expiryMS).UTC()
			// Grace is day-granular: expiry date plus grace days must be
			// strictly after today's UTC date; equal dates are expired
			deadline := dateOf(expiry.AddDate(0, 0, r.gracePeriodDays))
			today := dateOf(r.now().UTC())
			if !deadline.After(today) {
				return invalidOutcome("subscription expired %s", expiry.Format(time.RFC3339))
			}
			expiresDate = &expiry
		}
	}

	return ValidationOutcome{
		IsValid:     true,
		Environment: resp.Environment,
		Purchase: &ValidatedPurchase{
			BundleID:              claimed.BundleID,
			ProductID:             claimed.ProductID,
			TransactionID:         entry.TransactionID,
			OriginalTransactionID: entry.OriginalTransactionID,
			PurchaseDate:          purchaseDate,
			ExpiresDate:           expiresDate,
			Token:                 claimed.Token,
			DeveloperPayload:      claimed.DeveloperPayload,
		},
	}
}

// dateOf truncates an instant to its UTC calendar date
func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// parseAppleTimestamp parses an Apple timestamp (milliseconds since epoch,
// delivered as a string) into a UTC instant
func parseAppleTimestamp(timestampStr string) (time.Time, error) {
	if timestampStr == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(timestamp).UTC(), nil
}
