package services

import (
	"iap-verify-api/pkg/logging"
)

// ResultCache caches validation outcomes keyed by the full claim
type ResultCache interface {
	Get(claimed ClaimedReceipt) (ValidationOutcome, bool)
	Store(claimed ClaimedReceipt, outcome ValidationOutcome)
}

// ReceiptVerificationService runs the full verification pipeline: claimed
// field precheck, production verifyReceipt call with a single sandbox retry
// on wrong-environment, then reconciliation
type ReceiptVerificationService struct {
	client     *AppStoreClient
	reconciler *Reconciler
	cache      ResultCache // optional; nil disables caching
}

// NewReceiptVerificationService creates a new receipt verification service
func NewReceiptVerificationService(client *AppStoreClient, reconciler *Reconciler, cache ResultCache) *ReceiptVerificationService {
	return &ReceiptVerificationService{
		client:     client,
		reconciler: reconciler,
		cache:      cache,
	}
}

// VerifyReceipt verifies a claimed receipt and returns the validation
// outcome. The secret is resolved by the caller; an empty secret means the
// request cannot be validated and no vendor call is made.
func (s *ReceiptVerificationService) VerifyReceipt(claimed ClaimedReceipt, secret string) ValidationOutcome {
	if claimed.BundleID == "" || claimed.ProductID == "" || claimed.TransactionID == "" || claimed.Token == "" {
		return invalidOutcome("invalid receipt")
	}

	if secret == "" {
		logging.Warnf("No shared secret available for bundle %s, skipping verification", claimed.BundleID)
		return invalidOutcome("invalid receipt")
	}

	if s.cache != nil {
		if outcome, ok := s.cache.Get(claimed); ok {
			logging.Infof("Outcome cache hit - bundle: %s, transaction: %s", claimed.BundleID, claimed.TransactionID)
			return outcome
		}
	}

	// Always call production first; retry sandbox exactly once when the
	// receipt belongs to the other environment
	resp := s.client.VerifyProduction(claimed.Token, secret)
	if resp != nil && resp.Status == ReceiptStatusWrongEnvironment {
		logging.Infof("Receipt is from sandbox, retrying with sandbox URL - bundle: %s", claimed.BundleID)
		resp = s.client.VerifySandbox(claimed.Token, secret)
	}

	outcome := s.reconciler.Validate(claimed, resp)

	// Only valid outcomes are cached; failures may be transient
	if s.cache != nil && outcome.IsValid {
		s.cache.Store(claimed, outcome)
	}

	return outcome
}
