package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"iap-verify-api/pkg/logging"
)

// App Store verifyReceipt endpoints
const (
	ProductionVerifyURL = "https://buy.itunes.apple.com/verifyReceipt"
	SandboxVerifyURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
)

// ReceiptStatus classifies a vendor response
type ReceiptStatus int

const (
	ReceiptStatusValid ReceiptStatus = iota
	ReceiptStatusWrongEnvironment
	ReceiptStatusError
)

// PurchaseEntry is a single purchase record as reported by the App Store.
// Millisecond timestamps arrive as strings; an absent expires_date_ms stays
// empty, which is how non-subscription products are recognized.
type PurchaseEntry struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMS        string `json:"purchase_date_ms"`
	ExpiresDateMS         string `json:"expires_date_ms"`
}

// ReceiptInfo is the top-level receipt object of a verifyReceipt response
type ReceiptInfo struct {
	BundleID string          `json:"bundle_id"`
	InApp    []PurchaseEntry `json:"in_app"`
}

// VendorResponse is the classified result of a verifyReceipt call
type VendorResponse struct {
	Status            ReceiptStatus
	ErrorMessage      string // populated when Status is ReceiptStatusError
	Environment       string // "Production" or "Sandbox" as reported by Apple
	Receipt           *ReceiptInfo
	LatestReceiptInfo []PurchaseEntry
}

// verifyReceiptResponse is the wire shape of the verifyReceipt response body
type verifyReceiptResponse struct {
	Status            int             `json:"status"`
	Environment       string          `json:"environment"`
	Receipt           *ReceiptInfo    `json:"receipt"`
	LatestReceiptInfo []PurchaseEntry `json:"latest_receipt_info"`
}

// appleStatusMessages maps documented verifyReceipt status codes to their
// descriptions. Unknown codes fall back to a numeric message.
var appleStatusMessages = map[int]string{
	21000: "The App Store could not read the JSON object you provided.",
	21002: "The data in the receipt-data property was malformed or missing.",
	21003: "The receipt could not be authenticated.",
	21004: "The shared secret you provided does not match the shared secret on file for your account.",
	21005: "The receipt server is not currently available.",
	21006: "This receipt is valid but the subscription has expired.",
	21009: "Internal data access error. Try again later.",
	21010: "The user account cannot be found or has been deleted.",
}

// AppStoreClient issues verifyReceipt calls against Apple's endpoints
type AppStoreClient struct {
	httpClient    *http.Client
	productionURL string
	sandboxURL    string
}

// NewAppStoreClient creates a new App Store client
func NewAppStoreClient() *AppStoreClient {
	return &AppStoreClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		productionURL: ProductionVerifyURL,
		sandboxURL:    SandboxVerifyURL,
	}
}

// VerifyProduction verifies a receipt token against the production endpoint
func (c *AppStoreClient) VerifyProduction(token, secret string) *VendorResponse {
	return c.verify(c.productionURL, token, secret)
}

// VerifySandbox verifies a receipt token against the sandbox endpoint
func (c *AppStoreClient) VerifySandbox(token, secret string) *VendorResponse {
	return c.verify(c.sandboxURL, token, secret)
}

// verify performs the verifyReceipt call. Transport or parse failures are
// logged and return nil ("no response"); they never surface as errors.
func (c *AppStoreClient) verify(url, token, secret string) *VendorResponse {
	requestBody := map[string]string{
		"receipt-data": token,
		"password":     secret,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		logging.Errorf("Failed to marshal verifyReceipt request: %v", err)
		return nil
	}

	resp, err := c.httpClient.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		logging.Errorf("verifyReceipt call failed - url: %s, error: %v", url, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Errorf("verifyReceipt returned HTTP %d - url: %s", resp.StatusCode, url)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.Errorf("Failed to read verifyReceipt response: %v", err)
		return nil
	}

	var wire verifyReceiptResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		logging.Errorf("Failed to parse verifyReceipt response: %v", err)
		return nil
	}

	return classifyResponse(&wire)
}

// classifyResponse maps the vendor status code to a classification.
// 21007 means a sandbox receipt was sent to production (21008 is the mirror);
// the caller retries against the other environment exactly once.
func classifyResponse(wire *verifyReceiptResponse) *VendorResponse {
	switch wire.Status {
	case 0:
		return &VendorResponse{
			Status:            ReceiptStatusValid,
			Environment:       wire.Environment,
			Receipt:           wire.Receipt,
			LatestReceiptInfo: wire.LatestReceiptInfo,
		}
	case 21007, 21008:
		return &VendorResponse{
			Status:      ReceiptStatusWrongEnvironment,
			Environment: wire.Environment,
		}
	default:
		message, ok := appleStatusMessages[wire.Status]
		if !ok {
			message = fmt.Sprintf("verification failed with status %d", wire.Status)
		}
		return &VendorResponse{
			Status:       ReceiptStatusError,
			ErrorMessage: message,
			Environment:  wire.Environment,
		}
	}
}
