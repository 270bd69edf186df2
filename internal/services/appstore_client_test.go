package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(productionURL, sandboxURL string) *AppStoreClient {
	c := NewAppStoreClient()
	c.productionURL = productionURL
	c.sandboxURL = sandboxURL
	return c
}

func TestVerify_ValidResponse(t *testing.T) {
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		io.WriteString(w, `{
			"status": 0,
			"environment": "Production",
			"receipt": {
				"bundle_id": "com.x.app",
				"in_app": [
					{
						"product_id": "premium",
						"transaction_id": "1001",
						"original_transaction_id": "1001",
						"purchase_date_ms": "1000"
					}
				]
			},
			"latest_receipt_info": [
				{
					"product_id": "premium",
					"transaction_id": "1002",
					"original_transaction_id": "1001",
					"purchase_date_ms": "2000",
					"expires_date_ms": "3000"
				}
			]
		}`)
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token-abc", "secret-xyz")
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Status != ReceiptStatusValid {
		t.Fatalf("expected valid classification, got %v", resp.Status)
	}
	if resp.Environment != "Production" {
		t.Fatalf("unexpected environment %q", resp.Environment)
	}
	if resp.Receipt == nil || resp.Receipt.BundleID != "com.x.app" {
		t.Fatalf("receipt not parsed: %+v", resp.Receipt)
	}
	if len(resp.Receipt.InApp) != 1 || resp.Receipt.InApp[0].TransactionID != "1001" {
		t.Fatalf("in_app not parsed: %+v", resp.Receipt.InApp)
	}
	if len(resp.LatestReceiptInfo) != 1 || resp.LatestReceiptInfo[0].ExpiresDateMS != "3000" {
		t.Fatalf("latest_receipt_info not parsed: %+v", resp.LatestReceiptInfo)
	}

	// Request body is {"receipt-data": token, "password": secret}
	if gotBody["receipt-data"] != "token-abc" || gotBody["password"] != "secret-xyz" {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
}

func TestVerify_AbsentOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": 0, "environment": "Production", "receipt": {"bundle_id": "com.x.app"}}`)
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret")
	if resp == nil || resp.Status != ReceiptStatusValid {
		t.Fatalf("expected valid classification, got %+v", resp)
	}
	if resp.Receipt.InApp != nil {
		t.Fatalf("absent in_app must decode to nil, got %+v", resp.Receipt.InApp)
	}
	if resp.LatestReceiptInfo != nil {
		t.Fatalf("absent latest_receipt_info must decode to nil, got %+v", resp.LatestReceiptInfo)
	}
}

func TestVerify_WrongEnvironmentStatuses(t *testing.T) {
	for _, status := range []string{"21007", "21008"} {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"status": `+status+`}`)
			}))
			defer srv.Close()

			resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret")
			if resp == nil {
				t.Fatal("expected a response")
			}
			if resp.Status != ReceiptStatusWrongEnvironment {
				t.Fatalf("expected wrong-environment classification, got %v", resp.Status)
			}
		})
	}
}

func TestVerify_KnownErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": 21004}`)
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret")
	if resp == nil || resp.Status != ReceiptStatusError {
		t.Fatalf("expected error classification, got %+v", resp)
	}
	if !strings.Contains(resp.ErrorMessage, "shared secret") {
		t.Fatalf("expected vendor description, got %q", resp.ErrorMessage)
	}
}

func TestVerify_UnknownErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": 12345}`)
	}))
	defer srv.Close()

	resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret")
	if resp == nil || resp.Status != ReceiptStatusError {
		t.Fatalf("expected error classification, got %+v", resp)
	}
	if resp.ErrorMessage != "verification failed with status 12345" {
		t.Fatalf("unexpected message %q", resp.ErrorMessage)
	}
}

func TestVerify_SoftFailures(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		if resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret"); resp != nil {
			t.Fatalf("expected no response, got %+v", resp)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"status": `)
		}))
		defer srv.Close()

		if resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret"); resp != nil {
			t.Fatalf("expected no response, got %+v", resp)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		if resp := newTestClient(srv.URL, srv.URL).VerifyProduction("token", "secret"); resp != nil {
			t.Fatalf("expected no response, got %+v", resp)
		}
	})
}

func TestVerifySandbox_UsesSandboxURL(t *testing.T) {
	prod := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("production endpoint must not be called")
	}))
	defer prod.Close()

	sandbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": 0, "environment": "Sandbox", "receipt": {"bundle_id": "com.x.app"}}`)
	}))
	defer sandbox.Close()

	resp := newTestClient(prod.URL, sandbox.URL).VerifySandbox("token", "secret")
	if resp == nil || resp.Environment != "Sandbox" {
		t.Fatalf("expected sandbox response, got %+v", resp)
	}
}
