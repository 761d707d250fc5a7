package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/miyomint/storefront/services/captcha/internal/handlers"
	"github.com/miyomint/storefront/services/captcha/internal/verifier"
)

// ---------- Mocks ----------

type mockChecker struct {
	configured bool
	result     *verifier.Result
	err        error
	lastToken  string
	lastIP     string
}

func (m *mockChecker) Configured() bool { return m.configured }

func (m *mockChecker) Verify(_ context.Context, token, remoteIP string) (*verifier.Result, error) {
	m.lastToken = token
	m.lastIP = remoteIP
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// ---------- Tests ----------

func doVerify(h *handlers.Handlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:52011"
	rec := httptest.NewRecorder()
	h.Verify(rec, req)
	return rec
}

func TestVerifyNotConfigured(t *testing.T) {
	h := handlers.New(&mockChecker{configured: false})

	rec := doVerify(h, `{"token":"abc"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "NOT_CONFIGURED" {
		t.Errorf("code = %q, want NOT_CONFIGURED", resp["code"])
	}
}

func TestVerifyBadJSON(t *testing.T) {
	h := handlers.New(&mockChecker{configured: true})

	rec := doVerify(h, `{token`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifySuccess(t *testing.T) {
	checker := &mockChecker{configured: true, result: &verifier.Result{Success: true}}
	h := handlers.New(checker)

	rec := doVerify(h, `{"token":"the-token"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if checker.lastToken != "the-token" {
		t.Errorf("verifier got token %q", checker.lastToken)
	}
	if checker.lastIP != "203.0.113.7" {
		t.Errorf("verifier got ip %q, want the remote host", checker.lastIP)
	}

	var result verifier.Result
	json.NewDecoder(rec.Body).Decode(&result)
	if !result.Success {
		t.Error("response success = false")
	}
}

func TestVerifyForwardedForWins(t *testing.T) {
	checker := &mockChecker{configured: true, result: &verifier.Result{Success: true}}
	h := handlers.New(checker)

	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"token":"t"}`))
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if checker.lastIP != "198.51.100.9" {
		t.Errorf("verifier got ip %q, want first forwarded hop", checker.lastIP)
	}
}

func TestVerifyUpstreamFailure(t *testing.T) {
	checker := &mockChecker{configured: true, err: fmt.Errorf("siteverify returned status 500")}
	h := handlers.New(checker)

	rec := doVerify(h, `{"token":"abc"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("code = %q, want UPSTREAM_UNAVAILABLE", resp["code"])
	}
}

// End-to-end against a fake siteverify endpoint, real verifier included.
func TestVerifyAgainstFakeProvider(t *testing.T) {
	var gotSecret, gotResponse string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotSecret = r.FormValue("secret")
		gotResponse = r.FormValue("response")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"error-codes":["invalid-input-response"]}`)
	}))
	defer upstream.Close()

	h := handlers.New(verifier.New(upstream.URL, "shh-secret"))

	rec := doVerify(h, `{"token":"stale-token"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotSecret != "shh-secret" || gotResponse != "stale-token" {
		t.Errorf("upstream saw secret=%q response=%q", gotSecret, gotResponse)
	}

	var result verifier.Result
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Success {
		t.Error("success = true, want provider refusal")
	}
	if len(result.ErrorCodes) != 1 || result.ErrorCodes[0] != "invalid-input-response" {
		t.Errorf("error codes = %v", result.ErrorCodes)
	}
}

func TestVerifyEmptyTokenShortCircuits(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called for an empty token")
	}))
	defer upstream.Close()

	h := handlers.New(verifier.New(upstream.URL, "shh-secret"))

	rec := doVerify(h, `{"token":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result verifier.Result
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Success {
		t.Error("empty token must fail verification")
	}
	if len(result.ErrorCodes) != 1 || result.ErrorCodes[0] != "missing-input-response" {
		t.Errorf("error codes = %v", result.ErrorCodes)
	}
}
