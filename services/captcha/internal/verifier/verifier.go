package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
)

// siteverifyForm is the upstream request body. The provider accepts form
// encoding only, not JSON.
type siteverifyForm struct {
	Secret   string `url:"secret"`
	Response string `url:"response"`
	RemoteIP string `url:"remoteip,omitempty"`
}

// Result mirrors the provider's siteverify answer.
type Result struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error_codes,omitempty"`
}

type providerResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verifier checks captcha tokens against the provider's siteverify endpoint.
type Verifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

func New(endpoint, secret string) *Verifier {
	return &Verifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether a secret is present. Without one every request
// must be refused rather than silently passed.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (*Result, error) {
	if !v.Configured() {
		return nil, fmt.Errorf("captcha secret is not configured")
	}
	if token == "" {
		return &Result{Success: false, ErrorCodes: []string{"missing-input-response"}}, nil
	}

	form := siteverifyForm{Secret: v.secret, Response: token, RemoteIP: remoteIP}
	values, err := query.Values(form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode siteverify form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var upstream providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	return &Result{Success: upstream.Success, ErrorCodes: upstream.ErrorCodes}, nil
}
