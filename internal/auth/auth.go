// Package auth resolves connection tokens to player identities.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service is unreachable or unavailable.
	// Callers may choose to fail open (allow) or fail closed (reject).
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is a resolved caller: the address bets settle against and
// whether the caller holds operator privileges.
type Identity struct {
	Address  string `json:"address"`
	Operator bool   `json:"operator"`
}

// Validator resolves authentication tokens.
type Validator interface {
	// Validate checks if a token is valid and returns the caller identity.
	// Returns:
	//   - (*Identity, nil) if token is valid
	//   - (nil, ErrInvalidToken) if token is definitively invalid
	//   - (nil, ErrUnavailable) if the auth service is unavailable
	Validate(ctx context.Context, token string) (*Identity, error)
}

// StaticValidator resolves tokens against a fixed table, typically
// loaded from configuration.
type StaticValidator struct {
	entries map[string]Identity
}

// NewStaticValidator creates a validator over a token table.
func NewStaticValidator(entries map[string]Identity) *StaticValidator {
	table := make(map[string]Identity, len(entries))
	for token, identity := range entries {
		table[token] = identity
	}
	return &StaticValidator{entries: table}
}

func (v *StaticValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	identity, ok := v.entries[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &identity, nil
}

// HTTPValidator validates tokens via HTTP callback to an external service.
type HTTPValidator struct {
	url         string
	client      *http.Client
	adminSecret string
}

// NewHTTPValidator creates a validator that calls an external HTTP endpoint.
func NewHTTPValidator(url string, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		client: &http.Client{
			Timeout: 500 * time.Millisecond, // Align with context timeout
		},
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid    bool   `json:"valid"`
	Address  string `json:"address,omitempty"`
	Operator bool   `json:"operator,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	// Empty token is invalid when auth is enabled
	if token == "" {
		return nil, ErrInvalidToken
	}

	// Apply timeout via context
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		// Network errors, timeouts, etc. = unavailable
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// Handle HTTP status codes
	switch resp.StatusCode {
	case http.StatusOK:
		// Success - decode response
	case http.StatusUnauthorized, http.StatusForbidden:
		// Definitive rejection
		return nil, ErrInvalidToken
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		// Service issues
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		// Treat unexpected status as unavailable
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	// Limit response body to 1MB to avoid pathological responses
	limitedReader := io.LimitReader(resp.Body, 1<<20)

	var authResp validateResponse
	if err := json.NewDecoder(limitedReader).Decode(&authResp); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}

	if !authResp.Valid {
		return nil, ErrInvalidToken
	}
	if authResp.Address == "" {
		return nil, fmt.Errorf("%w: response carries no address", ErrUnavailable)
	}

	return &Identity{
		Address:  authResp.Address,
		Operator: authResp.Operator,
	}, nil
}

// NoopValidator treats the token itself as the address, for local runs
// without an auth service. An "operator:" prefix grants the operator
// flag to the remainder of the token.
type NoopValidator struct{}

// NewNoopValidator creates a validator that accepts any non-empty token.
func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (v *NoopValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if address, ok := strings.CutPrefix(token, "operator:"); ok {
		if address == "" {
			return nil, ErrInvalidToken
		}
		return &Identity{Address: address, Operator: true}, nil
	}
	return &Identity{Address: token}, nil
}
