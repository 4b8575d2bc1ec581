// Package credex implements the HTTP client for the external CredEx ledger
// API. Business failures (unknown member, invalid handle, rejected offer)
// are values on the Result, not errors; errors are reserved for transport
// and protocol faults.
package credex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vimbiso/vimbiso-chatserver/internal/models"
)

// DefaultTimeout bounds every CredEx API request.
const DefaultTimeout = 30 * time.Second

// Result is the normalized outcome of a CredEx API call. Every successful
// response carries an action section and, for member-scoped calls, a fresh
// dashboard read model that replaces the cached one wholesale.
type Result struct {
	Success   bool
	NotFound  bool // member, handle or resource does not exist
	Message   string
	Token     string
	Action    *models.Action
	Dashboard *models.Dashboard

	// Ledger fields, populated by GetLedger only.
	Ledger  []models.LedgerEntry
	HasMore bool
}

// CreateCredexRequest is the payload for a secured credex offer.
type CreateCredexRequest struct {
	IssuerAccountID   string  `json:"issuerAccountID"`
	ReceiverAccountID string  `json:"receiverAccountID"`
	Denomination      string  `json:"Denomination"`
	InitialAmount     float64 `json:"InitialAmount"`
	CredexType        string  `json:"credexType"`
	OfferOrRequest    string  `json:"OFFERorREQUEST"`
	SecuredCredex     bool    `json:"securedCredex"`
}

// API is the operation surface components call. A fake implementation backs
// the component tests.
type API interface {
	Login(ctx context.Context, phone string) (*Result, error)
	OnboardMember(ctx context.Context, firstName, lastName, phone, defaultDenom string) (*Result, error)
	GetAccountByHandle(ctx context.Context, token, handle string) (*Result, error)
	CreateCredex(ctx context.Context, token string, req CreateCredexRequest) (*Result, error)
	AcceptCredex(ctx context.Context, token, credexID string) (*Result, error)
	DeclineCredex(ctx context.Context, token, credexID string) (*Result, error)
	CancelCredex(ctx context.Context, token, credexID string) (*Result, error)
	GetLedger(ctx context.Context, token, accountID string, startRow, numRows int) (*Result, error)
	UpgradeMemberTier(ctx context.Context, token, memberID string, newTier int) (*Result, error)
}

// Opts holds configuration options for the CredEx client.
type Opts struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MockTesting bool
	HTTPClient  *http.Client
}

// Option defines a configuration option for the CredEx client.
type Option func(*Opts)

// WithBaseURL sets the CredEx API base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIKey sets the x-client-api-key header value.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithMockTesting marks every request with the mock-testing header so the
// CredEx side routes it to the sandbox ledger.
func WithMockTesting(mock bool) Option {
	return func(o *Opts) { o.MockTesting = mock }
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is the concrete CredEx API client.
type Client struct {
	baseURL string
	apiKey  string
	mock    bool
	http    *http.Client
}

// NewClient creates a CredEx client with the given options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("credex: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		mock:    cfg.MockTesting,
		http:    httpClient,
	}, nil
}

// envelope mirrors the CredEx response body: a data section holding the
// action outcome and the refreshed dashboard.
type envelope struct {
	Data struct {
		Action struct {
			ID      string            `json:"id"`
			Type    string            `json:"type"`
			Details map[string]string `json:"details"`
		} `json:"action"`
		Dashboard *models.Dashboard `json:"dashboard"`
		Ledger    struct {
			Entries []models.LedgerEntry `json:"entries"`
			HasMore bool                 `json:"hasMore"`
		} `json:"ledger"`
	} `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) post(ctx context.Context, endpoint, token string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("credex: marshal %s payload: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("credex: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-client-api-key", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.mock {
		req.Header.Set("X-Mock-Testing", "true")
	}

	slog.Debug("CredEx API request", "endpoint", endpoint, "mock", c.mock)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credex: %s request failed: %w", endpoint, err)
	}
	return resp, nil
}

// decode turns an HTTP response into a Result. Status codes outside the
// expected set become failed results carrying the server's message; bodies
// that do not parse become errors.
func decode(resp *http.Response, endpoint string, okStatuses ...int) (*Result, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("credex: read %s response: %w", endpoint, err)
	}

	var env envelope
	if len(body) > 0 {
		if uerr := json.Unmarshal(body, &env); uerr != nil && statusIn(resp.StatusCode, okStatuses) {
			return nil, fmt.Errorf("credex: parse %s response: %w", endpoint, uerr)
		}
	}

	res := &Result{
		Message:   firstNonEmpty(env.Message, env.Error),
		Dashboard: env.Data.Dashboard,
		Ledger:    env.Data.Ledger.Entries,
		HasMore:   env.Data.Ledger.HasMore,
	}
	if env.Data.Action.Type != "" {
		res.Action = &models.Action{Type: env.Data.Action.Type, Details: env.Data.Action.Details}
		res.Token = env.Data.Action.Details["token"]
	}

	switch {
	case statusIn(resp.StatusCode, okStatuses):
		res.Success = true
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		res.NotFound = true
		slog.Debug("CredEx API resource not found", "endpoint", endpoint, "status", resp.StatusCode)
	case resp.StatusCode == http.StatusBadGateway:
		res.Message = "server temporarily unavailable"
		slog.Error("CredEx API temporarily unavailable", "endpoint", endpoint)
	default:
		slog.Error("CredEx API unexpected status", "endpoint", endpoint, "status", resp.StatusCode)
		if res.Message == "" {
			res.Message = fmt.Sprintf("%s failed with status %d", endpoint, resp.StatusCode)
		}
	}
	return res, nil
}

func statusIn(code int, set []int) bool {
	for _, s := range set {
		if code == s {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Login authenticates a channel by phone number. A member unknown to the
// ledger comes back as NotFound, which starts onboarding.
func (c *Client) Login(ctx context.Context, phone string) (*Result, error) {
	resp, err := c.post(ctx, "login", "", map[string]string{"phone": phone})
	if err != nil {
		return nil, err
	}
	res, err := decode(resp, "login", http.StatusOK)
	if err != nil {
		return nil, err
	}
	if res.Success && res.Token == "" {
		res.Success = false
		res.Message = "login response missing token"
		slog.Error("CredEx login response missing token")
	}
	return res, nil
}

// OnboardMember registers a new member and logs them in.
func (c *Client) OnboardMember(ctx context.Context, firstName, lastName, phone, defaultDenom string) (*Result, error) {
	payload := map[string]string{
		"firstname":    firstName,
		"lastname":     lastName,
		"phone":        phone,
		"defaultDenom": defaultDenom,
	}
	resp, err := c.post(ctx, "onboardMember", "", payload)
	if err != nil {
		return nil, err
	}
	res, err := decode(resp, "onboardMember", http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, err
	}
	if res.Success && res.Token == "" {
		res.Success = false
		res.Message = "onboarding response missing token"
		slog.Error("CredEx onboarding response missing token")
	}
	return res, nil
}

// GetAccountByHandle resolves a recipient account handle. Unknown handles
// are NotFound results, which the offer flow absorbs as a retry.
func (c *Client) GetAccountByHandle(ctx context.Context, token, handle string) (*Result, error) {
	resp, err := c.post(ctx, "getAccountByHandle", token, map[string]string{"accountHandle": handle})
	if err != nil {
		return nil, err
	}
	return decode(resp, "getAccountByHandle", http.StatusOK)
}

// CreateCredex issues a secured credex offer.
func (c *Client) CreateCredex(ctx context.Context, token string, req CreateCredexRequest) (*Result, error) {
	resp, err := c.post(ctx, "createCredex", token, req)
	if err != nil {
		return nil, err
	}
	return decode(resp, "createCredex", http.StatusOK, http.StatusCreated)
}

// AcceptCredex accepts a pending incoming offer.
func (c *Client) AcceptCredex(ctx context.Context, token, credexID string) (*Result, error) {
	resp, err := c.post(ctx, "acceptCredex", token, map[string]string{"credexID": credexID})
	if err != nil {
		return nil, err
	}
	return decode(resp, "acceptCredex", http.StatusOK)
}

// DeclineCredex declines a pending incoming offer.
func (c *Client) DeclineCredex(ctx context.Context, token, credexID string) (*Result, error) {
	resp, err := c.post(ctx, "declineCredex", token, map[string]string{"credexID": credexID})
	if err != nil {
		return nil, err
	}
	return decode(resp, "declineCredex", http.StatusOK)
}

// CancelCredex cancels a pending outgoing offer.
func (c *Client) CancelCredex(ctx context.Context, token, credexID string) (*Result, error) {
	resp, err := c.post(ctx, "cancelCredex", token, map[string]string{"credexID": credexID})
	if err != nil {
		return nil, err
	}
	return decode(resp, "cancelCredex", http.StatusOK)
}

// GetLedger fetches one page of an account's ledger.
func (c *Client) GetLedger(ctx context.Context, token, accountID string, startRow, numRows int) (*Result, error) {
	payload := map[string]any{
		"accountID": accountID,
		"startRow":  startRow,
		"numRows":   numRows,
	}
	resp, err := c.post(ctx, "getLedger", token, payload)
	if err != nil {
		return nil, err
	}
	return decode(resp, "getLedger", http.StatusOK)
}

// UpgradeMemberTier raises the member's tier on the ledger.
func (c *Client) UpgradeMemberTier(ctx context.Context, token, memberID string, newTier int) (*Result, error) {
	payload := map[string]any{
		"memberIDtoBeUpgraded": memberID,
		"newTier":              newTier,
	}
	resp, err := c.post(ctx, "upgradeMemberTier", token, payload)
	if err != nil {
		return nil, err
	}
	return decode(resp, "upgradeMemberTier", http.StatusOK)
}
