package state

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/store"
)

var testSecret = []byte("test-shared-secret")

func newTestManager(t *testing.T, opts ...Option) (*Manager, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	opts = append([]Option{WithJWTSecret(testSecret)}, opts...)
	m, err := NewManager(context.Background(), st, KeyPrefix+"263771234567", opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, st
}

func signToken(t *testing.T, expiry time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"memberID": "m-1",
		"exp":      time.Now().Add(expiry).Unix(),
	})
	signed, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func testDashboard() *models.Dashboard {
	return &models.Dashboard{
		Member: models.Member{MemberID: "m-1", MemberTier: 1, FirstName: "Ama"},
		Accounts: []models.Account{
			{AccountID: "a-1", AccountName: "Personal", AccountHandle: "ama"},
			{AccountID: "a-2", AccountName: "Shop", AccountHandle: "amashop"},
		},
	}
}

func TestNewManagerRejectsBadKeyPrefix(t *testing.T) {
	_, err := NewManager(context.Background(), store.NewInMemoryStore(), "user:263771234567")
	if err == nil {
		t.Fatal("expected error for missing channel: prefix")
	}
	var serr *Error
	if !errorAs(err, &serr) {
		t.Fatalf("error type = %T, want *state.Error", err)
	}
}

func errorAs(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	if err := m.InitializeChannel(ctx, models.ChannelTypeWhatsApp, "263771234567", true); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateState(ctx, map[string]any{
		models.StateKeyAuth:      &models.Auth{Token: "tok"},
		models.StateKeyDashboard: testDashboard(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateFlowState(ctx, "offer_secured", "AmountInput", map[string]any{"amount": 25.0}, "", true); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same store must observe everything.
	reloaded, err := NewManager(ctx, st, KeyPrefix+"263771234567", WithJWTSecret(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := reloaded.GetChannelID(); id != "263771234567" {
		t.Errorf("channel id = %q", id)
	}
	if !reloaded.IsMockTesting() {
		t.Error("mock_testing lost")
	}
	if reloaded.GetPath() != "offer_secured" || reloaded.GetComponent() != "AmountInput" {
		t.Errorf("position = %s.%s", reloaded.GetPath(), reloaded.GetComponent())
	}
	if !reloaded.IsAwaitingInput() {
		t.Error("awaiting_input lost")
	}
	if got := reloaded.ComponentScratch()["amount"]; got != 25.0 {
		t.Errorf("scratch amount = %v", got)
	}
}

func TestUpdateStateRejectsChannelMutation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	if err := m.InitializeChannel(ctx, models.ChannelTypeWhatsApp, "263771234567", false); err != nil {
		t.Fatal(err)
	}

	err := m.UpdateState(ctx, map[string]any{"channel": map[string]any{"identifier": "other"}})
	if err == nil {
		t.Fatal("expected typed error on channel mutation")
	}
	if id, _ := m.GetChannelID(); id != "263771234567" {
		t.Errorf("channel mutated to %q", id)
	}
}

func TestUpdateStateRejectsUnknownKey(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.UpdateState(context.Background(), map[string]any{"wat": 1}); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestUpdateStateActiveAccountMustResolve(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.UpdateState(ctx, map[string]any{models.StateKeyDashboard: testDashboard()}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateState(ctx, map[string]any{models.StateKeyActiveAccountID: "a-404"}); err == nil {
		t.Fatal("expected error for unresolvable active account")
	}
	if err := m.UpdateState(ctx, map[string]any{models.StateKeyActiveAccountID: "a-2"}); err != nil {
		t.Fatalf("valid active account rejected: %v", err)
	}
	account, ok := m.ActiveAccount()
	if !ok || account.AccountID != "a-2" {
		t.Errorf("active account = %+v (%v)", account, ok)
	}
}

func TestUpdateFlowStateNilDataPreservesScratch(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.UpdateFlowState(ctx, "offer_secured", "AmountInput", map[string]any{"amount": 25.0}, "", false); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateFlowState(ctx, "offer_secured", "HandleInput", nil, "", false); err != nil {
		t.Fatal(err)
	}
	if got := m.ComponentScratch()["amount"]; got != 25.0 {
		t.Errorf("scratch lost on nil-data transition: %v", got)
	}

	// Explicit data replaces the region.
	if err := m.UpdateFlowState(ctx, "offer_secured", "HandleInput", map[string]any{}, "", false); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.ComponentScratch()["amount"]; ok {
		t.Error("explicit empty data did not clear scratch")
	}
}

func TestClearAllStatePreservesMockTesting(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.InitializeChannel(ctx, models.ChannelTypeWhatsApp, "263771234567", true); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateState(ctx, map[string]any{models.StateKeyDashboard: testDashboard()}); err != nil {
		t.Fatal(err)
	}

	m.ClearAllState(ctx)
	if !m.IsMockTesting() {
		t.Error("mock_testing cleared")
	}
	if m.Dashboard() != nil {
		t.Error("dashboard survived clear")
	}
	if _, err := m.GetChannelID(); err == nil {
		t.Error("channel survived clear")
	}
}

func TestIsAuthenticated(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		dash  *models.Dashboard
		want  bool
	}{
		{"valid token and member", signTokenHelper, testDashboard(), true},
		{"expired token", "expired", testDashboard(), false},
		{"garbage token", "not-a-jwt", testDashboard(), false},
		{"no token", "", testDashboard(), false},
		{"no member", signTokenHelper, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			token := tt.token
			switch token {
			case signTokenHelper:
				token = signToken(t, time.Hour)
			case "expired":
				token = signToken(t, -time.Hour)
			}
			updates := map[string]any{}
			if token != "" {
				updates[models.StateKeyAuth] = &models.Auth{Token: token}
			}
			if tt.dash != nil {
				updates[models.StateKeyDashboard] = tt.dash
			}
			if len(updates) > 0 {
				if err := m.UpdateState(ctx, updates); err != nil {
					t.Fatal(err)
				}
			}
			if got := m.IsAuthenticated(); got != tt.want {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

const signTokenHelper = "\x00sign"

func TestGetMemberIDRequiresAuthentication(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.UpdateState(ctx, map[string]any{models.StateKeyDashboard: testDashboard()}); err != nil {
		t.Fatal(err)
	}
	if id := m.GetMemberID(); id != "" {
		t.Errorf("member id without token = %q", id)
	}

	if err := m.UpdateState(ctx, map[string]any{models.StateKeyAuth: &models.Auth{Token: signToken(t, time.Hour)}}); err != nil {
		t.Fatal(err)
	}
	if id := m.GetMemberID(); id != "m-1" {
		t.Errorf("member id = %q, want m-1", id)
	}
}

func TestSetIncomingMessageValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.SetIncomingMessage(ctx, nil); err == nil {
		t.Error("nil message accepted")
	}
	if err := m.SetIncomingMessage(ctx, &models.Message{Type: "carrier_pigeon"}); err == nil {
		t.Error("unsupported message type accepted")
	}
	msg := &models.Message{ID: "m1", Type: models.MessageTypeText, Body: "hi"}
	if err := m.SetIncomingMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if got := m.GetIncomingMessage(); got == nil || got.ID != "m1" {
		t.Errorf("incoming message = %+v", got)
	}
}

func TestGetStateValueDefaults(t *testing.T) {
	m, _ := newTestManager(t)
	if got := m.GetStateValue(models.StateKeyDashboard, "fallback"); got != "fallback" {
		t.Errorf("default not returned: %v", got)
	}
	if got := m.GetStateValue("unknown_key", 42); got != 42 {
		t.Errorf("unknown key default = %v", got)
	}
}

func TestStoreFailureDegradesToEmptyDocument(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	if err := st.Set(ctx, KeyPrefix+"263771234567", []byte("{not json"), 0); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(ctx, st, KeyPrefix+"263771234567")
	if err != nil {
		t.Fatalf("corrupt document failed the manager: %v", err)
	}
	if m.HasFlowState() {
		t.Error("corrupt document produced flow state")
	}
}
