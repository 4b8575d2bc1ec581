package components

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/messaging"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
	"github.com/vimbiso/vimbiso-chatserver/internal/store"
)

var testSecret = []byte("component-test-secret")

const testChannel = "263771234567"

func signedToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"memberID": "m-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func memberDashboard(incoming, outgoing []models.Offer) *models.Dashboard {
	return &models.Dashboard{
		Member: models.Member{MemberID: "m-1", MemberTier: 1, FirstName: "Ama", LastName: "Moyo"},
		Accounts: []models.Account{{
			AccountID:      "a-1",
			AccountName:    "Personal",
			AccountHandle:  "ama",
			Balances:       []string{"100.00 USD"},
			NetBalance:     "100.00 USD",
			IncomingOffers: incoming,
			OutgoingOffers: outgoing,
		}},
	}
}

type harness struct {
	processor *flow.Processor
	store     *store.InMemoryStore
	recorder  *messaging.Recorder
	api       *credex.Fake
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewInMemoryStore()
	rec := messaging.NewRecorder()
	api := &credex.Fake{}
	reg := NewRegistry(Deps{API: api})
	p := flow.NewProcessor(st, flow.NewActivator(reg),
		flow.WithMessaging(rec),
		flow.WithStateOptions(state.WithJWTSecret(testSecret)),
	)
	return &harness{processor: p, store: st, recorder: rec, api: api}
}

func (h *harness) send(t *testing.T, id, body string) string {
	t.Helper()
	return h.processor.ProcessMessage(context.Background(), &flow.Inbound{
		ChannelType: models.ChannelTypeWhatsApp,
		ChannelID:   testChannel,
		Message:     &models.Message{ID: id, Type: models.MessageTypeText, Body: body},
	})
}

// sendInteractive delivers a button/row selection. Text bodies like "yes"
// collide with the greeting commands, so confirmations ride as interactive
// replies the way the channels deliver them.
func (h *harness) sendInteractive(t *testing.T, id, selection string) string {
	t.Helper()
	return h.processor.ProcessMessage(context.Background(), &flow.Inbound{
		ChannelType: models.ChannelTypeWhatsApp,
		ChannelID:   testChannel,
		Message:     &models.Message{ID: id, Type: models.MessageTypeInteractive, InteractiveID: selection},
	})
}

func (h *harness) state(t *testing.T) *state.Manager {
	t.Helper()
	sm, err := state.NewManager(context.Background(), h.store, state.KeyPrefix+testChannel, state.WithJWTSecret(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return sm
}

// seed puts a conversation directly at a flow position with the given
// session state, the way mid-flow tests need it.
func (h *harness) seed(t *testing.T, dash *models.Dashboard, path, comp string, scratch map[string]any) {
	t.Helper()
	ctx := context.Background()
	sm := h.state(t)
	if err := sm.InitializeChannel(ctx, models.ChannelTypeWhatsApp, testChannel, false); err != nil {
		t.Fatal(err)
	}
	updates := map[string]any{models.StateKeyAuth: &models.Auth{Token: signedToken(t)}}
	if dash != nil {
		updates[models.StateKeyDashboard] = dash
		updates[models.StateKeyActiveAccountID] = dash.Accounts[0].AccountID
	}
	if err := sm.UpdateState(ctx, updates); err != nil {
		t.Fatal(err)
	}
	if err := sm.UpdateFlowState(ctx, path, comp, scratch, "", false); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) position(t *testing.T) (string, string, bool) {
	sm := h.state(t)
	return sm.GetPath(), sm.GetComponent(), sm.IsAwaitingInput()
}

func loginSuccess(t *testing.T, dash *models.Dashboard) func(ctx context.Context, phone string) (*credex.Result, error) {
	token := signedToken(t)
	return func(ctx context.Context, phone string) (*credex.Result, error) {
		return &credex.Result{
			Success:   true,
			Token:     token,
			Dashboard: dash,
			Action:    &models.Action{Type: "MEMBER_LOGIN", Details: map[string]string{}},
		}, nil
	}
}

// Scenario: a new channel greets, the ledger does not know the number, and
// onboarding starts in the same turn up to the first name prompt.
func TestNewMemberGreetingStartsOnboarding(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = func(ctx context.Context, phone string) (*credex.Result, error) {
		return &credex.Result{NotFound: true}, nil
	}

	if reply := h.send(t, "m1", "hi"); reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}

	path, comp, awaiting := h.position(t)
	if path != flow.PathOnboard || comp != flow.CompFirstNameInput || !awaiting {
		t.Fatalf("position = %s.%s awaiting=%v, want onboard.FirstNameInput waiting", path, comp, awaiting)
	}

	// Greeting, welcome notice and the first-name prompt all went out.
	if len(h.recorder.Sent) != 3 {
		t.Errorf("sent %d messages, want 3", len(h.recorder.Sent))
	}
}

func TestOnboardingCollectsNamesAndRegisters(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = func(ctx context.Context, phone string) (*credex.Result, error) {
		return &credex.Result{NotFound: true}, nil
	}
	var gotFirst, gotLast, gotPhone string
	h.api.OnboardMemberFn = func(ctx context.Context, firstName, lastName, phone, denom string) (*credex.Result, error) {
		gotFirst, gotLast, gotPhone = firstName, lastName, phone
		return loginSuccess(t, memberDashboard(nil, nil))(ctx, phone)
	}

	h.send(t, "m1", "hi")
	if reply := h.send(t, "m2", "Ama"); reply != "" {
		t.Fatalf("first name rejected: %q", reply)
	}
	if reply := h.send(t, "m3", "Moyo"); reply != "" {
		t.Fatalf("last name rejected: %q", reply)
	}

	if gotFirst != "Ama" || gotLast != "Moyo" || gotPhone != testChannel {
		t.Errorf("onboarded with %q %q %q", gotFirst, gotLast, gotPhone)
	}
	path, comp, awaiting := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard || !awaiting {
		t.Errorf("position = %s.%s awaiting=%v, want account dashboard waiting", path, comp, awaiting)
	}
}

func TestNameInputValidation(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = func(ctx context.Context, phone string) (*credex.Result, error) {
		return &credex.Result{NotFound: true}, nil
	}
	h.send(t, "m1", "hi")

	if reply := h.send(t, "m2", "Jo"); reply == "" {
		t.Error("two-character name accepted")
	}
	_, comp, awaiting := h.position(t)
	if comp != flow.CompFirstNameInput || !awaiting {
		t.Errorf("position moved after invalid name: %s awaiting=%v", comp, awaiting)
	}
}

// Scenario: an authenticated dashboard selection enters the secured-offer
// flow and stops at the amount prompt.
func TestDashboardSelectionEntersOfferFlow(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = loginSuccess(t, memberDashboard(nil, nil))

	h.send(t, "m1", "hi")
	path, comp, awaiting := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard || !awaiting {
		t.Fatalf("login did not land on dashboard: %s.%s awaiting=%v", path, comp, awaiting)
	}

	// "Offer secured credex" is always the first menu item.
	if reply := h.send(t, "m2", "1"); reply != "" {
		t.Fatalf("selection reply = %q", reply)
	}
	path, comp, awaiting = h.position(t)
	if path != flow.PathOfferSecured || comp != flow.CompAmountInput || !awaiting {
		t.Errorf("position = %s.%s awaiting=%v, want offer_secured.AmountInput waiting", path, comp, awaiting)
	}
}

func TestDashboardRejectsUnknownSelection(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = loginSuccess(t, memberDashboard(nil, nil))
	h.send(t, "m1", "hi")

	if reply := h.send(t, "m2", "99"); reply == "" {
		t.Error("out-of-range selection accepted")
	}
	_, comp, awaiting := h.position(t)
	if comp != flow.CompAccountDashboard || !awaiting {
		t.Errorf("dashboard lost after invalid selection: %s awaiting=%v", comp, awaiting)
	}
}

// Scenario: a handle that fails remote validation returns the flow to the
// handle prompt instead of moving forward.
func TestInvalidHandleReturnsToHandleInput(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = loginSuccess(t, memberDashboard(nil, nil))
	h.api.GetAccountByHandleFn = func(ctx context.Context, token, handle string) (*credex.Result, error) {
		return &credex.Result{NotFound: true}, nil
	}

	h.send(t, "m1", "hi")
	h.send(t, "m2", "1")        // offer secured
	h.send(t, "m3", "25 USD")   // amount
	h.send(t, "m4", "nobody")   // handle, fails validation

	path, comp, awaiting := h.position(t)
	if path != flow.PathOfferSecured || comp != flow.CompHandleInput || !awaiting {
		t.Fatalf("position = %s.%s awaiting=%v, want offer_secured.HandleInput waiting", path, comp, awaiting)
	}
}

func TestSecuredOfferHappyPath(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = loginSuccess(t, memberDashboard(nil, nil))
	h.api.GetAccountByHandleFn = func(ctx context.Context, token, handle string) (*credex.Result, error) {
		return &credex.Result{
			Success: true,
			Action:  &models.Action{Type: "ACCOUNT_FOUND", Details: map[string]string{"accountID": "a-9", "accountName": "Bea's Shop"}},
		}, nil
	}
	var created *credex.CreateCredexRequest
	h.api.CreateCredexFn = func(ctx context.Context, token string, req credex.CreateCredexRequest) (*credex.Result, error) {
		created = &req
		return &credex.Result{Success: true, Dashboard: memberDashboard(nil, nil)}, nil
	}

	h.send(t, "m1", "hi")
	h.send(t, "m2", "1")
	h.send(t, "m3", "25 USD")
	h.send(t, "m4", "bea")
	h.sendInteractive(t, "m5", "yes")

	if created == nil {
		t.Fatal("CreateCredex never called")
	}
	if created.ReceiverAccountID != "a-9" || created.InitialAmount != 25 || created.Denomination != "USD" || created.IssuerAccountID != "a-1" {
		t.Errorf("created = %+v", created)
	}
	path, comp, _ := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard {
		t.Errorf("position = %s.%s, want account dashboard", path, comp)
	}
}

func TestConfirmNoCancelsOffer(t *testing.T) {
	h := newHarness(t)
	h.api.LoginFn = loginSuccess(t, memberDashboard(nil, nil))
	h.api.GetAccountByHandleFn = func(ctx context.Context, token, handle string) (*credex.Result, error) {
		return &credex.Result{
			Success: true,
			Action:  &models.Action{Type: "ACCOUNT_FOUND", Details: map[string]string{"accountID": "a-9", "accountName": "Bea"}},
		}, nil
	}

	h.send(t, "m1", "hi")
	h.send(t, "m2", "1")
	h.send(t, "m3", "25")
	h.send(t, "m4", "bea")
	h.sendInteractive(t, "m5", "no")

	for _, call := range h.api.Calls {
		if call == "CreateCredex" {
			t.Fatal("offer created despite cancellation")
		}
	}
	path, comp, _ := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard {
		t.Errorf("position = %s.%s, want account dashboard", path, comp)
	}
}

// Scenario: an empty offer list reports and returns to the dashboard in
// the same turn.
func TestEmptyOfferListReturnsToDashboard(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memberDashboard(nil, nil), flow.PathAcceptOffer, flow.CompOfferListDisplay, nil)

	if reply := h.send(t, "m1", "anything"); reply != "" {
		t.Fatalf("reply = %q", reply)
	}
	path, comp, awaiting := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard || !awaiting {
		t.Errorf("position = %s.%s awaiting=%v, want account dashboard waiting", path, comp, awaiting)
	}

	found := false
	for _, msg := range h.recorder.Sent {
		if msg.Body == "There are no offers to accept right now." {
			found = true
		}
	}
	if !found {
		t.Error("no-offers notice not sent")
	}
}

func TestAcceptOfferFlow(t *testing.T) {
	incoming := []models.Offer{
		{CredexID: "cx-1", FormattedAmount: "10.00 USD", CounterpartyAccountName: "Bea"},
		{CredexID: "cx-2", FormattedAmount: "5.00 USD", CounterpartyAccountName: "Cal"},
	}
	h := newHarness(t)
	h.seed(t, memberDashboard(incoming, nil), flow.PathAcceptOffer, flow.CompOfferListDisplay, nil)

	var accepted []string
	h.api.AcceptCredexFn = func(ctx context.Context, token, credexID string) (*credex.Result, error) {
		accepted = append(accepted, credexID)
		// Refreshed dashboard no longer carries the accepted offer.
		var remaining []models.Offer
		for _, o := range incoming {
			if o.CredexID != credexID {
				remaining = append(remaining, o)
			}
		}
		return &credex.Result{Success: true, Dashboard: memberDashboard(remaining, nil)}, nil
	}

	h.send(t, "m1", "anything") // renders the offer list
	h.send(t, "m2", "1")        // accept the first offer

	if len(accepted) != 1 || accepted[0] != "cx-1" {
		t.Fatalf("accepted = %v", accepted)
	}
	// One offer remains, so the flow loops back to the list.
	path, comp, awaiting := h.position(t)
	if path != flow.PathAcceptOffer || comp != flow.CompOfferListDisplay || !awaiting {
		t.Errorf("position = %s.%s awaiting=%v, want accept_offer list waiting", path, comp, awaiting)
	}
}

// Scenario: an unexpected failure inside CreateCredexApiCall resets the
// conversation to the login flow and replies with a generic error.
func TestCreateCredexFailureResetsToLogin(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memberDashboard(nil, nil), flow.PathOfferSecured, flow.CompCreateCredexApiCall, map[string]any{
		"amount": 25.0, "denom": "USD", "receiver_account_id": "a-9", "receiver_name": "Bea",
	})
	h.api.CreateCredexFn = func(ctx context.Context, token string, req credex.CreateCredexRequest) (*credex.Result, error) {
		panic("ledger wire format changed")
	}

	reply := h.send(t, "m1", "anything")
	if reply == "" {
		t.Fatal("expected a generic error reply")
	}
	path, comp, _ := h.position(t)
	if path != flow.PathLogin || comp != flow.CompGreeting {
		t.Errorf("position = %s.%s, want login.Greeting", path, comp)
	}
	if msg := h.state(t).GetIncomingMessage(); msg == nil || msg.ID != "m1" {
		t.Errorf("inbound message not restored: %+v", msg)
	}
}

// Replaying a message the side-effecting step already handled must not
// repeat the external call.
func TestCreateCredexReplayIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memberDashboard(nil, nil), flow.PathOfferSecured, flow.CompCreateCredexApiCall, map[string]any{
		"amount": 25.0, "denom": "USD", "receiver_account_id": "a-9", "receiver_name": "Bea",
		"created_msg": "m-yes",
	})

	h.sendInteractive(t, "m-yes", "yes")

	for _, call := range h.api.Calls {
		if call == "CreateCredex" {
			t.Fatal("duplicate delivery re-created the offer")
		}
	}
	path, comp, _ := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard {
		t.Errorf("position = %s.%s, want account dashboard", path, comp)
	}
}

func TestLedgerPagination(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memberDashboard(nil, nil), flow.PathViewLedger, flow.CompProcessingNow, map[string]any{"ledger_offset": 0})

	var offsets []int
	h.api.GetLedgerFn = func(ctx context.Context, token, accountID string, startRow, numRows int) (*credex.Result, error) {
		offsets = append(offsets, startRow)
		return &credex.Result{
			Success: true,
			Ledger: []models.LedgerEntry{
				{CredexID: "cx-1", FormattedAmount: "10.00 USD", CounterpartyAccountName: "Bea"},
			},
			HasMore: startRow == 0,
		}, nil
	}

	h.send(t, "m1", "anything") // fetch + render first page
	path, comp, awaiting := h.position(t)
	if path != flow.PathViewLedger || comp != flow.CompViewLedger || !awaiting {
		t.Fatalf("position = %s.%s awaiting=%v", path, comp, awaiting)
	}

	h.send(t, "m2", "1") // "more" is item 1 while hasMore
	if len(offsets) != 2 || offsets[1] != 1 {
		t.Fatalf("offsets = %v, want second fetch at 1", offsets)
	}

	h.send(t, "m3", "1") // no more entries: only "back" remains
	path, comp, _ = h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard {
		t.Errorf("position = %s.%s, want account dashboard", path, comp)
	}
}

func TestUpgradeTierFlow(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memberDashboard(nil, nil), flow.PathUpgradeTier, flow.CompConfirmUpgrade, nil)

	var upgraded string
	var newTier int
	h.api.UpgradeMemberTierFn = func(ctx context.Context, token, memberID string, tier int) (*credex.Result, error) {
		upgraded, newTier = memberID, tier
		return &credex.Result{Success: true}, nil
	}

	h.send(t, "m1", "anything") // confirm prompt
	h.sendInteractive(t, "m2", "yes")

	if upgraded != "m-1" || newTier != 2 {
		t.Errorf("upgraded %q to tier %d", upgraded, newTier)
	}
	path, comp, _ := h.position(t)
	if path != flow.PathAccount || comp != flow.CompAccountDashboard {
		t.Errorf("position = %s.%s, want account dashboard", path, comp)
	}
}

func TestMultiAccountLoginAndSelection(t *testing.T) {
	dash := memberDashboard(nil, nil)
	dash.Member.MemberTier = 5
	dash.Accounts = append(dash.Accounts, models.Account{AccountID: "a-2", AccountName: "Shop", AccountHandle: "amashop"})
	h := newHarness(t)
	h.api.LoginFn = loginSuccess(t, dash)

	h.send(t, "m1", "hi")
	path, comp, awaiting := h.position(t)
	if path != flow.PathMultiAccount || comp != flow.CompMultiAccountDashboard || !awaiting {
		t.Fatalf("position = %s.%s awaiting=%v, want account picker", path, comp, awaiting)
	}

	h.send(t, "m2", "2")
	sm := h.state(t)
	account, ok := sm.ActiveAccount()
	if !ok || account.AccountID != "a-2" {
		t.Errorf("active account = %+v (%v), want a-2", account, ok)
	}
	if sm.GetPath() != flow.PathAccount || sm.GetComponent() != flow.CompAccountDashboard {
		t.Errorf("position = %s.%s, want account dashboard", sm.GetPath(), sm.GetComponent())
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input      string
		wantAmount float64
		wantDenom  string
		wantErr    bool
	}{
		{"25", 25, "USD", false},
		{"25.50", 25.5, "USD", false},
		{"25 usd", 25, "USD", false},
		{"3 ZWG", 3, "ZWG", false},
		{"0", 0, "", true},
		{"-5", 0, "", true},
		{"abc", 0, "", true},
		{"25 BTC", 0, "", true},
		{"", 0, "", true},
		{"25 USD extra", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			amount, denom, msg := parseAmount(tt.input)
			if (msg != "") != tt.wantErr {
				t.Fatalf("msg = %q, wantErr %v", msg, tt.wantErr)
			}
			if !tt.wantErr && (amount != tt.wantAmount || denom != tt.wantDenom) {
				t.Errorf("parsed %v %s, want %v %s", amount, denom, tt.wantAmount, tt.wantDenom)
			}
		})
	}
}

func TestSelectMenuItem(t *testing.T) {
	items := []models.MenuItem{
		{ID: "offer_secured", Title: "Offer"},
		{ID: "view_ledger", Title: "Ledger"},
	}
	tests := []struct {
		reply  string
		wantID string
		wantOK bool
	}{
		{"1", "offer_secured", true},
		{"2", "view_ledger", true},
		{"view_ledger", "view_ledger", true},
		{"VIEW_LEDGER", "view_ledger", true},
		{"3", "", false},
		{"0", "", false},
		{"nonsense", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		item, ok := selectMenuItem(tt.reply, items)
		if ok != tt.wantOK || (ok && item.ID != tt.wantID) {
			t.Errorf("selectMenuItem(%q) = %q, %v", tt.reply, item.ID, ok)
		}
	}
}

func TestGreetingTextByHour(t *testing.T) {
	morning := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	afternoon := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)

	if got := greetingText(morning); got != "Good morning! 🌅" {
		t.Errorf("morning = %q", got)
	}
	if got := greetingText(afternoon); got != "Good afternoon! ☀️" {
		t.Errorf("afternoon = %q", got)
	}
	if got := greetingText(evening); got != "Good evening! 🌙" {
		t.Errorf("evening = %q", got)
	}
}
