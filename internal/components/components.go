// Package components implements the conversation step handlers registered
// with the flow engine. Each component reads its input from the state
// manager's incoming message and scratch region, performs its side effects
// through the messaging service or the CredEx API, and reports a flow
// outcome.
package components

import (
	"context"
	"strconv"
	"strings"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/messaging"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// Defaults for the ledger page size and the secured-offer denominations.
const (
	DefaultLedgerPageSize = 7
	DefaultDenom          = "USD"
)

// AllowedDenoms is the denomination whitelist for secured offers.
var AllowedDenoms = map[string]struct{}{
	"USD": {}, "ZWG": {}, "XAU": {}, "CAD": {},
}

// MultiAccountTier is the member tier from which the multi-account
// dashboard replaces the single-account one.
const MultiAccountTier = 5

// Deps carries the shared dependencies injected into every component
// constructor at registry build time.
type Deps struct {
	API            credex.API
	LedgerPageSize int
}

// NewRegistry builds the closed component registry. Every name the
// transition table can produce has a constructor here; the flow engine
// treats a miss as a wiring bug.
func NewRegistry(deps Deps) flow.Registry {
	if deps.LedgerPageSize <= 0 {
		deps.LedgerPageSize = DefaultLedgerPageSize
	}
	return flow.Registry{
		flow.CompGreeting:                 func() flow.Component { return &Greeting{} },
		flow.CompLoginApiCall:             func() flow.Component { return &LoginApiCall{api: deps.API} },
		flow.CompWelcome:                  func() flow.Component { return &Welcome{} },
		flow.CompFirstNameInput:           func() flow.Component { return &NameInput{name: flow.CompFirstNameInput, scratchKey: "first_name", prompt: "What is your first name?"} },
		flow.CompLastNameInput:            func() flow.Component { return &NameInput{name: flow.CompLastNameInput, scratchKey: "last_name", prompt: "And your last name?"} },
		flow.CompProcessingNow:            func() flow.Component { return &ProcessingNow{} },
		flow.CompOnBoardMemberApiCall:     func() flow.Component { return &OnBoardMemberApiCall{api: deps.API} },
		flow.CompAccountDashboard:         func() flow.Component { return &AccountDashboard{} },
		flow.CompMultiAccountDashboard:    func() flow.Component { return &MultiAccountDashboard{} },
		flow.CompAmountInput:              func() flow.Component { return &AmountInput{} },
		flow.CompHandleInput:              func() flow.Component { return &HandleInput{} },
		flow.CompValidateAccountApiCall:   func() flow.Component { return &ValidateAccountApiCall{api: deps.API} },
		flow.CompConfirmOfferSecured:      func() flow.Component { return &ConfirmOfferSecured{} },
		flow.CompCreateCredexApiCall:      func() flow.Component { return &CreateCredexApiCall{api: deps.API} },
		flow.CompOfferListDisplay:         func() flow.Component { return &OfferListDisplay{} },
		flow.CompProcessOfferApiCall:      func() flow.Component { return &ProcessOfferApiCall{api: deps.API} },
		flow.CompConfirmUpgrade:           func() flow.Component { return &ConfirmUpgrade{} },
		flow.CompUpgradeMembertierApiCall: func() flow.Component { return &UpgradeMembertierApiCall{api: deps.API} },
		flow.CompGetLedgerApiCall:         func() flow.Component { return &GetLedgerApiCall{api: deps.API, pageSize: deps.LedgerPageSize} },
		flow.CompViewLedger:               func() flow.Component { return &ViewLedger{} },
	}
}

// sendTo resolves the messaging service and the recipient for a turn.
func sendTo(sm *state.Manager) (messaging.Service, string, error) {
	svc, err := sm.Messaging()
	if err != nil {
		return nil, "", err
	}
	to, err := sm.GetChannelID()
	if err != nil {
		return nil, "", err
	}
	return svc, to, nil
}

// incomingText returns the normalized text of the stashed inbound message:
// the interactive selection id when present, otherwise the trimmed body.
func incomingText(sm *state.Manager) string {
	msg := sm.GetIncomingMessage()
	if msg == nil {
		return ""
	}
	if msg.Type == models.MessageTypeInteractive && msg.InteractiveID != "" {
		return msg.InteractiveID
	}
	return strings.TrimSpace(msg.Body)
}

// setScratch merges updates into the step scratch region and persists the
// flow envelope in place.
func setScratch(ctx context.Context, sm *state.Manager, updates map[string]any) error {
	data := map[string]any{}
	for k, v := range sm.ComponentScratch() {
		data[k] = v
	}
	for k, v := range updates {
		data[k] = v
	}
	return sm.UpdateFlowState(ctx, sm.GetPath(), sm.GetComponent(), data, sm.GetComponentResult(), sm.IsAwaitingInput())
}

// scratchString reads a string value out of the scratch region.
func scratchString(sm *state.Manager, key string) string {
	v, _ := sm.ComponentScratch()[key].(string)
	return v
}

// scratchInt reads an integer out of the scratch region; JSON round trips
// store numbers as float64.
func scratchInt(sm *state.Manager, key string) int {
	switch v := sm.ComponentScratch()[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// alreadyHandled reports whether a side-effecting step already completed
// for the current inbound message. API steps use it to stay idempotent
// under webhook replays.
func alreadyHandled(sm *state.Manager, opKey string) bool {
	msg := sm.GetIncomingMessage()
	if msg == nil || msg.ID == "" {
		return false
	}
	return scratchString(sm, opKey) == msg.ID
}

// markHandled records the inbound message id for a completed side effect.
func markHandled(ctx context.Context, sm *state.Manager, opKey string) {
	msg := sm.GetIncomingMessage()
	if msg == nil || msg.ID == "" {
		return
	}
	_ = setScratch(ctx, sm, map[string]any{opKey: msg.ID})
}

// selectMenuItem matches a reply against a menu: the interactive id, the
// one-based item number, or the item id typed as text.
func selectMenuItem(reply string, items []models.MenuItem) (models.MenuItem, bool) {
	reply = strings.TrimSpace(strings.ToLower(reply))
	if reply == "" {
		return models.MenuItem{}, false
	}
	if n, err := strconv.Atoi(reply); err == nil {
		if n >= 1 && n <= len(items) {
			return items[n-1], true
		}
		return models.MenuItem{}, false
	}
	for _, item := range items {
		if strings.ToLower(item.ID) == reply {
			return item, true
		}
	}
	return models.MenuItem{}, false
}
