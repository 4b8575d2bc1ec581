package flow

// Conversation sub-flow paths.
const (
	PathLogin        = "login"
	PathOnboard      = "onboard"
	PathAccount      = "account"
	PathMultiAccount = "multi_account"
	PathOfferSecured = "offer_secured"
	PathAcceptOffer  = "accept_offer"
	PathDeclineOffer = "decline_offer"
	PathCancelOffer  = "cancel_offer"
	PathViewLedger   = "view_ledger"
	PathUpgradeTier  = "upgrade_membertier"
)

// Component names. The registry is keyed by these.
const (
	CompGreeting                 = "Greeting"
	CompLoginApiCall             = "LoginApiCall"
	CompWelcome                  = "Welcome"
	CompFirstNameInput           = "FirstNameInput"
	CompLastNameInput            = "LastNameInput"
	CompProcessingNow            = "ProcessingNow"
	CompOnBoardMemberApiCall     = "OnBoardMemberApiCall"
	CompAccountDashboard         = "AccountDashboard"
	CompMultiAccountDashboard    = "MultiAccountDashboard"
	CompAmountInput              = "AmountInput"
	CompHandleInput              = "HandleInput"
	CompValidateAccountApiCall   = "ValidateAccountApiCall"
	CompConfirmOfferSecured      = "ConfirmOfferSecured"
	CompCreateCredexApiCall      = "CreateCredexApiCall"
	CompOfferListDisplay         = "OfferListDisplay"
	CompProcessOfferApiCall      = "ProcessOfferApiCall"
	CompConfirmUpgrade           = "ConfirmUpgrade"
	CompUpgradeMembertierApiCall = "UpgradeMembertierApiCall"
	CompGetLedgerApiCall         = "GetLedgerApiCall"
	CompViewLedger               = "ViewLedger"
)

// Branching outcome tags set by components and consumed by the table.
const (
	ResultSendDashboard      = "send_dashboard"
	ResultSendMultiDashboard = "send_multi_dashboard"
	ResultStartOnboarding    = "start_onboarding"
	ResultAccountSelected    = "account_selected"
	ResultOfferSecured       = "offer_secured"
	ResultAcceptOffer        = "accept_offer"
	ResultDeclineOffer       = "decline_offer"
	ResultCancelOffer        = "cancel_offer"
	ResultViewLedger         = "view_ledger"
	ResultUpgradeTier        = "upgrade_membertier"
	ResultSwitchAccount      = "switch_account"
	ResultReturnToHandle     = "return_to_handle"
	ResultCancelled          = "cancelled"
	ResultProcessOffer       = "process_offer"
	ResultReturnToDashboard  = "return_to_dashboard"
	ResultReturnToList       = "return_to_list"
	ResultFetchMore          = "fetch_more"
)

// Position is one node of the conversation graph: a sub-flow path plus the
// component within it.
type Position struct {
	Path      string
	Component string
}

// TransitionFunc is the transition table's shape; the processor takes it as
// a dependency so tests can substitute synthetic graphs.
type TransitionFunc func(path, component, result string) (Position, bool)

// NextComponent is the single authority for "what happens after this step
// completes". It is a pure lookup over the full catalogue of (path,
// component) pairs; where a pair has several successors the component's
// branching result disambiguates. The second return is false when no
// transition is defined, which ends the turn.
func NextComponent(path, component, result string) (Position, bool) {
	switch {

	// Login path
	case path == PathLogin && component == CompGreeting:
		return Position{PathLogin, CompLoginApiCall}, true
	case path == PathLogin && component == CompLoginApiCall:
		switch result {
		case ResultSendMultiDashboard:
			return Position{PathMultiAccount, CompMultiAccountDashboard}, true
		case ResultSendDashboard:
			return Position{PathAccount, CompAccountDashboard}, true
		case ResultStartOnboarding:
			return Position{PathOnboard, CompWelcome}, true
		}

	// Multi-account dashboard path
	case path == PathMultiAccount && component == CompMultiAccountDashboard:
		if result == ResultAccountSelected {
			return Position{PathAccount, CompAccountDashboard}, true
		}

	// Onboard path
	case path == PathOnboard && component == CompWelcome:
		return Position{PathOnboard, CompFirstNameInput}, true
	case path == PathOnboard && component == CompFirstNameInput:
		return Position{PathOnboard, CompLastNameInput}, true
	case path == PathOnboard && component == CompLastNameInput:
		return Position{PathOnboard, CompProcessingNow}, true
	case path == PathOnboard && component == CompProcessingNow:
		return Position{PathOnboard, CompOnBoardMemberApiCall}, true
	case path == PathOnboard && component == CompOnBoardMemberApiCall:
		return Position{PathAccount, CompAccountDashboard}, true

	// Account dashboard path
	case path == PathAccount && component == CompAccountDashboard:
		switch result {
		case ResultOfferSecured:
			return Position{PathOfferSecured, CompAmountInput}, true
		case ResultAcceptOffer:
			return Position{PathAcceptOffer, CompOfferListDisplay}, true
		case ResultDeclineOffer:
			return Position{PathDeclineOffer, CompOfferListDisplay}, true
		case ResultCancelOffer:
			return Position{PathCancelOffer, CompOfferListDisplay}, true
		case ResultViewLedger:
			return Position{PathViewLedger, CompProcessingNow}, true
		case ResultUpgradeTier:
			return Position{PathUpgradeTier, CompConfirmUpgrade}, true
		case ResultSwitchAccount:
			return Position{PathMultiAccount, CompMultiAccountDashboard}, true
		}

	// Offer secured credex path
	case path == PathOfferSecured && component == CompAmountInput:
		return Position{PathOfferSecured, CompHandleInput}, true
	case path == PathOfferSecured && component == CompHandleInput:
		return Position{PathOfferSecured, CompValidateAccountApiCall}, true
	case path == PathOfferSecured && component == CompValidateAccountApiCall:
		if result == ResultReturnToHandle {
			return Position{PathOfferSecured, CompHandleInput}, true
		}
		return Position{PathOfferSecured, CompConfirmOfferSecured}, true
	case path == PathOfferSecured && component == CompConfirmOfferSecured:
		if result == ResultCancelled {
			return Position{PathAccount, CompAccountDashboard}, true
		}
		return Position{PathOfferSecured, CompProcessingNow}, true
	case path == PathOfferSecured && component == CompProcessingNow:
		return Position{PathOfferSecured, CompCreateCredexApiCall}, true
	case path == PathOfferSecured && component == CompCreateCredexApiCall:
		// Success or failure message rides in state for the dashboard.
		return Position{PathAccount, CompAccountDashboard}, true

	// Upgrade member tier path
	case path == PathUpgradeTier && component == CompConfirmUpgrade:
		if result == ResultCancelled {
			return Position{PathAccount, CompAccountDashboard}, true
		}
		return Position{PathUpgradeTier, CompProcessingNow}, true
	case path == PathUpgradeTier && component == CompProcessingNow:
		return Position{PathUpgradeTier, CompUpgradeMembertierApiCall}, true
	case path == PathUpgradeTier && component == CompUpgradeMembertierApiCall:
		return Position{PathAccount, CompAccountDashboard}, true

	// Accept / decline / cancel offer paths share one shape.
	case isOfferActionPath(path) && component == CompOfferListDisplay:
		switch result {
		case ResultProcessOffer:
			return Position{path, CompProcessingNow}, true
		case ResultReturnToDashboard:
			return Position{PathAccount, CompAccountDashboard}, true
		}
	case isOfferActionPath(path) && component == CompProcessingNow:
		return Position{path, CompProcessOfferApiCall}, true
	case isOfferActionPath(path) && component == CompProcessOfferApiCall:
		switch result {
		case ResultReturnToList:
			return Position{path, CompOfferListDisplay}, true
		case ResultSendDashboard:
			return Position{PathAccount, CompAccountDashboard}, true
		}

	// View ledger path
	case path == PathViewLedger && component == CompProcessingNow:
		return Position{PathViewLedger, CompGetLedgerApiCall}, true
	case path == PathViewLedger && component == CompGetLedgerApiCall:
		return Position{PathViewLedger, CompViewLedger}, true
	case path == PathViewLedger && component == CompViewLedger:
		switch result {
		case ResultFetchMore:
			return Position{PathViewLedger, CompGetLedgerApiCall}, true
		case ResultReturnToDashboard:
			return Position{PathAccount, CompAccountDashboard}, true
		}
	}

	return Position{}, false
}

func isOfferActionPath(path string) bool {
	return path == PathAcceptOffer || path == PathDeclineOffer || path == PathCancelOffer
}
