package flow

import "testing"

func TestNextComponentLoginBranches(t *testing.T) {
	tests := []struct {
		name      string
		result    string
		wantPath  string
		wantComp  string
		wantFound bool
	}{
		{"multi dashboard", ResultSendMultiDashboard, PathMultiAccount, CompMultiAccountDashboard, true},
		{"single dashboard", ResultSendDashboard, PathAccount, CompAccountDashboard, true},
		{"new member", ResultStartOnboarding, PathOnboard, CompWelcome, true},
		{"unknown tag", "bogus", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NextComponent(PathLogin, CompLoginApiCall, tt.result)
			if ok != tt.wantFound {
				t.Fatalf("found = %v, want %v", ok, tt.wantFound)
			}
			if ok && (next.Path != tt.wantPath || next.Component != tt.wantComp) {
				t.Errorf("next = %v, want %s.%s", next, tt.wantPath, tt.wantComp)
			}
		})
	}
}

func TestNextComponentOnboardIsLinear(t *testing.T) {
	chain := []string{CompWelcome, CompFirstNameInput, CompLastNameInput, CompProcessingNow, CompOnBoardMemberApiCall}
	for i := 0; i < len(chain)-1; i++ {
		next, ok := NextComponent(PathOnboard, chain[i], "")
		if !ok {
			t.Fatalf("no transition from onboard.%s", chain[i])
		}
		if next.Component != chain[i+1] {
			t.Errorf("onboard.%s -> %s, want %s", chain[i], next.Component, chain[i+1])
		}
	}
	next, ok := NextComponent(PathOnboard, CompOnBoardMemberApiCall, "")
	if !ok || next.Path != PathAccount || next.Component != CompAccountDashboard {
		t.Errorf("onboard end = %v (%v), want account dashboard", next, ok)
	}
}

// Every branching tag a dashboard selection can produce must have a
// transition; a tag with no edge would silently end the turn.
func TestNextComponentDashboardTotality(t *testing.T) {
	tags := map[string]Position{
		ResultOfferSecured:  {PathOfferSecured, CompAmountInput},
		ResultAcceptOffer:   {PathAcceptOffer, CompOfferListDisplay},
		ResultDeclineOffer:  {PathDeclineOffer, CompOfferListDisplay},
		ResultCancelOffer:   {PathCancelOffer, CompOfferListDisplay},
		ResultViewLedger:    {PathViewLedger, CompProcessingNow},
		ResultUpgradeTier:   {PathUpgradeTier, CompConfirmUpgrade},
		ResultSwitchAccount: {PathMultiAccount, CompMultiAccountDashboard},
	}
	for tag, want := range tags {
		next, ok := NextComponent(PathAccount, CompAccountDashboard, tag)
		if !ok {
			t.Errorf("no transition for dashboard tag %q", tag)
			continue
		}
		if next != want {
			t.Errorf("dashboard tag %q -> %v, want %v", tag, next, want)
		}
	}
}

func TestNextComponentOfferSecuredValidation(t *testing.T) {
	next, ok := NextComponent(PathOfferSecured, CompValidateAccountApiCall, ResultReturnToHandle)
	if !ok || next.Component != CompHandleInput {
		t.Errorf("return_to_handle -> %v (%v), want HandleInput", next, ok)
	}
	next, ok = NextComponent(PathOfferSecured, CompValidateAccountApiCall, "")
	if !ok || next.Component != CompConfirmOfferSecured {
		t.Errorf("valid handle -> %v (%v), want ConfirmOfferSecured", next, ok)
	}
	next, ok = NextComponent(PathOfferSecured, CompConfirmOfferSecured, ResultCancelled)
	if !ok || next.Path != PathAccount {
		t.Errorf("cancelled confirm -> %v (%v), want account dashboard", next, ok)
	}
}

func TestNextComponentOfferActionPathsShareShape(t *testing.T) {
	for _, path := range []string{PathAcceptOffer, PathDeclineOffer, PathCancelOffer} {
		next, ok := NextComponent(path, CompOfferListDisplay, ResultProcessOffer)
		if !ok || next.Path != path || next.Component != CompProcessingNow {
			t.Errorf("%s select -> %v (%v)", path, next, ok)
		}
		next, ok = NextComponent(path, CompProcessOfferApiCall, ResultReturnToList)
		if !ok || next.Component != CompOfferListDisplay {
			t.Errorf("%s loop back -> %v (%v)", path, next, ok)
		}
		next, ok = NextComponent(path, CompProcessOfferApiCall, ResultSendDashboard)
		if !ok || next.Path != PathAccount {
			t.Errorf("%s done -> %v (%v)", path, next, ok)
		}
	}
}

func TestNextComponentViewLedgerLoop(t *testing.T) {
	next, ok := NextComponent(PathViewLedger, CompViewLedger, ResultFetchMore)
	if !ok || next.Component != CompGetLedgerApiCall {
		t.Errorf("fetch_more -> %v (%v)", next, ok)
	}
	next, ok = NextComponent(PathViewLedger, CompViewLedger, ResultReturnToDashboard)
	if !ok || next.Path != PathAccount {
		t.Errorf("ledger back -> %v (%v)", next, ok)
	}
}

func TestNextComponentUnknownPositionIsTerminal(t *testing.T) {
	if _, ok := NextComponent("nonsense", "Nowhere", ""); ok {
		t.Error("expected no transition for unknown position")
	}
}
