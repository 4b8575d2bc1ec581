package credex

import "context"

// Fake is a scriptable API implementation for tests. Unset hooks report a
// successful empty result.
type Fake struct {
	LoginFn              func(ctx context.Context, phone string) (*Result, error)
	OnboardMemberFn      func(ctx context.Context, firstName, lastName, phone, defaultDenom string) (*Result, error)
	GetAccountByHandleFn func(ctx context.Context, token, handle string) (*Result, error)
	CreateCredexFn       func(ctx context.Context, token string, req CreateCredexRequest) (*Result, error)
	AcceptCredexFn       func(ctx context.Context, token, credexID string) (*Result, error)
	DeclineCredexFn      func(ctx context.Context, token, credexID string) (*Result, error)
	CancelCredexFn       func(ctx context.Context, token, credexID string) (*Result, error)
	GetLedgerFn          func(ctx context.Context, token, accountID string, startRow, numRows int) (*Result, error)
	UpgradeMemberTierFn  func(ctx context.Context, token, memberID string, newTier int) (*Result, error)

	Calls []string
}

func (f *Fake) record(name string) { f.Calls = append(f.Calls, name) }

func (f *Fake) Login(ctx context.Context, phone string) (*Result, error) {
	f.record("Login")
	if f.LoginFn != nil {
		return f.LoginFn(ctx, phone)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) OnboardMember(ctx context.Context, firstName, lastName, phone, defaultDenom string) (*Result, error) {
	f.record("OnboardMember")
	if f.OnboardMemberFn != nil {
		return f.OnboardMemberFn(ctx, firstName, lastName, phone, defaultDenom)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) GetAccountByHandle(ctx context.Context, token, handle string) (*Result, error) {
	f.record("GetAccountByHandle")
	if f.GetAccountByHandleFn != nil {
		return f.GetAccountByHandleFn(ctx, token, handle)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) CreateCredex(ctx context.Context, token string, req CreateCredexRequest) (*Result, error) {
	f.record("CreateCredex")
	if f.CreateCredexFn != nil {
		return f.CreateCredexFn(ctx, token, req)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) AcceptCredex(ctx context.Context, token, credexID string) (*Result, error) {
	f.record("AcceptCredex")
	if f.AcceptCredexFn != nil {
		return f.AcceptCredexFn(ctx, token, credexID)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) DeclineCredex(ctx context.Context, token, credexID string) (*Result, error) {
	f.record("DeclineCredex")
	if f.DeclineCredexFn != nil {
		return f.DeclineCredexFn(ctx, token, credexID)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) CancelCredex(ctx context.Context, token, credexID string) (*Result, error) {
	f.record("CancelCredex")
	if f.CancelCredexFn != nil {
		return f.CancelCredexFn(ctx, token, credexID)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) GetLedger(ctx context.Context, token, accountID string, startRow, numRows int) (*Result, error) {
	f.record("GetLedger")
	if f.GetLedgerFn != nil {
		return f.GetLedgerFn(ctx, token, accountID, startRow, numRows)
	}
	return &Result{Success: true}, nil
}

func (f *Fake) UpgradeMemberTier(ctx context.Context, token, memberID string, newTier int) (*Result, error) {
	f.record("UpgradeMemberTier")
	if f.UpgradeMemberTierFn != nil {
		return f.UpgradeMemberTierFn(ctx, token, memberID, newTier)
	}
	return &Result{Success: true}, nil
}
