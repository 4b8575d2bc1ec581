package models

// Member is the profile slice of the dashboard read model returned by the
// CredEx login call.
type Member struct {
	MemberID     string `json:"member_id"`
	MemberTier   int    `json:"member_tier"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	MemberHandle string `json:"member_handle"`
	DefaultDenom string `json:"default_denom"`
}

// Offer is a pending Credex offer attached to an account.
type Offer struct {
	CredexID       string `json:"credex_id"`
	FormattedAmount string `json:"formatted_amount"`
	CounterpartyAccountName string `json:"counterparty_account_name"`
}

// Account is one owned or linked account with balances and pending offers.
type Account struct {
	AccountID      string   `json:"account_id"`
	AccountName    string   `json:"account_name"`
	AccountHandle  string   `json:"account_handle"`
	AccountType    string   `json:"account_type"`
	Balances       []string `json:"balances,omitempty"`
	NetBalance     string   `json:"net_balance,omitempty"`
	IncomingOffers []Offer  `json:"incoming_offers,omitempty"`
	OutgoingOffers []Offer  `json:"outgoing_offers,omitempty"`
}

// Dashboard is the cached read model fetched from the CredEx API. It is
// replaced wholesale on every successful login or refresh, never patched.
type Dashboard struct {
	Member   Member    `json:"member"`
	Accounts []Account `json:"accounts"`
}

// AccountByID returns the account with the given id, if present.
func (d *Dashboard) AccountByID(id string) (Account, bool) {
	if d == nil {
		return Account{}, false
	}
	for _, a := range d.Accounts {
		if a.AccountID == id {
			return a, true
		}
	}
	return Account{}, false
}

// LedgerEntry is one row of a paginated account ledger.
type LedgerEntry struct {
	CredexID        string `json:"credex_id"`
	FormattedAmount string `json:"formatted_amount"`
	CounterpartyAccountName string `json:"counterparty_account_name"`
	DateTime        string `json:"date_time,omitempty"`
}
