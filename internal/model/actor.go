package model

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Actor is who is calling and whose account the call acts on. The two
// differ only when an admin impersonates a client.
type Actor struct {
	AuthenticatedAccountID string `json:"authenticated_account_id"`
	ActingAccountID        string `json:"acting_account_id"`
	Email                  string `json:"email,omitempty"`
	Role                   string `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// AccountID is the account every data access is scoped to.
func (a Actor) AccountID() string {
	if a.ActingAccountID != "" {
		return a.ActingAccountID
	}
	return a.AuthenticatedAccountID
}

func (a Actor) Impersonating() bool {
	return a.ActingAccountID != "" && a.ActingAccountID != a.AuthenticatedAccountID
}
