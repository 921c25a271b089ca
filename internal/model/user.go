package model

import "time"

// Account types, in increasing order of privilege.
const (
	AccountFree    = "free"
	AccountPremium = "premium"
	AccountAdmin   = "admin"
)

type User struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	AccountType      string    `json:"account_type"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanManageLists reports whether the account may use shopping list endpoints.
func (u *User) CanManageLists() bool {
	return u.AccountType == AccountPremium || u.AccountType == AccountAdmin
}

// IsAdmin reports whether the account has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.AccountType == AccountAdmin
}
