package entities

import (
	"strings"
	"time"
)

// Account is the canonical record a person authenticates into.
// One account may be reached through several linked provider identities.
type Account struct {
	AccountID       string    `json:"account_id"`
	Email           string    `json:"email"`
	EmailNormalized string    `json:"email_normalized"` // merge key; empty when the provider gave no email
	Name            string    `json:"name"`
	Picture         string    `json:"picture"`
	CreatedAt       time.Time `json:"created_at"`
	LastLoginAt     time.Time `json:"last_login_at"`
}

// DocumentID implements repositories.Entity
func (a Account) DocumentID() string {
	return a.AccountID
}

// SetEmail stores the email along with its normalized merge key
func (a *Account) SetEmail(email string) {
	a.Email = strings.TrimSpace(email)
	a.EmailNormalized = NormalizeEmail(email)
}

// ApplyProfile updates display fields, ignoring blank values so a provider
// that omits them never erases what is already known.
func (a *Account) ApplyProfile(name, picture string) {
	if name != "" {
		a.Name = name
	}
	if picture != "" {
		a.Picture = picture
	}
}

// NormalizeEmail returns the case-insensitive form used for account matching
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountSummary is the account view returned after authentication
type AccountSummary struct {
	AccountID   string                  `json:"userId"`
	Email       string                  `json:"email"`
	Name        string                  `json:"name"`
	Picture     string                  `json:"picture"`
	CreatedAt   time.Time               `json:"createdAt"`
	LastLoginAt time.Time               `json:"lastLoginAt"`
	Identities  []LinkedIdentitySummary `json:"identities"`
}

// NewAccountSummary builds the summary for an account and its active identities
func NewAccountSummary(a *Account, identities []LinkedIdentity) AccountSummary {
	summary := AccountSummary{
		AccountID:   a.AccountID,
		Email:       a.Email,
		Name:        a.Name,
		Picture:     a.Picture,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
		Identities:  make([]LinkedIdentitySummary, 0, len(identities)),
	}
	for i := range identities {
		summary.Identities = append(summary.Identities, identities[i].Summary())
	}
	return summary
}
