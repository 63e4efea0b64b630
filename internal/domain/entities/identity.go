package entities

import "time"

// LinkedIdentity binds one external provider subject to one Account.
// (ProviderType, ProviderUserID) is unique among active identities.
type LinkedIdentity struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	ProviderType    string `json:"provider_type"`    // "google", "auth0", "github", ...
	ProviderUserID  string `json:"provider_user_id"` // Provider's 'sub' claim
	ProviderEmail   string `json:"provider_email"`   // May differ from the account's email
	ProviderName    string `json:"provider_name"`
	ProviderPicture string `json:"provider_picture"`
	EmailVerified   bool   `json:"email_verified"`

	// Sealed with secretbox; never stored in the clear
	AccessTokenEncrypted string     `json:"access_token_encrypted,omitempty"`
	TokenExpiresAt       *time.Time `json:"token_expires_at,omitempty"`

	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// DocumentID implements repositories.Entity
func (i LinkedIdentity) DocumentID() string {
	return i.ID
}

// ProviderKey returns a provider:subject string for logging
func (i *LinkedIdentity) ProviderKey() string {
	return i.ProviderType + ":" + i.ProviderUserID
}

// LinkedIdentitySummary is the identity view returned with an AccountSummary
type LinkedIdentitySummary struct {
	ProviderType    string    `json:"providerType"`
	ProviderUserID  string    `json:"providerUserId"`
	ProviderEmail   string    `json:"providerEmail"`
	ProviderName    string    `json:"providerName"`
	ProviderPicture string    `json:"providerPicture"`
	CreatedAt       time.Time `json:"createdAt"`
	LastUsedAt      time.Time `json:"lastUsedAt"`
	IsActive        bool      `json:"isActive"`
}

// Summary returns the public view of the identity; tokens are never included
func (i *LinkedIdentity) Summary() LinkedIdentitySummary {
	return LinkedIdentitySummary{
		ProviderType:    i.ProviderType,
		ProviderUserID:  i.ProviderUserID,
		ProviderEmail:   i.ProviderEmail,
		ProviderName:    i.ProviderName,
		ProviderPicture: i.ProviderPicture,
		CreatedAt:       i.CreatedAt,
		LastUsedAt:      i.LastUsedAt,
		IsActive:        i.IsActive,
	}
}
