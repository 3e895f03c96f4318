package models

import "time"

// Credentials are the officer's login details.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OAuthToken represents OAuth token information
type OAuthToken struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Scope        string    `json:"scope,omitempty"`
}

// Valid reports whether the access token can still be used at now. A token
// without expiry never expires.
func (t *OAuthToken) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}
