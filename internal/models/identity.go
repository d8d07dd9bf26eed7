package models

import "fmt"

// Identity is the verified claim set produced by a successful login.
// It is derived from ID token claims after signature, issuer, audience
// and nonce validation; nothing here comes from unverified input.
type Identity struct {
	Subject  string   `json:"sub"`
	Username string   `json:"preferred_username,omitempty"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Validate checks the invariants every identity must satisfy before it
// is persisted or attached to a session
func (i Identity) Validate() error {
	if i.Subject == "" {
		return fmt.Errorf("identity missing subject")
	}
	return nil
}

// DisplayName returns the best human-readable name available
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.Username != "" {
		return i.Username
	}
	return i.Subject
}
