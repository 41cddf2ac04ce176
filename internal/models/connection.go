package models

import (
	"fmt"
	"time"
)

// Connection holds per-user per-provider credential state.
//
// A connected Connection always carries a non-empty access token. Refresh
// tokens are provider-dependent: Apple Music issues user tokens that cannot be
// refreshed server-side, so RefreshToken stays empty there.
type Connection struct {
	UserID         string     `json:"userId" db:"user_id"`
	Provider       Provider   `json:"provider" db:"provider"`
	Connected      bool       `json:"connected" db:"connected"`
	AccessToken    string     `json:"-" db:"access_token"`
	RefreshToken   string     `json:"-" db:"refresh_token"`
	ProviderUserID string     `json:"providerUserId,omitempty" db:"provider_user_id"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// Validate checks connection invariants.
func (c *Connection) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("connection user is required")
	}
	if c.Provider == "" || c.Provider == ProviderCustom {
		return fmt.Errorf("connection requires an external provider")
	}
	if c.Connected && c.AccessToken == "" {
		return fmt.Errorf("connected service requires an access token")
	}
	return nil
}

// Expired reports whether the access token has passed its expiry at time now.
// Connections without an expiry never expire (Apple developer-signed tokens).
func (c *Connection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Clear wipes every token field. Used on disconnect; callers persist the
// cleared record in a single write so no partial state is observable.
func (c *Connection) Clear() {
	c.Connected = false
	c.AccessToken = ""
	c.RefreshToken = ""
	c.ProviderUserID = ""
	c.ExpiresAt = nil
}
