package model

import "time"

// DefaultRateLimit is the requests-per-hour budget recorded on new
// credentials. It is stored for reporting only; nothing enforces it.
const DefaultRateLimit = 1000

// Credential represents one registered application integration. The client
// secret is never stored; only its one-way hash is persisted, and it is never
// serialized.
type Credential struct {
	ID           int64      `json:"id"`
	ClientID     string     `json:"client_id"`
	SecretHash   string     `json:"-"`
	AppID        string     `json:"app_id"`
	AppName      string     `json:"app_name"`
	Role         Role       `json:"role"`
	Scopes       []string   `json:"scopes"`
	Description  string     `json:"description,omitempty"`
	ContactEmail string     `json:"contact_email,omitempty"`
	IsActive     bool       `json:"is_active"`
	RateLimit    int        `json:"rate_limit"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
}
