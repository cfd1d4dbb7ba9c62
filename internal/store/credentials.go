package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ehrgate/ehrgate/internal/model"
)

// ---------------------------------------------------------------------------
// Credentials (oauth_clients)
// ---------------------------------------------------------------------------

// credentialRow maps 1:1 to the oauth_clients table. Scopes are stored as a
// JSON array in a TEXT column.
type credentialRow struct {
	ID           int64      `db:"id"`
	ClientID     string     `db:"client_id"`
	SecretHash   string     `db:"client_secret_hash"`
	AppID        string     `db:"app_id"`
	AppName      string     `db:"app_name"`
	ScopesJSON   string     `db:"scopes"`
	Role         string     `db:"role"`
	Description  string     `db:"description"`
	ContactEmail string     `db:"contact_email"`
	IsActive     bool       `db:"is_active"`
	RateLimit    int        `db:"rate_limit"`
	CreatedAt    time.Time  `db:"created_at"`
	LastUsed     *time.Time `db:"last_used"`
}

const credentialColumns = `id, client_id, client_secret_hash, app_id, app_name, scopes, role,
	description, contact_email, is_active, rate_limit, created_at, last_used`

func credentialRowFromModel(c *model.Credential) (credentialRow, error) {
	scopes := c.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	b, err := json.Marshal(scopes)
	if err != nil {
		return credentialRow{}, fmt.Errorf("marshal scopes: %w", err)
	}
	return credentialRow{
		ID:           c.ID,
		ClientID:     c.ClientID,
		SecretHash:   c.SecretHash,
		AppID:        c.AppID,
		AppName:      c.AppName,
		ScopesJSON:   string(b),
		Role:         string(c.Role),
		Description:  c.Description,
		ContactEmail: c.ContactEmail,
		IsActive:     c.IsActive,
		RateLimit:    c.RateLimit,
		CreatedAt:    c.CreatedAt,
		LastUsed:     c.LastUsed,
	}, nil
}

func (r credentialRow) toModel() (model.Credential, error) {
	var scopes []string
	if r.ScopesJSON != "" {
		if err := json.Unmarshal([]byte(r.ScopesJSON), &scopes); err != nil {
			return model.Credential{}, fmt.Errorf("unmarshal scopes for %s: %w", r.ClientID, err)
		}
	}
	if scopes == nil {
		scopes = []string{}
	}
	return model.Credential{
		ID:           r.ID,
		ClientID:     r.ClientID,
		SecretHash:   r.SecretHash,
		AppID:        r.AppID,
		AppName:      r.AppName,
		Role:         model.Role(r.Role),
		Scopes:       scopes,
		Description:  r.Description,
		ContactEmail: r.ContactEmail,
		IsActive:     r.IsActive,
		RateLimit:    r.RateLimit,
		CreatedAt:    r.CreatedAt,
		LastUsed:     r.LastUsed,
	}, nil
}

// CreateCredential inserts a credential and sets its ID and CreatedAt.
// A second credential with the same client id fails with ErrDuplicate.
func (s *Store) CreateCredential(ctx context.Context, c *model.Credential) error {
	c.CreatedAt = s.timestamp()
	if c.RateLimit == 0 {
		c.RateLimit = model.DefaultRateLimit
	}
	row, err := credentialRowFromModel(c)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}

	id, err := s.insert(ctx, `INSERT INTO oauth_clients (client_id, client_secret_hash, app_id, app_name,
		scopes, role, description, contact_email, is_active, rate_limit, created_at)
		VALUES (:client_id, :client_secret_hash, :app_id, :app_name, :scopes, :role,
		:description, :contact_email, :is_active, :rate_limit, :created_at)`, row)
	if err != nil {
		return s.wrap("create credential", err)
	}
	c.ID = id
	return nil
}

// GetActiveCredential returns the active credential registered under
// clientID for appID. Inactive, unknown, and mismatched pairs all yield
// ErrNotFound.
func (s *Store) GetActiveCredential(ctx context.Context, clientID, appID string) (*model.Credential, error) {
	return s.getCredential(ctx, "get active credential",
		`SELECT `+credentialColumns+` FROM oauth_clients WHERE client_id = ? AND app_id = ? AND is_active = ?`,
		clientID, appID, true)
}

// GetCredentialByClientID returns the credential for clientID regardless of
// whether it is active.
func (s *Store) GetCredentialByClientID(ctx context.Context, clientID string) (*model.Credential, error) {
	return s.getCredential(ctx, "get credential",
		`SELECT `+credentialColumns+` FROM oauth_clients WHERE client_id = ?`, clientID)
}

func (s *Store) getCredential(ctx context.Context, op, query string, args ...interface{}) (*model.Credential, error) {
	var row credentialRow
	if err := s.get(ctx, &row, query, args...); err != nil {
		return nil, s.wrap(op, err)
	}
	c, err := row.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// ListCredentials returns every credential ordered by creation.
func (s *Store) ListCredentials(ctx context.Context) ([]model.Credential, error) {
	var rows []credentialRow
	if err := s.sel(ctx, &rows, `SELECT `+credentialColumns+` FROM oauth_clients ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	out := make([]model.Credential, 0, len(rows))
	for _, r := range rows {
		c, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// SetCredentialActive activates or deactivates a credential.
func (s *Store) SetCredentialActive(ctx context.Context, clientID string, active bool) error {
	n, err := s.exec(ctx, `UPDATE oauth_clients SET is_active = ? WHERE client_id = ?`, active, clientID)
	if err != nil {
		return fmt.Errorf("set credential active: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchCredential records a successful authentication.
func (s *Store) TouchCredential(ctx context.Context, clientID string) error {
	if _, err := s.exec(ctx, `UPDATE oauth_clients SET last_used = ? WHERE client_id = ?`, s.timestamp(), clientID); err != nil {
		return fmt.Errorf("touch credential: %w", err)
	}
	return nil
}
