package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ehrgate/ehrgate/internal/config"
	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/store"
)

var (
	ErrInvalidCredentials  = errors.New("invalid client credentials")
	ErrDuplicateClient     = errors.New("duplicate client id")
	ErrTokenExpired        = errors.New("token has expired")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrInvalidRegistration = errors.New("invalid registration")
)

var (
	errTokenType      = fmt.Errorf("%w: unexpected token type", ErrTokenInvalid)
	errClientInactive = fmt.Errorf("%w: client is inactive", ErrTokenInvalid)
)

const (
	// TokenTypeAccess is the only token kind issued today.
	TokenTypeAccess = "access"

	clientIDPrefix  = "client_"
	clientIDBytes   = 32
	secretBytes     = 48
	bearerTokenType = "Bearer"
)

// CredentialStore is the storage the auth service needs.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c *model.Credential) error
	GetActiveCredential(ctx context.Context, clientID, appID string) (*model.Credential, error)
	GetCredentialByClientID(ctx context.Context, clientID string) (*model.Credential, error)
	TouchCredential(ctx context.Context, clientID string) error
}

// Claims is the access token payload.
type Claims struct {
	ClientID string   `json:"client_id"`
	AppID    string   `json:"app_id"`
	Role     string   `json:"role"`
	Scopes   []string `json:"scopes"`
	Type     string   `json:"type"`
	jwt.RegisteredClaims
}

// Registration describes a credential to create.
type Registration struct {
	AppID        string
	AppName      string
	Role         string
	Scopes       []string
	Description  string
	ContactEmail string
}

// RegisteredCredential is returned exactly once, at registration. It is the
// only place the plaintext secret ever appears.
type RegisteredCredential struct {
	Status       string   `json:"status"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AppID        string   `json:"app_id"`
	AppName      string   `json:"app_name"`
	Role         string   `json:"role"`
	Scopes       []string `json:"scopes"`
	Message      string   `json:"message"`
}

// ClientInfo is the denormalized credential summary returned with a token.
type ClientInfo struct {
	ClientID string `json:"client_id"`
	AppID    string `json:"app_id"`
	AppName  string `json:"app_name"`
	Role     string `json:"role"`
}

// TokenResponse is the result of a successful authentication.
type TokenResponse struct {
	Status      string     `json:"status"`
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	Scope       string     `json:"scope"`
	ClientInfo  ClientInfo `json:"client_info"`
}

// Validation is the outcome of ValidateToken. Err carries the typed failure
// for callers; Error is its wire message.
type Validation struct {
	Valid    bool     `json:"valid"`
	ClientID string   `json:"client_id,omitempty"`
	AppID    string   `json:"app_id,omitempty"`
	Role     string   `json:"role,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	Error    string   `json:"error,omitempty"`
	Err      error    `json:"-"`
}

// AuthService registers credentials, exchanges them for signed access
// tokens, and answers capability questions about presented tokens.
type AuthService struct {
	store    CredentialStore
	settings config.Settings
	key      []byte
	logger   *slog.Logger
	now      func() time.Time

	// digest compared against when the client is unknown, so both failure
	// paths do the same work.
	decoy string
}

// NewAuthService creates an AuthService. settings is copied; later changes
// to the caller's value have no effect.
func NewAuthService(st CredentialStore, settings config.Settings, logger *slog.Logger) *AuthService {
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = config.DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		store:    st,
		settings: settings,
		key:      []byte(settings.SigningKey),
		logger:   logger,
		now:      time.Now,
	}
	decoy, err := s.hashSecret("decoy-" + settings.Issuer)
	if err != nil {
		decoy = HashSecret("decoy")
	}
	s.decoy = decoy
	return s
}

// Settings returns the configuration the service was built with.
func (s *AuthService) Settings() config.Settings {
	return s.settings
}

// ---------------------------------------------------------------------------
// Secrets
// ---------------------------------------------------------------------------

// GenerateCredentialPair returns a fresh client id ("client_" followed by
// 32 random bytes, base64url) and a secret of 48 random bytes, base64url.
func GenerateCredentialPair() (clientID, secret string, err error) {
	id, err := randomToken(clientIDBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate client id: %w", err)
	}
	secret, err = randomToken(secretBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate client secret: %w", err)
	}
	return clientIDPrefix + id, secret, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret returns the hex SHA-256 digest of secret.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifySecret reports whether secret matches digest. Digests produced by
// bcrypt are recognized by their "$2" prefix; anything else is compared as a
// SHA-256 hex digest in constant time.
func VerifySecret(secret, digest string) bool {
	if strings.HasPrefix(digest, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
	}
	computed := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

func (s *AuthService) hashSecret(secret string) (string, error) {
	if s.settings.HashMode == config.HashBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hash secret: %w", err)
		}
		return string(b), nil
	}
	return HashSecret(secret), nil
}

// ---------------------------------------------------------------------------
// Registration and authentication
// ---------------------------------------------------------------------------

// RegisterCredential creates an active credential and returns its secret.
// The secret is not retrievable afterwards.
func (s *AuthService) RegisterCredential(ctx context.Context, reg Registration) (*RegisteredCredential, error) {
	appID := strings.TrimSpace(reg.AppID)
	appName := strings.TrimSpace(reg.AppName)
	if appID == "" || appName == "" {
		return nil, fmt.Errorf("%w: app_id and app_name are required", ErrInvalidRegistration)
	}
	role, err := model.ParseRole(reg.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	scopes := reg.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	clientID, secret, err := GenerateCredentialPair()
	if err != nil {
		return nil, err
	}
	digest, err := s.hashSecret(secret)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		ClientID:     clientID,
		SecretHash:   digest,
		AppID:        appID,
		AppName:      appName,
		Role:         role,
		Scopes:       scopes,
		Description:  reg.Description,
		ContactEmail: reg.ContactEmail,
		IsActive:     true,
		RateLimit:    model.DefaultRateLimit,
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateClient
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	s.logger.Info("client registered", "client_id", clientID, "app_id", appID, "role", role)

	return &RegisteredCredential{
		Status:       model.StatusSuccess,
		ClientID:     clientID,
		ClientSecret: secret,
		AppID:        appID,
		AppName:      appName,
		Role:         string(role),
		Scopes:       scopes,
		Message:      "IMPORTANT: Save the client_secret securely. It cannot be retrieved again!",
	}, nil
}

// Authenticate exchanges a client id, secret, and app id for an access
// token. An unknown client and a wrong secret fail identically with
// ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, clientID, secret, appID string) (*TokenResponse, error) {
	cred, err := s.store.GetActiveCredential(ctx, clientID, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			VerifySecret(secret, s.decoy)
			s.logger.Warn("authentication failed", "client_id", clientID, "app_id", appID)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !VerifySecret(secret, cred.SecretHash) {
		s.logger.Warn("authentication failed", "client_id", clientID, "app_id", appID)
		return nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(cred.ClientID, cred.AppID, string(cred.Role), cred.Scopes)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchCredential(ctx, cred.ClientID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return &TokenResponse{
		Status:      model.StatusSuccess,
		AccessToken: token,
		TokenType:   bearerTokenType,
		ExpiresIn:   int(s.settings.TokenTTL / time.Second),
		Scope:       strings.Join(cred.Scopes, " "),
		ClientInfo: ClientInfo{
			ClientID: cred.ClientID,
			AppID:    cred.AppID,
			AppName:  cred.AppName,
			Role:     string(cred.Role),
		},
	}, nil
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// IssueToken signs an access token valid for the configured TTL.
func (s *AuthService) IssueToken(clientID, appID, role string, scopes []string) (string, error) {
	now := s.now()
	return s.signToken(clientID, appID, role, scopes, now, now.Add(s.settings.TokenTTL))
}

func (s *AuthService) signToken(clientID, appID, role string, scopes []string, issuedAt, expiresAt time.Time) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	claims := Claims{
		ClientID: clientID,
		AppID:    appID,
		Role:     role,
		Scopes:   scopes,
		Type:     TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.settings.Issuer,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry of token and returns its
// claims. Expired tokens fail with ErrTokenExpired; anything else that does
// not verify fails with ErrTokenInvalid.
func (s *AuthService) VerifyToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Scopes == nil {
		claims.Scopes = []string{}
	}
	return claims, nil
}

// ValidateToken verifies token and additionally requires it to be an access
// token. With auth.check_active set, the issuing credential must still be
// active. Failures are reported in the result, never returned.
func (s *AuthService) ValidateToken(ctx context.Context, token string) Validation {
	claims, err := s.VerifyToken(token)
	if err == nil && claims.Type != TokenTypeAccess {
		err = errTokenType
	}
	if err == nil && s.settings.CheckActive {
		err = s.checkActive(ctx, claims.ClientID)
	}
	if err != nil {
		return Validation{Valid: false, Error: Reason(err), Err: err}
	}
	return Validation{
		Valid:    true,
		ClientID: claims.ClientID,
		AppID:    claims.AppID,
		Role:     claims.Role,
		Scopes:   claims.Scopes,
	}
}

func (s *AuthService) checkActive(ctx context.Context, clientID string) error {
	cred, err := s.store.GetCredentialByClientID(ctx, clientID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errClientInactive
	case err != nil:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	case !cred.IsActive:
		return errClientInactive
	}
	return nil
}

// RequireRole reports whether token is valid and carries one of roles.
func (s *AuthService) RequireRole(ctx context.Context, token string, roles ...model.Role) bool {
	v := s.ValidateToken(ctx, token)
	if !v.Valid {
		return false
	}
	for _, r := range roles {
		if v.Role == string(r) {
			return true
		}
	}
	return false
}

// RequireScope reports whether token is valid and was granted scope.
func (s *AuthService) RequireScope(ctx context.Context, token, scope string) bool {
	v := s.ValidateToken(ctx, token)
	if !v.Valid {
		return false
	}
	for _, sc := range v.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// Reason returns the wire message for an auth failure.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid client credentials"
	case errors.Is(err, ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, errTokenType):
		return "Invalid token type"
	case errors.Is(err, errClientInactive):
		return "Client is no longer active"
	case errors.Is(err, ErrTokenInvalid):
		return "Invalid token"
	case errors.Is(err, ErrStorageUnavailable):
		return "Storage unavailable"
	default:
		return err.Error()
	}
}
