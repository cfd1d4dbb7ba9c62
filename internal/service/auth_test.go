package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ehrgate/ehrgate/internal/config"
	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/store"
)

var testSettings = config.Settings{
	SigningKey: "test-secret-key-for-jwt",
	TokenTTL:   60 * time.Minute,
	Issuer:     "ehrgate-test",
	HashMode:   config.HashSHA256,
}

func newTestAuth(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewAuthService(st, testSettings, nil), st
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func register(t *testing.T, auth *AuthService, role string, scopes []string) *RegisteredCredential {
	t.Helper()
	reg, err := auth.RegisterCredential(context.Background(), Registration{
		AppID:   "epic-bridge",
		AppName: "Epic Bridge",
		Role:    role,
		Scopes:  scopes,
	})
	if err != nil {
		t.Fatalf("RegisterCredential: %v", err)
	}
	return reg
}

func TestHashSecretVerifySecret(t *testing.T) {
	if HashSecret("s3cret") != HashSecret("s3cret") {
		t.Fatal("HashSecret is not deterministic")
	}
	if HashSecret("s3cret") == "s3cret" {
		t.Fatal("digest must differ from plaintext")
	}

	for i := 0; i < 10000; i++ {
		a, b := randomSecret(t), randomSecret(t)
		if !VerifySecret(a, HashSecret(a)) {
			t.Fatalf("VerifySecret(s, HashSecret(s)) = false for %q", a)
		}
		if a != b && VerifySecret(a, HashSecret(b)) {
			t.Fatalf("false positive: %q verified against digest of %q", a, b)
		}
	}
}

func randomSecret(t *testing.T) string {
	t.Helper()
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestVerifySecretBcrypt(t *testing.T) {
	settings := testSettings
	settings.HashMode = config.HashBcrypt
	auth := NewAuthService(nil, settings, nil)

	digest, err := auth.hashSecret("s3cret")
	if err != nil {
		t.Fatalf("hashSecret: %v", err)
	}
	if !strings.HasPrefix(digest, "$2") {
		t.Fatalf("expected a bcrypt digest, got %q", digest)
	}
	if !VerifySecret("s3cret", digest) {
		t.Error("bcrypt digest did not verify")
	}
	if VerifySecret("wrong", digest) {
		t.Error("wrong secret verified against bcrypt digest")
	}
}

func TestGenerateCredentialPair(t *testing.T) {
	id, secret, err := GenerateCredentialPair()
	if err != nil {
		t.Fatalf("GenerateCredentialPair: %v", err)
	}
	if !strings.HasPrefix(id, "client_") {
		t.Errorf("client id %q lacks prefix", id)
	}
	raw, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil {
		t.Fatalf("secret is not base64url: %v", err)
	}
	if len(raw) < 48 {
		t.Errorf("secret has %d bytes of entropy, want >= 48", len(raw))
	}

	id2, secret2, _ := GenerateCredentialPair()
	if id == id2 || secret == secret2 {
		t.Error("consecutive pairs collided")
	}
}

func TestRegisterThenAuthenticate(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	reg := register(t, auth, "doctor", []string{"read:patients", "write:appointments"})

	stored, err := st.GetCredentialByClientID(ctx, reg.ClientID)
	if err != nil {
		t.Fatalf("GetCredentialByClientID: %v", err)
	}
	if stored.SecretHash == reg.ClientSecret {
		t.Fatal("plaintext secret was persisted")
	}
	if !stored.IsActive {
		t.Error("new credential should be active")
	}

	resp, err := auth.Authenticate(ctx, reg.ClientID, reg.ClientSecret, "epic-bridge")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 3600 {
		t.Errorf("got token_type %q expires_in %d", resp.TokenType, resp.ExpiresIn)
	}
	if resp.Scope != "read:patients write:appointments" {
		t.Errorf("Scope = %q", resp.Scope)
	}
	if resp.ClientInfo.AppName != "Epic Bridge" {
		t.Errorf("ClientInfo = %+v", resp.ClientInfo)
	}

	v := auth.ValidateToken(ctx, resp.AccessToken)
	if !v.Valid {
		t.Fatalf("ValidateToken: %s", v.Error)
	}
	if v.Role != "doctor" || v.AppID != "epic-bridge" || v.ClientID != reg.ClientID {
		t.Errorf("got %+v", v)
	}
	if len(v.Scopes) != 2 || v.Scopes[0] != "read:patients" || v.Scopes[1] != "write:appointments" {
		t.Errorf("Scopes = %v", v.Scopes)
	}

	touched, _ := st.GetCredentialByClientID(ctx, reg.ClientID)
	if touched.LastUsed == nil {
		t.Error("last_used not updated on successful authentication")
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	reg := register(t, auth, "nurse", nil)

	_, wrongSecret := auth.Authenticate(ctx, reg.ClientID, "not-the-secret", "epic-bridge")
	_, unknownClient := auth.Authenticate(ctx, "client_nope", reg.ClientSecret, "epic-bridge")
	_, wrongApp := auth.Authenticate(ctx, reg.ClientID, reg.ClientSecret, "other-app")

	for name, err := range map[string]error{"wrong secret": wrongSecret, "unknown client": unknownClient, "wrong app": wrongApp} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: err = %v, want ErrInvalidCredentials", name, err)
		}
	}
	if wrongSecret.Error() != unknownClient.Error() {
		t.Errorf("error text differs: %q vs %q", wrongSecret, unknownClient)
	}
	if Reason(wrongSecret) != "Invalid client credentials" {
		t.Errorf("Reason = %q", Reason(wrongSecret))
	}
}

func TestAuthenticateInactiveClient(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()
	reg := register(t, auth, "system", nil)

	if err := st.SetCredentialActive(ctx, reg.ClientID, false); err != nil {
		t.Fatalf("SetCredentialActive: %v", err)
	}
	if _, err := auth.Authenticate(ctx, reg.ClientID, reg.ClientSecret, "epic-bridge"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  Registration
	}{
		{"missing app id", Registration{AppName: "X", Role: "doctor"}},
		{"missing app name", Registration{AppID: "x", Role: "doctor"}},
		{"unknown role", Registration{AppID: "x", AppName: "X", Role: "janitor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.RegisterCredential(ctx, tt.reg); !errors.Is(err, ErrInvalidRegistration) {
				t.Errorf("err = %v, want ErrInvalidRegistration", err)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth.now = fixedClock(t0)

	stale, err := auth.signToken("client_a", "app", "doctor", nil, t0.Add(-time.Hour), t0.Add(-time.Second))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	v := auth.ValidateToken(ctx, stale)
	if v.Valid || !errors.Is(v.Err, ErrTokenExpired) {
		t.Fatalf("stale token: valid=%v err=%v, want ErrTokenExpired", v.Valid, v.Err)
	}
	if v.Error != "Token has expired" {
		t.Errorf("Error = %q", v.Error)
	}

	fresh, err := auth.IssueToken("client_a", "app", "doctor", nil)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	auth.now = fixedClock(t0.Add(60*time.Minute - time.Nanosecond))
	if v := auth.ValidateToken(ctx, fresh); !v.Valid {
		t.Fatalf("token rejected just before expiry: %s", v.Error)
	}

	auth.now = fixedClock(t0.Add(60 * time.Minute))
	if v := auth.ValidateToken(ctx, fresh); v.Valid || !errors.Is(v.Err, ErrTokenExpired) {
		t.Fatalf("token at expiry: valid=%v err=%v, want ErrTokenExpired", v.Valid, v.Err)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	auth, _ := newTestAuth(t)
	token, err := auth.IssueToken("client_a", "app", "doctor", []string{"read:patients"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	i := len(payload) / 2
	if payload[i] == 'A' {
		payload[i] = 'B'
	} else {
		payload[i] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	v := auth.ValidateToken(context.Background(), tampered)
	if v.Valid || !errors.Is(v.Err, ErrTokenInvalid) {
		t.Fatalf("tampered token: valid=%v err=%v, want ErrTokenInvalid", v.Valid, v.Err)
	}
	if v.Error != "Invalid token" {
		t.Errorf("Error = %q", v.Error)
	}
}

func TestTokenRejectsForeignKeyAndAlgorithm(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	other := testSettings
	other.SigningKey = "someone-elses-key"
	foreign, _ := NewAuthService(nil, other, nil).IssueToken("client_a", "app", "admin", nil)
	if v := auth.ValidateToken(ctx, foreign); v.Valid {
		t.Error("token signed with another key was accepted")
	}

	claims := Claims{ClientID: "client_a", AppID: "app", Role: "admin", Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if v := auth.ValidateToken(ctx, unsigned); v.Valid {
		t.Error("alg=none token was accepted")
	}

	if v := auth.ValidateToken(ctx, "garbage.token.here"); v.Valid || !errors.Is(v.Err, ErrTokenInvalid) {
		t.Errorf("garbage token: valid=%v err=%v", v.Valid, v.Err)
	}
}

func TestValidateTokenRejectsOtherTokenTypes(t *testing.T) {
	auth, _ := newTestAuth(t)
	now := time.Now()
	claims := Claims{
		ClientID: "client_a", AppID: "app", Role: "doctor", Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSettings.SigningKey))
	if err != nil {
		t.Fatal(err)
	}

	v := auth.ValidateToken(context.Background(), token)
	if v.Valid || !errors.Is(v.Err, ErrTokenInvalid) {
		t.Fatalf("valid=%v err=%v, want ErrTokenInvalid", v.Valid, v.Err)
	}
	if v.Error != "Invalid token type" {
		t.Errorf("Error = %q, want %q", v.Error, "Invalid token type")
	}
}

func TestRoundTripPreservesClaims(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		clientID, appID, role string
		scopes                []string
	}{
		{"client_a", "epic", "doctor", []string{"read:patients", "write:patients"}},
		{"client_b", "lab-sync", "system", []string{}},
		{"client_c", "portal", "patient", nil},
	}
	for _, tt := range tests {
		token, err := auth.IssueToken(tt.clientID, tt.appID, tt.role, tt.scopes)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		v := auth.ValidateToken(ctx, token)
		if !v.Valid {
			t.Fatalf("ValidateToken(%s): %s", tt.clientID, v.Error)
		}
		if v.ClientID != tt.clientID || v.AppID != tt.appID || v.Role != tt.role {
			t.Errorf("got %+v, want %s/%s/%s", v, tt.clientID, tt.appID, tt.role)
		}
		if len(v.Scopes) != len(tt.scopes) {
			t.Errorf("%s: scopes = %v, want %v", tt.clientID, v.Scopes, tt.scopes)
		}
		for i := range tt.scopes {
			if v.Scopes[i] != tt.scopes[i] {
				t.Errorf("%s: scopes[%d] = %q, want %q", tt.clientID, i, v.Scopes[i], tt.scopes[i])
			}
		}
	}
}

func TestRequireRole(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	doctor, _ := auth.IssueToken("client_a", "app", "doctor", nil)
	nurse, _ := auth.IssueToken("client_b", "app", "nurse", nil)

	if !auth.RequireRole(ctx, doctor, model.RoleDoctor) {
		t.Error("doctor token should satisfy doctor")
	}
	if auth.RequireRole(ctx, nurse, model.RoleDoctor) {
		t.Error("nurse token should not satisfy doctor")
	}
	if !auth.RequireRole(ctx, nurse, model.RoleDoctor, model.RoleNurse) {
		t.Error("nurse token should satisfy doctor|nurse")
	}

	t0 := time.Now().Add(-2 * time.Hour)
	expired, _ := auth.signToken("client_a", "app", "doctor", nil, t0, t0.Add(time.Hour))
	if auth.RequireRole(ctx, expired, model.RoleDoctor) {
		t.Error("expired doctor token should not satisfy doctor")
	}
}

func TestRequireScopeNurseScenario(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	reg := register(t, auth, "nurse", []string{"read:vitals", "write:vitals"})
	resp, err := auth.Authenticate(ctx, reg.ClientID, reg.ClientSecret, "epic-bridge")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if !auth.RequireScope(ctx, resp.AccessToken, "write:vitals") {
		t.Error("RequireScope(write:vitals) = false, want true")
	}
	if auth.RequireScope(ctx, resp.AccessToken, "write:patients") {
		t.Error("RequireScope(write:patients) = true, want false")
	}
	if auth.RequireScope(ctx, "not-a-token", "write:vitals") {
		t.Error("RequireScope on garbage token = true, want false")
	}
}

func TestCheckActiveRevokesIssuedTokens(t *testing.T) {
	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	settings := testSettings
	settings.CheckActive = true
	auth := NewAuthService(st, settings, nil)

	reg := register(t, auth, "doctor", nil)
	resp, err := auth.Authenticate(ctx, reg.ClientID, reg.ClientSecret, "epic-bridge")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if v := auth.ValidateToken(ctx, resp.AccessToken); !v.Valid {
		t.Fatalf("fresh token rejected: %s", v.Error)
	}

	if err := st.SetCredentialActive(ctx, reg.ClientID, false); err != nil {
		t.Fatal(err)
	}
	v := auth.ValidateToken(ctx, resp.AccessToken)
	if v.Valid || !errors.Is(v.Err, ErrTokenInvalid) {
		t.Fatalf("token of deactivated client: valid=%v err=%v", v.Valid, v.Err)
	}

	// Without the check the same token stays valid until it expires.
	lax := NewAuthService(st, testSettings, nil)
	if v := lax.ValidateToken(ctx, resp.AccessToken); !v.Valid {
		t.Errorf("token rejected without check_active: %s", v.Error)
	}
}

// failingStore simulates a storage outage.
type failingStore struct {
	err error
}

func (f failingStore) CreateCredential(context.Context, *model.Credential) error { return f.err }
func (f failingStore) GetActiveCredential(context.Context, string, string) (*model.Credential, error) {
	return nil, f.err
}
func (f failingStore) GetCredentialByClientID(context.Context, string) (*model.Credential, error) {
	return nil, f.err
}
func (f failingStore) TouchCredential(context.Context, string) error { return f.err }

func TestStorageFailuresPropagate(t *testing.T) {
	boom := errors.New("connection refused")
	auth := NewAuthService(failingStore{err: boom}, testSettings, nil)
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, "client_a", "secret", "app")
	if !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, boom) {
		t.Errorf("Authenticate: err = %v, want ErrStorageUnavailable wrapping cause", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("storage failure must not masquerade as bad credentials")
	}

	_, err = auth.RegisterCredential(ctx, Registration{AppID: "a", AppName: "A", Role: "admin"})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("RegisterCredential: err = %v, want ErrStorageUnavailable", err)
	}

	dup := NewAuthService(failingStore{err: store.ErrDuplicate}, testSettings, nil)
	if _, err := dup.RegisterCredential(ctx, Registration{AppID: "a", AppName: "A", Role: "admin"}); !errors.Is(err, ErrDuplicateClient) {
		t.Errorf("RegisterCredential on duplicate: err = %v, want ErrDuplicateClient", err)
	}
}
