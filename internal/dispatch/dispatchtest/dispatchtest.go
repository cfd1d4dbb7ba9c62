// Package dispatchtest builds a fully wired in-memory dispatcher for tests
// of the transports.
package dispatchtest

import (
	"context"
	"testing"
	"time"

	"github.com/ehrgate/ehrgate/internal/config"
	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/store"
)

// Seeded record identifiers.
const (
	PatientMRN  = "MRN100001"
	ProviderNPI = "1234567890"
)

// Settings are the auth settings every Env uses.
var Settings = config.Settings{
	SigningKey: "dispatchtest-signing-key",
	TokenTTL:   time.Hour,
	Issuer:     "ehrgate-test",
	HashMode:   config.HashSHA256,
}

// Env is an in-memory store with one patient and one provider, and the
// services and dispatcher built on it.
type Env struct {
	Store      *store.Store
	Auth       *service.AuthService
	Records    *records.Service
	Dispatcher *dispatch.Dispatcher
}

// New builds an Env. opts.Logger and opts.Metrics may be left zero.
func New(t testing.TB, opts dispatch.Options) *Env {
	t.Helper()
	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.CreatePatient(ctx, &model.Patient{
		MRN: PatientMRN, FirstName: "Maria", LastName: "Gonzalez", DOB: "1980-04-12",
		Gender: "female", Email: "maria@example.com",
	}); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if err := st.CreateProvider(ctx, &model.Provider{
		NPI: ProviderNPI, Name: "Dr. Sarah Chen", Specialty: "Cardiology",
		Department: "Cardiology", AcceptingNewPatients: true,
	}); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	settings := Settings
	settings.EnforceScopes = opts.EnforceScopes
	auth := service.NewAuthService(st, settings, opts.Logger)
	rec := records.NewService(st, opts.Logger)
	return &Env{
		Store:      st,
		Auth:       auth,
		Records:    rec,
		Dispatcher: dispatch.New(auth, rec, opts),
	}
}

// Register creates a credential and returns it with its plaintext secret.
func (e *Env) Register(t testing.TB, role string, scopes ...string) *service.RegisteredCredential {
	t.Helper()
	reg, err := e.Auth.RegisterCredential(context.Background(), service.Registration{
		AppID:   "test-app",
		AppName: "Test App",
		Role:    role,
		Scopes:  scopes,
	})
	if err != nil {
		t.Fatalf("RegisterCredential: %v", err)
	}
	return reg
}

// Token registers a credential and returns an access token for it.
func (e *Env) Token(t testing.TB, role string, scopes ...string) string {
	t.Helper()
	reg := e.Register(t, role, scopes...)
	tok, err := e.Auth.Authenticate(context.Background(), reg.ClientID, reg.ClientSecret, reg.AppID)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return tok.AccessToken
}
