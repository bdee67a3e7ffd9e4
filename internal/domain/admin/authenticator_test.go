package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxintake/rxintake/internal/platform/credential"
)

func newTestAuthenticator(rehash bool) (*Authenticator, *mockAccountRepo) {
	repo := newMockAccountRepo()
	a := NewAuthenticator(repo, testHasher(), rehash, zerolog.Nop())
	a.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	return a, repo
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := testHasher().Hash(pw)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	return h
}

func TestAuthenticator_HashedCredential(t *testing.T) {
	a, repo := newTestAuthenticator(true)
	acct := repo.seed("admin", hashed(t, "correct horse"), true)

	s, err := a.Authenticate(context.Background(), "admin", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if s.ID != acct.ID || s.Username != "admin" || s.FullName != "Staff admin" {
		t.Errorf("unexpected session %+v", s)
	}
	if s.LastLoginAt == nil || !s.LastLoginAt.Equal(a.now()) {
		t.Errorf("expected last_login_at %v, got %v", a.now(), s.LastLoginAt)
	}
	if stored := repo.stored(acct.ID); stored.LastLoginAt == nil {
		t.Error("expected last login recorded")
	}
	if repo.updates != 0 {
		t.Errorf("current hash should not be rewritten, got %d updates", repo.updates)
	}
}

// Usernames are trimmed at creation, so login trims too.
func TestAuthenticator_TrimsUsername(t *testing.T) {
	a, repo := newTestAuthenticator(false)
	dir := NewDirectory(repo, testHasher(), nil, zerolog.Nop())
	if _, err := dir.Create(signedIn(), NewAccount{Username: " asha ", Password: "pw", Active: true}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	s, err := a.Authenticate(context.Background(), " asha ", "pw")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if s.Username != "asha" {
		t.Errorf("expected trimmed username, got %q", s.Username)
	}
}

func TestAuthenticator_UniformFailures(t *testing.T) {
	a, repo := newTestAuthenticator(false)
	acct := repo.seed("admin", hashed(t, "right"), true)
	repo.seed("retired", "right", false)

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "admin", "wrongpass"},
		{"unknown user", "nobody", "right"},
		{"inactive account", "retired", "right"},
		{"empty password", "admin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if err.Error() != "invalid username or password" {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}
	if repo.stored(acct.ID).LastLoginAt != nil {
		t.Error("failed logins must not touch last_login_at")
	}
}

func TestAuthenticator_LegacyCredentialRehashed(t *testing.T) {
	a, repo := newTestAuthenticator(true)
	acct := repo.seed("legacy", "plaintext-pw", true)

	if _, err := a.Authenticate(context.Background(), "legacy", "plaintext-pw"); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	stored := repo.stored(acct.ID).PasswordHash
	if credential.Parse(stored).Kind != credential.Hashed {
		t.Fatalf("expected credential upgraded to a hash, got %q", stored)
	}
	if _, err := a.Authenticate(context.Background(), "legacy", "plaintext-pw"); err != nil {
		t.Errorf("login after rehash failed: %v", err)
	}
}

func TestAuthenticator_LegacyKeptWithoutRehash(t *testing.T) {
	a, repo := newTestAuthenticator(false)
	acct := repo.seed("legacy", "plaintext-pw", true)

	if _, err := a.Authenticate(context.Background(), "legacy", "plaintext-pw"); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if repo.stored(acct.ID).PasswordHash != "plaintext-pw" {
		t.Error("credential rewritten with rehash disabled")
	}
}

func TestAuthenticator_LastLoginFailureIgnored(t *testing.T) {
	a, repo := newTestAuthenticator(false)
	repo.seed("admin", hashed(t, "pw"), true)
	repo.touchErr = errors.New("connection reset")

	s, err := a.Authenticate(context.Background(), "admin", "pw")
	if err != nil {
		t.Fatalf("bookkeeping failure must not fail login: %v", err)
	}
	if !s.Valid() {
		t.Error("expected a valid session")
	}
}

func TestAuthenticator_LookupErrorIsNotInvalidCredentials(t *testing.T) {
	a, repo := newTestAuthenticator(false)
	repo.err = errors.New("connection refused")

	_, err := a.Authenticate(context.Background(), "admin", "pw")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected a lookup error, got %v", err)
	}
}

func TestAuthenticator_PanicBecomesUnexpected(t *testing.T) {
	a, repo := newTestAuthenticator(false)
	repo.panics = true

	if _, err := a.Authenticate(context.Background(), "admin", "pw"); !errors.Is(err, ErrUnexpected) {
		t.Errorf("expected ErrUnexpected, got %v", err)
	}
}

func TestAccount_SnapshotOmitsCredential(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	acct := &Account{Username: "admin", PasswordHash: "secret", LastLoginAt: &at}
	s := acct.Snapshot()
	if s.LastLoginAt == acct.LastLoginAt {
		t.Error("snapshot shares the last login pointer")
	}
	if s.Username != "admin" || !s.LastLoginAt.Equal(at) {
		t.Errorf("unexpected snapshot %+v", s)
	}
}
