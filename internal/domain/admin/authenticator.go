package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxintake/rxintake/internal/platform/credential"
	"github.com/rxintake/rxintake/internal/platform/fault"
	"github.com/rxintake/rxintake/internal/platform/session"
)

// Authenticator checks staff credentials against the directory. It
// satisfies session.Authenticator.
type Authenticator struct {
	repo   AccountRepository
	hasher credential.Hasher
	rehash bool
	logger zerolog.Logger
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. With rehash set, a successful
// login against a legacy or weaker credential rewrites it with hasher.
func NewAuthenticator(repo AccountRepository, hasher credential.Hasher, rehash bool, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		repo:   repo,
		hasher: hasher,
		rehash: rehash,
		logger: logger.With().Str("component", "authenticator").Logger(),
		now:    time.Now,
	}
}

var _ session.Authenticator = (*Authenticator)(nil)

// Authenticate returns the account snapshot for a matching active account.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
// Recording the login time and rehashing are best-effort.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (s session.Session, err error) {
	defer fault.Recover(a.logger, "admin.authenticate", ErrUnexpected, &err)

	acct, err := a.repo.FindActiveByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrAccountNotFound) {
		return session.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("look up account: %w", err)
	}
	if !credential.Verify(password, acct.PasswordHash) {
		return session.Session{}, ErrInvalidCredentials
	}

	now := a.now().UTC()
	if err := a.repo.TouchLastLogin(ctx, acct.ID, now); err != nil {
		a.logger.Warn().Err(err).Str("account_id", acct.ID.String()).Msg("failed to record last login")
	}
	acct.LastLoginAt = &now

	if a.rehash && a.hasher.NeedsRehash(acct.PasswordHash) {
		a.upgrade(ctx, acct, password)
	}

	a.logger.Info().Str("account_id", acct.ID.String()).Str("username", acct.Username).Msg("login succeeded")
	return acct.Snapshot(), nil
}

func (a *Authenticator) upgrade(ctx context.Context, acct *Account, password string) {
	log := a.logger.With().Str("account_id", acct.ID.String()).
		Str("from", credential.Parse(acct.PasswordHash).Kind.String()).Logger()

	hash, err := a.hasher.Hash(password)
	if err != nil {
		log.Warn().Err(err).Msg("failed to rehash credential")
		return
	}
	if err := a.repo.Update(ctx, acct.ID, AccountChanges{PasswordHash: &hash}); err != nil {
		log.Warn().Err(err).Msg("failed to store rehashed credential")
		return
	}
	log.Info().Msg("credential rehashed")
}
