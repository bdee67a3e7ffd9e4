// Package admin manages staff accounts and authenticates them for the
// session layer.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxintake/rxintake/internal/platform/credential"
	"github.com/rxintake/rxintake/internal/platform/fault"
	"github.com/rxintake/rxintake/internal/platform/session"
)

// TxRunner runs fn atomically. db.InTx bound to a pool satisfies it.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// Directory is the staff account directory. Every password it writes goes
// through the hasher.
type Directory struct {
	repo   AccountRepository
	hasher credential.Hasher
	inTx   TxRunner
	logger zerolog.Logger
}

// NewDirectory creates a Directory. A nil inTx runs Bootstrap without a
// transaction.
func NewDirectory(repo AccountRepository, hasher credential.Hasher, inTx TxRunner, logger zerolog.Logger) *Directory {
	if inTx == nil {
		inTx = noTx
	}
	return &Directory{
		repo:   repo,
		hasher: hasher,
		inTx:   inTx,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// List returns every account, newest first.
func (d *Directory) List(ctx context.Context) (accts []*Account, err error) {
	defer fault.Recover(d.logger, "directory.list", ErrUnexpected, &err)

	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	accts, err = d.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return accts, nil
}

// Create adds an account. The username is trimmed and must be unique.
func (d *Directory) Create(ctx context.Context, in NewAccount) (acct *Account, err error) {
	defer fault.Recover(d.logger, "directory.create", ErrUnexpected, &err)

	who, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	acct, err = d.create(ctx, in)
	if err != nil {
		return nil, err
	}
	d.logger.Info().
		Str("account_id", acct.ID.String()).
		Str("username", acct.Username).
		Str("by", who.Username).
		Msg("account created")
	return acct, nil
}

func (d *Directory) create(ctx context.Context, in NewAccount) (*Account, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if in.Password == "" {
		return nil, ErrPasswordRequired
	}
	if len(in.Password) > credential.MaxPasswordLength {
		return nil, credential.ErrPasswordTooLong
	}
	hash, err := d.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct := &Account{
		Username:     username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		IsActive:     in.Active,
	}
	if err := d.repo.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Update edits an account. An empty password counts as not supplied and
// leaves the stored credential alone.
func (d *Directory) Update(ctx context.Context, id uuid.UUID, in AccountUpdate) (err error) {
	defer fault.Recover(d.logger, "directory.update", ErrUnexpected, &err)

	who, err := session.Require(ctx)
	if err != nil {
		return err
	}

	changes := AccountChanges{IsActive: in.Active}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		changes.FullName = &name
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) > credential.MaxPasswordLength {
			return credential.ErrPasswordTooLong
		}
		hash, err := d.hasher.Hash(*in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		changes.PasswordHash = &hash
	}

	if err := d.repo.Update(ctx, id, changes); err != nil {
		return err
	}
	d.logger.Info().
		Str("account_id", id.String()).
		Bool("password_changed", changes.PasswordHash != nil).
		Str("by", who.Username).
		Msg("account updated")
	return nil
}

// Bootstrap creates the first account without a session. It fails with
// ErrDirectoryNotEmpty once any account exists.
func (d *Directory) Bootstrap(ctx context.Context, in NewAccount) (acct *Account, err error) {
	defer fault.Recover(d.logger, "directory.bootstrap", ErrUnexpected, &err)

	err = d.inTx(ctx, func(ctx context.Context) error {
		n, err := d.repo.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDirectoryNotEmpty
		}
		acct, err = d.create(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info().Str("username", acct.Username).Msg("directory bootstrapped")
	return acct, nil
}
