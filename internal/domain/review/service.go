// Package review is the staff-facing read side of submissions: listing,
// detail, status counts and the forward-only status lifecycle.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/rxintake/rxintake/internal/domain/intake"
	"github.com/rxintake/rxintake/internal/platform/fault"
	"github.com/rxintake/rxintake/internal/platform/session"
)

var (
	ErrSubmissionNotFound = intake.ErrSubmissionNotFound
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnexpected         = errors.New("unexpected error")
)

// Summary counts submissions by status.
type Summary struct {
	Total          int `json:"total"`
	PendingCount   int `json:"pending_count"`
	CompletedCount int `json:"completed_count"`
}

// Summarize counts subs. It is recomputed on every read.
func Summarize(subs []*intake.Submission) Summary {
	return Summary{
		Total:          len(subs),
		PendingCount:   lo.CountBy(subs, func(s *intake.Submission) bool { return s.Status == intake.StatusPending }),
		CompletedCount: lo.CountBy(subs, func(s *intake.Submission) bool { return s.Status == intake.StatusCompleted }),
	}
}

// Service requires a session in ctx for every operation.
type Service struct {
	repo   intake.SubmissionRepository
	logger zerolog.Logger
}

func NewService(repo intake.SubmissionRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "review").Logger()}
}

// List returns every submission, newest first.
func (s *Service) List(ctx context.Context) (subs []*intake.Submission, err error) {
	defer fault.Recover(s.logger, "review.list", ErrUnexpected, &err)

	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	subs, _, err = s.repo.List(ctx, intake.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// Page is one page of submissions plus the summary over all of them.
type Page struct {
	Items   []*intake.Submission
	Total   int
	Summary Summary
}

// ListPage returns a page and the summary over every submission.
func (s *Service) ListPage(ctx context.Context, opts intake.ListOptions) (page Page, err error) {
	defer fault.Recover(s.logger, "review.list_page", ErrUnexpected, &err)

	if _, err := session.Require(ctx); err != nil {
		return Page{}, err
	}
	all, _, err := s.repo.List(ctx, intake.ListOptions{})
	if err != nil {
		return Page{}, fmt.Errorf("list submissions: %w", err)
	}
	items, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return Page{}, fmt.Errorf("list submissions: %w", err)
	}
	return Page{Items: items, Total: total, Summary: Summarize(all)}, nil
}

// Get returns one submission.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (sub *intake.Submission, err error) {
	defer fault.Recover(s.logger, "review.get", ErrUnexpected, &err)

	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Transition moves a submission strictly forward along pending, processing,
// completed. Staying put or moving back fails with ErrInvalidTransition, as
// does losing a race with another transition.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next intake.Status) (sub *intake.Submission, err error) {
	defer fault.Recover(s.logger, "review.transition", ErrUnexpected, &err)

	who, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := intake.ParseStatus(string(next)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	sub, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.Status.Before(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, id, sub.Status, next); err != nil {
		if errors.Is(err, intake.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logger.Info().
		Str("submission_id", id.String()).
		Str("from", string(sub.Status)).
		Str("to", string(next)).
		Str("by", who.Username).
		Msg("submission status changed")

	sub.Status = next
	return sub, nil
}
