package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxintake/rxintake/internal/platform/blobstore"
	"github.com/rxintake/rxintake/internal/platform/fault"
	"github.com/rxintake/rxintake/internal/platform/notify"
)

// DefaultBucket holds uploaded prescriptions.
const DefaultBucket = "prescriptions"

// Options tune the intake service.
type Options struct {
	Bucket          string
	MaxArtifactSize int64
}

// Service validates a submission, stores its artifact and records it.
//
// The artifact upload always completes before the row is inserted, since
// the row embeds the artifact URL. If the insert fails the uploaded object
// is left in place and logged; cleanup is not attempted on a failure path.
type Service struct {
	repo      SubmissionRepository
	store     blobstore.ObjectStore
	publisher notify.Publisher
	logger    zerolog.Logger
	opts      Options

	now   func() time.Time
	token func() string
}

func NewService(repo SubmissionRepository, store blobstore.ObjectStore, publisher notify.Publisher, logger zerolog.Logger, opts Options) *Service {
	if opts.Bucket == "" {
		opts.Bucket = DefaultBucket
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		repo:      repo,
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "intake").Logger(),
		opts:      opts,
		now:       time.Now,
		token:     randomToken,
	}
}

// Phase is reported to an observer as Submit moves through its collaborator
// calls.
type Phase int

const (
	PhaseUploading Phase = iota + 1
	PhasePersisting
)

// Submit validates form and artifact, uploads the artifact and inserts a
// pending submission. It returns the new submission id.
func (s *Service) Submit(ctx context.Context, form Form, artifact *Artifact) (uuid.UUID, error) {
	sub, err := s.submit(ctx, form, artifact, nil)
	if err != nil {
		return uuid.Nil, err
	}
	return sub.ID, nil
}

func (s *Service) submit(ctx context.Context, form Form, artifact *Artifact, observe func(Phase)) (sub *Submission, err error) {
	defer fault.Recover(s.logger, "intake.submit", ErrUnexpected, &err)

	if artifact == nil || len(artifact.Data) == 0 {
		return nil, ErrMissingArtifact
	}
	if s.opts.MaxArtifactSize > 0 && int64(len(artifact.Data)) > s.opts.MaxArtifactSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrArtifactTooLarge, len(artifact.Data), s.opts.MaxArtifactSize)
	}
	v, err := validate(form)
	if err != nil {
		return nil, err
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectPath := ObjectPath(s.now(), s.token(), artifact.FileName)
	log := s.logger.With().Str("path", objectPath).Logger()

	if observe != nil {
		observe(PhaseUploading)
	}
	log.Info().Str("content_type", contentType).Int("size", len(artifact.Data)).Msg("uploading artifact")

	err = s.store.Put(ctx, s.opts.Bucket, objectPath, artifact.Data, blobstore.PutOptions{
		ContentType: contentType,
		Upsert:      false,
	})
	if err != nil {
		log.Error().Err(err).Msg("artifact upload failed")
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	url := s.store.PublicURL(s.opts.Bucket, objectPath)
	log.Info().Msg("artifact uploaded")

	fileName := artifact.FileName
	if fileName == "" {
		fileName = objectPath
	}
	sub = &Submission{
		PatientName:     v.PatientName,
		Gender:          v.Gender,
		Age:             v.Age,
		PhoneNumber:     v.PhoneNumber,
		ReferringDoctor: v.ReferringDoctor,
		PrimaryQuestion: v.PrimaryQuestion,
		UploadMethod:    ClassifyUploadMethod(contentType),
		FileURL:         &url,
		FileType:        &contentType,
		FileName:        &fileName,
		Status:          StatusPending,
	}

	if observe != nil {
		observe(PhasePersisting)
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		log.Warn().Err(err).Msg("submission insert failed, uploaded artifact is orphaned")
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	log.Info().Str("submission_id", sub.ID.String()).Str("upload_method", string(sub.UploadMethod)).Msg("submission recorded")

	s.announce(ctx, sub)
	return sub, nil
}

// announce publishes submission.received. Failures never affect the result.
func (s *Service) announce(ctx context.Context, sub *Submission) {
	event := map[string]interface{}{
		"id":            sub.ID,
		"upload_method": sub.UploadMethod,
		"file_url":      sub.FileURL,
		"created_at":    sub.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, notify.TopicSubmissionReceived, event); err != nil {
		s.logger.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("submission event not published")
	}
}

// IsValidation reports whether err is a caller input problem that needs no
// retry against collaborators.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingArtifact) || errors.Is(err, ErrInvalidField) || errors.Is(err, ErrArtifactTooLarge)
}
