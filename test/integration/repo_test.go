package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rxintake/rxintake/internal/domain/admin"
	"github.com/rxintake/rxintake/internal/domain/intake"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func TestAccountRepo_CreateRejectsDuplicateUsername(t *testing.T) {
	repo := admin.NewAccountRepo(requireDB(t))
	ctx := context.Background()

	first := &admin.Account{Username: "asha", PasswordHash: "$2a$10$hash", FullName: "Asha Rao", IsActive: true}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if first.ID == uuid.Nil || first.CreatedAt.IsZero() {
		t.Errorf("expected id and created_at to be filled in, got %+v", first)
	}

	err := repo.Create(ctx, &admin.Account{Username: "asha", PasswordHash: "other", IsActive: true})
	if !errors.Is(err, admin.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("expected 1 account after duplicate insert, got %d", n)
	}
}

func TestAccountRepo_ListNewestFirst(t *testing.T) {
	repo := admin.NewAccountRepo(requireDB(t))
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		if err := repo.Create(ctx, &admin.Account{Username: name, PasswordHash: "h", IsActive: true}); err != nil {
			t.Fatalf("Create(%s) error: %v", name, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	accts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(accts) != 3 || accts[0].Username != "third" || accts[2].Username != "first" {
		t.Errorf("expected newest first, got %v", usernames(accts))
	}
}

func TestAccountRepo_UpdatePartial(t *testing.T) {
	repo := admin.NewAccountRepo(requireDB(t))
	ctx := context.Background()

	acct := &admin.Account{Username: "ravi", PasswordHash: "old", FullName: "Ravi", IsActive: true}
	if err := repo.Create(ctx, acct); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Only the second and third columns change; the id stays $1.
	if err := repo.Update(ctx, acct.ID, admin.AccountChanges{IsActive: boolPtr(false), PasswordHash: strPtr("new")}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, err := repo.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.IsActive || got.PasswordHash != "new" || got.FullName != "Ravi" {
		t.Errorf("unexpected account after update: %+v", got)
	}

	if _, err := repo.FindActiveByUsername(ctx, "ravi"); !errors.Is(err, admin.ErrAccountNotFound) {
		t.Errorf("deactivated account must not be found for login, got %v", err)
	}

	if err := repo.Update(ctx, uuid.New(), admin.AccountChanges{FullName: strPtr("x")}); !errors.Is(err, admin.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound for unknown id, got %v", err)
	}
	if err := repo.Update(ctx, uuid.New(), admin.AccountChanges{}); !errors.Is(err, admin.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound for empty changes on unknown id, got %v", err)
	}
}

func TestAccountRepo_TouchLastLogin(t *testing.T) {
	repo := admin.NewAccountRepo(requireDB(t))
	ctx := context.Background()

	acct := &admin.Account{Username: "mei", PasswordHash: "h", IsActive: true}
	if err := repo.Create(ctx, acct); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := repo.TouchLastLogin(ctx, acct.ID, at); err != nil {
		t.Fatalf("TouchLastLogin() error: %v", err)
	}
	got, _ := repo.GetByID(ctx, acct.ID)
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Errorf("expected last login %v, got %v", at, got.LastLoginAt)
	}
}

func newSubmission(name string, status intake.Status) *intake.Submission {
	return &intake.Submission{
		PatientName:     name,
		Gender:          intake.GenderFemale,
		Age:             42,
		PhoneNumber:     "+91 98450 00000",
		PrimaryQuestion: "Can I take this with food?",
		UploadMethod:    intake.UploadCamera,
		FileURL:         strPtr("http://localhost:8000/storage/prescriptions/" + name + ".jpg"),
		FileType:        strPtr("image/jpeg"),
		FileName:        strPtr(name + ".jpg"),
		Status:          status,
	}
}

func TestSubmissionRepo_ListPagesNewestFirst(t *testing.T) {
	repo := intake.NewSubmissionRepo(requireDB(t))
	ctx := context.Background()

	for i, name := range []string{"s1", "s2", "s3", "s4", "s5"} {
		status := intake.StatusPending
		if i%2 == 1 {
			status = intake.StatusCompleted
		}
		if err := repo.Create(ctx, newSubmission(name, status)); err != nil {
			t.Fatalf("Create(%s) error: %v", name, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	page, total, err := repo.List(ctx, intake.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page) != 2 || page[0].PatientName != "s4" || page[1].PatientName != "s3" {
		t.Errorf("expected [s4 s3], got %v", patientNames(page))
	}

	pending, total, err := repo.List(ctx, intake.ListOptions{Status: intake.StatusPending, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List(pending) error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 pending, got %d", total)
	}
	if len(pending) != 2 || pending[0].PatientName != "s3" || pending[1].PatientName != "s1" {
		t.Errorf("expected [s3 s1], got %v", patientNames(pending))
	}

	all, _, err := repo.List(ctx, intake.ListOptions{})
	if err != nil || len(all) != 5 {
		t.Errorf("expected every row without a limit, got %d (%v)", len(all), err)
	}
}

func TestSubmissionRepo_GetAndUpdateStatus(t *testing.T) {
	repo := intake.NewSubmissionRepo(requireDB(t))
	ctx := context.Background()

	sub := newSubmission("rx", intake.StatusPending)
	sub.ReferringDoctor = strPtr("Dr. Iyer")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := repo.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if !got.HasArtifact() || got.ReferringDoctor == nil || *got.ReferringDoctor != "Dr. Iyer" {
		t.Errorf("unexpected row: %+v", got)
	}

	if err := repo.UpdateStatus(ctx, sub.ID, intake.StatusPending, intake.StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	// The row is no longer pending, so a second writer loses.
	if err := repo.UpdateStatus(ctx, sub.ID, intake.StatusPending, intake.StatusCompleted); !errors.Is(err, intake.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
	got, _ = repo.GetByID(ctx, sub.ID)
	if got.Status != intake.StatusProcessing {
		t.Errorf("expected processing, got %s", got.Status)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, intake.ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func usernames(accts []*admin.Account) []string {
	out := make([]string, len(accts))
	for i, a := range accts {
		out[i] = a.Username
	}
	return out
}

func patientNames(subs []*intake.Submission) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.PatientName
	}
	return out
}
