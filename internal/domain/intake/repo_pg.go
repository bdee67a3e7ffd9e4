package intake

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxintake/rxintake/internal/platform/db"
)

type submissionRepoPG struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepoPG{pool: pool}
}

func (r *submissionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const submissionColumns = `id, patient_name, gender, age, phone_number, referring_doctor,
	primary_question, upload_method, file_url, file_type, file_name, status, created_at`

func (r *submissionRepoPG) Create(ctx context.Context, sub *Submission) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription_submissions (
			patient_name, gender, age, phone_number, referring_doctor,
			primary_question, upload_method, file_url, file_type, file_name, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		sub.PatientName, sub.Gender, sub.Age, sub.PhoneNumber, sub.ReferringDoctor,
		sub.PrimaryQuestion, sub.UploadMethod, sub.FileURL, sub.FileType, sub.FileName, sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *submissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	sub, err := r.scanSubmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM prescription_submissions WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", id, err)
	}
	return sub, nil
}

func (r *submissionRepoPG) List(ctx context.Context, opts ListOptions) ([]*Submission, int, error) {
	where := ""
	args := []interface{}{}
	if opts.Status != "" {
		where = " WHERE status = $1"
		args = append(args, opts.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescription_submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	query := `SELECT ` + submissionColumns + ` FROM prescription_submissions` + where +
		` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, total, rows.Err()
}

func (r *submissionRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescription_submissions SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func (r *submissionRepoPG) scanSubmission(row scannable) (*Submission, error) {
	var s Submission
	err := row.Scan(&s.ID, &s.PatientName, &s.Gender, &s.Age, &s.PhoneNumber, &s.ReferringDoctor,
		&s.PrimaryQuestion, &s.UploadMethod, &s.FileURL, &s.FileType, &s.FileName, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
