package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexamine/lexam-backend/internal/model"
)

const examineeColumns = `id, batch_id, user_id, papers_no, review_status, exam_started,
	exam_start_time, submitted, submit_time, created_at`

// ExamineeRow combines an examinee record with candidate account fields for
// admin listings.
type ExamineeRow struct {
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
	OrgName      string `json:"org"`
	IDNo         string `json:"id_no"`
	Phone        string `json:"phone"`
	ReviewStatus int    `json:"review_status"`
	Submitted    bool   `json:"submitted"`
}

// ExamineeRepository handles enrollment data access.
type ExamineeRepository struct {
	pool *pgxpool.Pool
}

// NewExamineeRepository creates a new ExamineeRepository.
func NewExamineeRepository(pool *pgxpool.Pool) *ExamineeRepository {
	return &ExamineeRepository{pool: pool}
}

func scanExaminee(row interface{ Scan(dest ...any) error }) (*model.Examinee, error) {
	e := &model.Examinee{}
	err := row.Scan(
		&e.ID, &e.BatchID, &e.UserID, &e.PapersNo, &e.ReviewStatus, &e.ExamStarted,
		&e.ExamStartTime, &e.Submitted, &e.SubmitTime, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByBatchAndUser retrieves one enrollment.
func (r *ExamineeRepository) GetByBatchAndUser(ctx context.Context, batchID, userID int64) (*model.Examinee, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+examineeColumns+`
		 FROM examinees WHERE batch_id = $1 AND user_id = $2`, batchID, userID)
	return scanExaminee(row)
}

// Create inserts an enrollment. Returns pgx.ErrNoRows from the Scan if the
// (batch,user) pair already exists (ON CONFLICT DO NOTHING swallows the row),
// which callers treat as a duplicate-join signal.
func (r *ExamineeRepository) Create(ctx context.Context, e *model.Examinee) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO examinees (batch_id, user_id, papers_no, review_status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (batch_id, user_id) DO NOTHING
		 RETURNING id, created_at`,
		e.BatchID, e.UserID, e.PapersNo, e.ReviewStatus,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListByUser retrieves all enrollments for a candidate, newest first.
func (r *ExamineeRepository) ListByUser(ctx context.Context, userID int64) ([]model.Examinee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examineeColumns+`
		 FROM examinees WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExaminees(rows)
}

// ListUnsubmitted retrieves the candidate's unsubmitted enrollments, started
// sessions first, newest first. The session engine treats the head as the
// active session and checks the started flag itself.
func (r *ExamineeRepository) ListUnsubmitted(ctx context.Context, userID int64) ([]model.Examinee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examineeColumns+`
		 FROM examinees
		 WHERE user_id = $1 AND submitted = FALSE
		 ORDER BY exam_start_time DESC NULLS LAST`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExaminees(rows)
}

// AssignPaperNo pins a paper variant on the enrollment, guarded by
// papers_no IS NULL so concurrent first-calls cannot overwrite each other.
// Reports whether this call won the assignment.
func (r *ExamineeRepository) AssignPaperNo(ctx context.Context, batchID, userID int64, papersNo int32) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE examinees SET papers_no = $1
		 WHERE batch_id = $2 AND user_id = $3 AND papers_no IS NULL`,
		papersNo, batchID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkStarted flips exam_started and records the start time only once;
// repeated calls keep the original timestamp.
func (r *ExamineeRepository) MarkStarted(ctx context.Context, batchID, userID int64, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE examinees
		 SET exam_started = TRUE,
		     exam_start_time = COALESCE(exam_start_time, $1)
		 WHERE batch_id = $2 AND user_id = $3`,
		now, batchID, userID)
	return err
}

// MarkSubmitted finalizes the enrollment, guarded by submitted = FALSE so
// exactly one of any concurrent submit attempts wins. Reports whether this
// call was the winner.
func (r *ExamineeRepository) MarkSubmitted(ctx context.Context, batchID, userID int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE examinees
		 SET submitted = TRUE,
		     submit_time = $1,
		     exam_started = TRUE,
		     exam_start_time = COALESCE(exam_start_time, $1)
		 WHERE batch_id = $2 AND user_id = $3 AND submitted = FALSE`,
		now, batchID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateReviewStatus bulk-moves enrollments to the given review state.
func (r *ExamineeRepository) UpdateReviewStatus(ctx context.Context, batchID int64, userIDs []int64, status int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE examinees SET review_status = $1
		 WHERE batch_id = $2 AND user_id = ANY($3)`,
		status, batchID, userIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByBatchAndUsers detaches the given users from a batch.
func (r *ExamineeRepository) DeleteByBatchAndUsers(ctx context.Context, batchID int64, userIDs []int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM examinees WHERE batch_id = $1 AND user_id = ANY($2)`, batchID, userIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByBatch retrieves enrollments of a batch joined to candidate accounts,
// with optional name/ID-number filter and review-status filter.
func (r *ExamineeRepository) ListByBatch(ctx context.Context, batchID int64, key string, status *int, page, perPage int) ([]ExamineeRow, int64, error) {
	baseQuery := `
		FROM examinees e
		JOIN account_users u ON e.user_id = u.id
		WHERE e.batch_id = $1
	`
	args := []any{batchID}

	if key != "" {
		args = append(args, "%"+key+"%")
		baseQuery += fmt.Sprintf(" AND (u.name ILIKE $%d OR u.id_no ILIKE $%d)", len(args), len(args))
	}
	if status != nil {
		args = append(args, *status)
		baseQuery += fmt.Sprintf(" AND e.review_status = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT u.id, u.name, u.org_name, u.id_no, u.phone, e.review_status, e.submitted
	` + baseQuery + fmt.Sprintf(`
		ORDER BY u.name ASC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []ExamineeRow
	for rows.Next() {
		var er ExamineeRow
		if err := rows.Scan(&er.UserID, &er.UserName, &er.OrgName, &er.IDNo, &er.Phone, &er.ReviewStatus, &er.Submitted); err != nil {
			return nil, 0, err
		}
		results = append(results, er)
	}
	return results, total, rows.Err()
}

// ListOptionalUsers retrieves candidate accounts not yet bound to the batch.
func (r *ExamineeRepository) ListOptionalUsers(ctx context.Context, batchID int64, key string, page, perPage int) ([]model.AccountUser, int64, error) {
	baseQuery := `
		FROM account_users u
		WHERE NOT EXISTS (
			SELECT 1 FROM examinees e WHERE e.batch_id = $1 AND e.user_id = u.id
		)
	`
	args := []any{batchID}
	if key != "" {
		args = append(args, "%"+key+"%")
		baseQuery += fmt.Sprintf(" AND (u.name ILIKE $%d OR u.id_no ILIKE $%d)", len(args), len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT u.id, u.name, u.org_name, u.id_no, u.phone, u.locked, u.created_at
	` + baseQuery + fmt.Sprintf(`
		ORDER BY u.name ASC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []model.AccountUser
	for rows.Next() {
		var u model.AccountUser
		if err := rows.Scan(&u.ID, &u.Name, &u.OrgName, &u.IDNo, &u.Phone, &u.Locked, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func collectExaminees(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Examinee, error) {
	var list []model.Examinee
	for rows.Next() {
		e := model.Examinee{}
		if err := rows.Scan(
			&e.ID, &e.BatchID, &e.UserID, &e.PapersNo, &e.ReviewStatus, &e.ExamStarted,
			&e.ExamStartTime, &e.Submitted, &e.SubmitTime, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
