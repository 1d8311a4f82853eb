package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexamine/lexam-backend/internal/model"
)

// ScoreRow combines a graded score with candidate account fields for admin
// listings and exports.
type ScoreRow struct {
	UserID       int64     `json:"user_id"`
	UserName     string    `json:"user_name"`
	OrgName      string    `json:"org"`
	IDNo         string    `json:"id_no"`
	Phone        string    `json:"phone"`
	TotalScore   float64   `json:"score"`
	IsPass       bool      `json:"is_pass"`
	ExamDuration *int      `json:"exam_duration,omitempty"`
	SubmitTime   time.Time `json:"submit_time"`
}

// ScoreRepository handles exam score data access.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Upsert writes the score for one (batch, user), overwriting a prior row.
// Retried grading therefore converges on a single record.
func (r *ScoreRepository) Upsert(ctx context.Context, s *model.ExamScore) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_scores
		 (batch_id, user_id, total_score, pass_score, is_pass, exam_duration, submit_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (batch_id, user_id) DO UPDATE
		 SET total_score = EXCLUDED.total_score,
		     pass_score = EXCLUDED.pass_score,
		     is_pass = EXCLUDED.is_pass,
		     exam_duration = EXCLUDED.exam_duration,
		     submit_time = EXCLUDED.submit_time
		 RETURNING id, created_at`,
		s.BatchID, s.UserID, s.TotalScore, s.PassScore, s.IsPass, s.ExamDuration, s.SubmitTime,
	).Scan(&s.ID, &s.CreatedAt)
}

// GetByBatchAndUser retrieves one score record.
func (r *ScoreRepository) GetByBatchAndUser(ctx context.Context, batchID, userID int64) (*model.ExamScore, error) {
	s := &model.ExamScore{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, batch_id, user_id, total_score, pass_score, is_pass, exam_duration, submit_time, created_at
		 FROM exam_scores
		 WHERE batch_id = $1 AND user_id = $2`, batchID, userID,
	).Scan(&s.ID, &s.BatchID, &s.UserID, &s.TotalScore, &s.PassScore, &s.IsPass, &s.ExamDuration, &s.SubmitTime, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByBatch retrieves scores of a batch joined to candidate accounts, with
// optional name/ID-number filter and pass filter.
func (r *ScoreRepository) ListByBatch(ctx context.Context, batchID int64, key string, pass *bool, page, perPage int) ([]ScoreRow, int64, error) {
	baseQuery := `
		FROM exam_scores s
		JOIN account_users u ON s.user_id = u.id
		WHERE s.batch_id = $1
	`
	args := []any{batchID}

	if key != "" {
		args = append(args, "%"+key+"%")
		baseQuery += fmt.Sprintf(" AND (u.name ILIKE $%d OR u.id_no ILIKE $%d)", len(args), len(args))
	}
	if pass != nil {
		args = append(args, *pass)
		baseQuery += fmt.Sprintf(" AND s.is_pass = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT u.id, u.name, u.org_name, u.id_no, u.phone, s.total_score, s.is_pass, s.exam_duration, s.submit_time
	` + baseQuery + fmt.Sprintf(`
		ORDER BY s.total_score DESC, u.name ASC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := collectScoreRows(rows)
	return results, total, err
}

// ListPassingByBatch retrieves all passing scores of a batch for export.
func (r *ScoreRepository) ListPassingByBatch(ctx context.Context, batchID int64) ([]ScoreRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.org_name, u.id_no, u.phone, s.total_score, s.is_pass, s.exam_duration, s.submit_time
		 FROM exam_scores s
		 JOIN account_users u ON s.user_id = u.id
		 WHERE s.batch_id = $1 AND s.is_pass = TRUE
		 ORDER BY s.total_score DESC, u.name ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScoreRows(rows)
}

func collectScoreRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]ScoreRow, error) {
	var results []ScoreRow
	for rows.Next() {
		var sr ScoreRow
		if err := rows.Scan(&sr.UserID, &sr.UserName, &sr.OrgName, &sr.IDNo, &sr.Phone, &sr.TotalScore, &sr.IsPass, &sr.ExamDuration, &sr.SubmitTime); err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}
