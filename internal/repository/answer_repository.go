package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexamine/lexam-backend/internal/model"
)

// AnswerRepository handles the answer ledger: one live row per
// (batch, user, item).
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert saves an answer, replacing any prior row for the same
// (batch, user, item). A replaced row loses its grading columns, since the
// new encoding has not been graded yet.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.ExamAnswer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_answers (batch_id, user_id, item_id, chosen, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (batch_id, user_id, item_id) DO UPDATE
		 SET chosen = EXCLUDED.chosen,
		     is_correct = NULL,
		     score = NULL,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		a.BatchID, a.UserID, a.ItemID, a.Chosen, a.UpdatedAt,
	).Scan(&a.ID)
}

// ListByBatchAndUser retrieves all answers of one examinee.
func (r *AnswerRepository) ListByBatchAndUser(ctx context.Context, batchID, userID int64) ([]model.ExamAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, batch_id, user_id, item_id, chosen, is_correct, score, updated_at
		 FROM exam_answers
		 WHERE batch_id = $1 AND user_id = $2
		 ORDER BY item_id ASC`, batchID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.ExamAnswer
	for rows.Next() {
		var a model.ExamAnswer
		if err := rows.Scan(&a.ID, &a.BatchID, &a.UserID, &a.ItemID, &a.Chosen, &a.IsCorrect, &a.Score, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// UpdateGrading writes the scoring verdict back onto one answer row.
func (r *AnswerRepository) UpdateGrading(ctx context.Context, id int64, isCorrect bool, score float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_answers SET is_correct = $1, score = $2 WHERE id = $3`,
		isCorrect, score, id)
	return err
}
