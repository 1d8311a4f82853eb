package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexamine/lexam-backend/internal/model"
)

const batchColumns = `id, batch_name, start_time, end_time, prepare_minutes, advance_minutes,
	late_minutes, options_random, item_random, papers_group_id, self_join,
	review_required, released, papers_distributed, created_at, updated_at`

// BatchRepository handles exam batch data access.
type BatchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

func scanBatch(row interface{ Scan(dest ...any) error }) (*model.ExamBatch, error) {
	b := &model.ExamBatch{}
	err := row.Scan(
		&b.ID, &b.BatchName, &b.StartTime, &b.EndTime, &b.PrepareMinutes, &b.AdvanceMinutes,
		&b.LateMinutes, &b.OptionsRandom, &b.ItemRandom, &b.PapersGroupID, &b.SelfJoin,
		&b.ReviewRequired, &b.Released, &b.PapersDistributed, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByID retrieves a batch by its primary key.
func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*model.ExamBatch, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM exam_batches WHERE id = $1`, id)
	return scanBatch(row)
}

// Create inserts a new batch. Released and papers_distributed start false.
func (r *BatchRepository) Create(ctx context.Context, b *model.ExamBatch) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_batches
		 (batch_name, start_time, end_time, prepare_minutes, advance_minutes, late_minutes,
		  options_random, item_random, papers_group_id, self_join, review_required,
		  released, papers_distributed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, FALSE)
		 RETURNING id, created_at, updated_at`,
		b.BatchName, b.StartTime, b.EndTime, b.PrepareMinutes, b.AdvanceMinutes, b.LateMinutes,
		b.OptionsRandom, b.ItemRandom, b.PapersGroupID, b.SelfJoin, b.ReviewRequired,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// Update rewrites the mutable batch fields.
func (r *BatchRepository) Update(ctx context.Context, b *model.ExamBatch) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_batches
		 SET batch_name = $1, start_time = $2, end_time = $3, prepare_minutes = $4,
		     advance_minutes = $5, late_minutes = $6, options_random = $7, item_random = $8,
		     papers_group_id = $9, self_join = $10, review_required = $11, updated_at = NOW()
		 WHERE id = $12`,
		b.BatchName, b.StartTime, b.EndTime, b.PrepareMinutes,
		b.AdvanceMinutes, b.LateMinutes, b.OptionsRandom, b.ItemRandom,
		b.PapersGroupID, b.SelfJoin, b.ReviewRequired, b.ID)
	return err
}

// SetFlags persists the released / papers_distributed lifecycle pair.
func (r *BatchRepository) SetFlags(ctx context.Context, id int64, released, distributed bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_batches
		 SET released = $1, papers_distributed = $2, updated_at = NOW()
		 WHERE id = $3`,
		released, distributed, id)
	return err
}

// Delete removes the given batches.
func (r *BatchRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exam_batches WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListJoinable retrieves batches open for self-enrollment: released, papers
// not yet distributed, and not started.
func (r *BatchRepository) ListJoinable(ctx context.Context, now time.Time) ([]model.ExamBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+`
		 FROM exam_batches
		 WHERE released = TRUE AND papers_distributed = FALSE AND start_time > $1
		 ORDER BY start_time ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ListEnabledNotStarted retrieves enabled batches whose exam has not begun.
func (r *BatchRepository) ListEnabledNotStarted(ctx context.Context, now time.Time) ([]model.ExamBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+`
		 FROM exam_batches
		 WHERE released = TRUE AND papers_distributed = TRUE AND start_time > $1
		 ORDER BY start_time ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ListPaged retrieves batches with an optional name filter, newest first.
func (r *BatchRepository) ListPaged(ctx context.Context, key string, page, perPage int) ([]model.ExamBatch, int64, error) {
	where := ""
	args := []any{}
	if key != "" {
		args = append(args, "%"+key+"%")
		where = fmt.Sprintf(" WHERE batch_name ILIKE $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM exam_batches`+where+
			fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := collectBatches(rows)
	return list, total, err
}

func collectBatches(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.ExamBatch, error) {
	var list []model.ExamBatch
	for rows.Next() {
		b := model.ExamBatch{}
		if err := rows.Scan(
			&b.ID, &b.BatchName, &b.StartTime, &b.EndTime, &b.PrepareMinutes, &b.AdvanceMinutes,
			&b.LateMinutes, &b.OptionsRandom, &b.ItemRandom, &b.PapersGroupID, &b.SelfJoin,
			&b.ReviewRequired, &b.Released, &b.PapersDistributed, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
