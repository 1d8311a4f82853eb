package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexamine/lexam-backend/internal/model"
)

// PaperRepository reads immutable paper variants. The session and scoring
// engines never write through it.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

// GetGroup retrieves a paper group header.
func (r *PaperRepository) GetGroup(ctx context.Context, groupID int64) (*model.PaperGroup, error) {
	g := &model.PaperGroup{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, group_title, papers_count, total_score, template_id, creator_id, created_at
		 FROM paper_groups WHERE id = $1`, groupID,
	).Scan(&g.ID, &g.GroupTitle, &g.PapersCount, &g.TotalScore, &g.TemplateID, &g.CreatorID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListVariantNumbers retrieves the variant numbers available under a group,
// in ascending order.
func (r *PaperRepository) ListVariantNumbers(ctx context.Context, groupID int64) ([]int32, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT papers_no FROM papers WHERE group_id = $1 ORDER BY papers_no ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nos []int32
	for rows.Next() {
		var no int32
		if err := rows.Scan(&no); err != nil {
			return nil, err
		}
		nos = append(nos, no)
	}
	return nos, rows.Err()
}

// GetVariant retrieves a variant header by group and number.
func (r *PaperRepository) GetVariant(ctx context.Context, groupID int64, papersNo int32) (*model.Paper, error) {
	p := &model.Paper{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, group_id, title, papers_no, total_score, created_at
		 FROM papers WHERE group_id = $1 AND papers_no = $2`, groupID, papersNo,
	).Scan(&p.ID, &p.GroupID, &p.Title, &p.PapersNo, &p.TotalScore, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListStructs retrieves a variant's structure breakdown.
func (r *PaperRepository) ListStructs(ctx context.Context, papersID int64) ([]model.PaperStruct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT papers_id, type_name, type_remarks, score
		 FROM paper_structs WHERE papers_id = $1 ORDER BY type_name ASC`, papersID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var structs []model.PaperStruct
	for rows.Next() {
		var s model.PaperStruct
		if err := rows.Scan(&s.PapersID, &s.TypeName, &s.TypeRemarks, &s.Score); err != nil {
			return nil, err
		}
		structs = append(structs, s)
	}
	return structs, rows.Err()
}

// ListItems retrieves a variant's items in on-paper order, each with all of
// its options including the answer key. Callers serving candidates must
// strip correctness before responding.
func (r *PaperRepository) ListItems(ctx context.Context, papersID int64) ([]model.PaperItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pc.item_id, ib.type_id, ib.type_name, ib.content, pc.score, pc.sort_order
		 FROM paper_contents pc
		 JOIN item_bank ib ON pc.item_id = ib.id
		 WHERE pc.papers_id = $1
		 ORDER BY pc.sort_order ASC`, papersID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.PaperItem
	for rows.Next() {
		var it model.PaperItem
		if err := rows.Scan(&it.ItemID, &it.TypeID, &it.TypeName, &it.Content, &it.Score, &it.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		opts, err := r.listOptions(ctx, items[i].ItemID)
		if err != nil {
			return nil, err
		}
		items[i].Options = opts
	}
	return items, nil
}

func (r *PaperRepository) listOptions(ctx context.Context, itemID int64) ([]model.ItemOption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT option_no, option_title, is_correct
		 FROM item_options WHERE item_id = $1 ORDER BY option_no ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []model.ItemOption
	for rows.Next() {
		var op model.ItemOption
		if err := rows.Scan(&op.No, &op.Title, &op.IsCorrect); err != nil {
			return nil, err
		}
		opts = append(opts, op)
	}
	return opts, rows.Err()
}
