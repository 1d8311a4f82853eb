package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/lexamine/lexam-backend/internal/config"
	"github.com/lexamine/lexam-backend/internal/model"
	"github.com/lexamine/lexam-backend/internal/repository"
	"github.com/lexamine/lexam-backend/internal/response"
)

// Scoring errors.
var (
	ErrNotSubmitted  = errors.New("exam has not been submitted")
	ErrScoreNotFound = errors.New("score not found")
)

// ScoreService grades submitted papers and serves score queries.
type ScoreService struct {
	batches   BatchStore
	examinees ExamineeStore
	answers   AnswerStore
	papers    PaperStore
	scores    ScoreStore
	scoreRepo *repository.ScoreRepository
	userRepo  *repository.UserRepository
	cfg       *config.Config
	log       zerolog.Logger
}

// NewScoreService creates a new ScoreService.
func NewScoreService(
	batches BatchStore,
	examinees ExamineeStore,
	answers AnswerStore,
	papers PaperStore,
	scores ScoreStore,
	scoreRepo *repository.ScoreRepository,
	userRepo *repository.UserRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *ScoreService {
	return &ScoreService{
		batches:   batches,
		examinees: examinees,
		answers:   answers,
		papers:    papers,
		scores:    scores,
		scoreRepo: scoreRepo,
		userRepo:  userRepo,
		cfg:       cfg,
		log:       log.With().Str("component", "score_service").Logger(),
	}
}

// EvaluateAndSave grades one submitted paper and upserts the score row.
// Grading is deterministic and re-runnable: every answer's correctness and
// score are rewritten from the key, then the total replaces any prior score.
func (s *ScoreService) EvaluateAndSave(ctx context.Context, batchID, userID int64) error {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}

	examinee, err := s.examinees.GetByBatchAndUser(ctx, batchID, userID)
	if err != nil {
		return fmt.Errorf("load examinee: %w", err)
	}
	if !examinee.Submitted || examinee.SubmitTime == nil {
		return ErrNotSubmitted
	}

	papersNo, err := s.resolveVariant(ctx, batch, examinee)
	if err != nil {
		return err
	}

	variant, err := s.papers.GetVariant(ctx, batch.PapersGroupID, papersNo)
	if err != nil {
		return fmt.Errorf("load variant: %w", err)
	}
	items, err := s.papers.ListItems(ctx, variant.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	itemIndex := make(map[int64]*model.PaperItem, len(items))
	for i := range items {
		itemIndex[items[i].ItemID] = &items[i]
	}

	answers, err := s.answers.ListByBatchAndUser(ctx, batchID, userID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}

	var total float64
	for i := range answers {
		item, ok := itemIndex[answers[i].ItemID]
		if !ok {
			s.log.Warn().
				Int64("batch_id", batchID).
				Int64("user_id", userID).
				Int64("item_id", answers[i].ItemID).
				Msg("answer references item not on the assigned variant, skipped")
			continue
		}
		correct, earned := gradeItem(item, answers[i].Chosen)
		if err := s.answers.UpdateGrading(ctx, answers[i].ID, correct, earned); err != nil {
			return fmt.Errorf("write grading: %w", err)
		}
		total += earned
	}

	score := &model.ExamScore{
		BatchID:      batchID,
		UserID:       userID,
		TotalScore:   total,
		PassScore:    s.cfg.PassScore,
		IsPass:       isPassing(total, s.cfg.PassScore),
		ExamDuration: durationMinutes(examinee.ExamStartTime, *examinee.SubmitTime),
		SubmitTime:   *examinee.SubmitTime,
	}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return fmt.Errorf("save score: %w", err)
	}

	s.log.Info().
		Int64("batch_id", batchID).
		Int64("user_id", userID).
		Float64("total", total).
		Bool("pass", score.IsPass).
		Msg("paper graded")
	return nil
}

// resolveVariant returns the examinee's assigned variant number. A submitted
// paper with no assignment should not exist; when it does, grading falls back
// to the group's first variant so the submission still yields a score.
func (s *ScoreService) resolveVariant(ctx context.Context, batch *model.ExamBatch, examinee *model.Examinee) (int32, error) {
	if examinee.PapersNo != nil {
		return *examinee.PapersNo, nil
	}

	nos, err := s.papers.ListVariantNumbers(ctx, batch.PapersGroupID)
	if err != nil {
		return 0, fmt.Errorf("list variants: %w", err)
	}
	if len(nos) == 0 {
		return 0, ErrNoVariants
	}
	s.log.Warn().
		Int64("batch_id", examinee.BatchID).
		Int64("user_id", examinee.UserID).
		Int32("papers_no", nos[0]).
		Msg("submitted paper has no variant assigned, grading against first variant")
	return nos[0], nil
}

// ScoreDetailItem is one item's outcome in a graded paper.
type ScoreDetailItem struct {
	ItemID    int64    `json:"id"`
	Content   string   `json:"content"`
	MaxScore  float64  `json:"max_score"`
	Chosen    []int32  `json:"chosen"`
	Correct   []int32  `json:"correct"`
	IsCorrect *bool    `json:"is_correct"`
	Earned    *float64 `json:"earned"`
}

// ScoreDetailGroup groups graded items under their type name.
type ScoreDetailGroup struct {
	TypeName string            `json:"type_name"`
	Items    []ScoreDetailItem `json:"items"`
}

// ScoreDetail is the full graded view of one candidate's paper.
type ScoreDetail struct {
	User   *model.AccountUser `json:"user"`
	Score  *model.ExamScore   `json:"score"`
	Groups []ScoreDetailGroup `json:"groups"`
}

// GetDetail returns the per-item breakdown of a graded paper, grouped by item
// type in on-paper order.
func (s *ScoreService) GetDetail(ctx context.Context, batchID, userID int64) (*ScoreDetail, error) {
	score, err := s.scores.GetByBatchAndUser(ctx, batchID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("load score: %w", err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}
	examinee, err := s.examinees.GetByBatchAndUser(ctx, batchID, userID)
	if err != nil {
		return nil, fmt.Errorf("load examinee: %w", err)
	}
	papersNo, err := s.resolveVariant(ctx, batch, examinee)
	if err != nil {
		return nil, err
	}
	variant, err := s.papers.GetVariant(ctx, batch.PapersGroupID, papersNo)
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}
	items, err := s.papers.ListItems(ctx, variant.ID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	answers, err := s.answers.ListByBatchAndUser(ctx, batchID, userID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	answerIndex := make(map[int64]*model.ExamAnswer, len(answers))
	for i := range answers {
		answerIndex[answers[i].ItemID] = &answers[i]
	}

	detail := &ScoreDetail{User: user, Score: score}
	groupIndex := make(map[string]int)
	for i := range items {
		item := &items[i]
		di := ScoreDetailItem{
			ItemID:   item.ItemID,
			Content:  item.Content,
			MaxScore: item.Score,
			Correct:  correctNumbers(item),
		}
		if ans, ok := answerIndex[item.ItemID]; ok {
			di.Chosen = normalizeChosen(item.TypeID, ans.Chosen)
			di.IsCorrect = ans.IsCorrect
			di.Earned = ans.Score
		}

		gi, ok := groupIndex[item.TypeName]
		if !ok {
			detail.Groups = append(detail.Groups, ScoreDetailGroup{TypeName: item.TypeName})
			gi = len(detail.Groups) - 1
			groupIndex[item.TypeName] = gi
		}
		detail.Groups[gi].Items = append(detail.Groups[gi].Items, di)
	}
	return detail, nil
}

func correctNumbers(item *model.PaperItem) []int32 {
	var out []int32
	for _, op := range item.Options {
		if op.IsCorrect {
			out = append(out, op.No)
		}
	}
	return out
}

// Pages returns a paged score listing for one batch.
func (s *ScoreService) Pages(ctx context.Context, batchID int64, key string, pass *bool, page, perPage int) ([]repository.ScoreRow, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	rows, total, err := s.scoreRepo.ListByBatch(ctx, batchID, key, pass, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if rows == nil {
		rows = []repository.ScoreRow{}
	}
	return rows, buildPagination(page, perPage, total), nil
}

// ExportPassing builds an .xlsx workbook listing every passing candidate of a
// batch. The caller owns the returned file and must close it.
func (s *ScoreService) ExportPassing(ctx context.Context, batchID int64) (*excelize.File, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}
	rows, err := s.scoreRepo.ListPassingByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list passing: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Sheet1"
	headers := []string{"Name", "ID Number", "Organization", "Phone", "Score", "Duration (min)", "Submitted At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	for r, row := range rows {
		values := []interface{}{
			row.UserName,
			row.IDNo,
			row.OrgName,
			row.Phone,
			row.TotalScore,
			nil,
			row.SubmitTime.Format("2006-01-02 15:04:05"),
		}
		if row.ExamDuration != nil {
			values[5] = *row.ExamDuration
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("write row: %w", err)
			}
		}
	}

	s.log.Info().
		Int64("batch_id", batchID).
		Str("batch_name", batch.BatchName).
		Int("count", len(rows)).
		Msg("passing list exported")
	return f, nil
}
