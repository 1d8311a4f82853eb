package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lexamine/lexam-backend/internal/config"
	"github.com/lexamine/lexam-backend/internal/model"
)

// Session lifecycle errors.
var (
	ErrBatchNotFound      = errors.New("exam batch not found")
	ErrBatchStarted       = errors.New("exam batch has already started")
	ErrAlreadyJoined      = errors.New("already joined this exam batch")
	ErrNotEnrolled        = errors.New("not enrolled in this exam batch")
	ErrReviewPending      = errors.New("enrollment is awaiting review")
	ErrOutsideWindow      = errors.New("outside the exam time window")
	ErrExamNotStarted     = errors.New("exam has not been started")
	ErrExamClosed         = errors.New("exam has ended")
	ErrNoActiveSession    = errors.New("no exam in progress")
	ErrAlreadySubmitted   = errors.New("exam already submitted")
	ErrSubmitWindowClosed = errors.New("submission window has closed")
	ErrNoVariants         = errors.New("paper group has no variants")
)

const (
	submitLockTTL = 30 * time.Second
	paperCacheTTL = 30 * time.Minute
)

// ExamService drives the candidate-facing exam session lifecycle: joining a
// batch, fetching the assigned paper, starting, answering, and submitting.
type ExamService struct {
	batches   BatchStore
	examinees ExamineeStore
	answers   AnswerStore
	papers    PaperStore
	scorer    *ScoreService
	rdb       *redis.Client
	cfg       *config.Config
	log       zerolog.Logger

	// Injectable for deterministic tests.
	now  func() time.Time
	intn func(n int) int
}

// NewExamService creates a new ExamService. rand must return a uniform value
// in [0, n).
func NewExamService(
	batches BatchStore,
	examinees ExamineeStore,
	answers AnswerStore,
	papers PaperStore,
	scorer *ScoreService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
	now func() time.Time,
	rand func(n int) int,
) *ExamService {
	return &ExamService{
		batches:   batches,
		examinees: examinees,
		answers:   answers,
		papers:    papers,
		scorer:    scorer,
		rdb:       rdb,
		cfg:       cfg,
		log:       log.With().Str("component", "exam_service").Logger(),
		now:       now,
		intn:      rand,
	}
}

// CandidateBatch is a batch as seen by one candidate, with the candidate's
// own lifecycle flags attached.
type CandidateBatch struct {
	model.ExamBatch
	Joined    bool `json:"joined"`
	Started   bool `json:"started"`
	Submitted bool `json:"submitted"`
}

// ListJoinableBatches returns released batches that have not yet distributed
// papers and have not started, flagging the ones the candidate already
// joined.
func (s *ExamService) ListJoinableBatches(ctx context.Context, userID int64) ([]CandidateBatch, error) {
	now := s.now()
	batches, err := s.batches.ListJoinable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list joinable: %w", err)
	}

	joined, err := s.enrollmentsByBatch(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]CandidateBatch, 0, len(batches))
	for _, b := range batches {
		_, isJoined := joined[b.ID]
		out = append(out, CandidateBatch{ExamBatch: b, Joined: isJoined})
	}
	return out, nil
}

// ListMyBatches returns the candidate's approved enrollments whose batch is
// enabled and not yet past its end time.
func (s *ExamService) ListMyBatches(ctx context.Context, userID int64) ([]CandidateBatch, error) {
	now := s.now()
	enrollments, err := s.examinees.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	out := make([]CandidateBatch, 0, len(enrollments))
	for _, e := range enrollments {
		if e.ReviewStatus != model.ReviewApproved {
			continue
		}
		batch, err := s.batches.GetByID(ctx, e.BatchID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("load batch %d: %w", e.BatchID, err)
		}
		if !batch.Enabled() || now.After(batch.EndTime) {
			continue
		}
		out = append(out, CandidateBatch{
			ExamBatch: *batch,
			Joined:    true,
			Started:   e.ExamStarted,
			Submitted: e.Submitted,
		})
	}
	return out, nil
}

// Join enrolls the candidate into a batch. Joining closes at the batch start
// time. The enrollment lands pending when the batch requires review,
// approved otherwise, and the paper variant is assigned right away.
func (s *ExamService) Join(ctx context.Context, userID, batchID int64) (*model.Examinee, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(batch.StartTime) {
		return nil, ErrBatchStarted
	}

	status := model.ReviewApproved
	if batch.ReviewRequired {
		status = model.ReviewPending
	}
	examinee := &model.Examinee{
		BatchID:      batchID,
		UserID:       userID,
		ReviewStatus: status,
	}
	if err := s.examinees.Create(ctx, examinee); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyJoined
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	if _, err := s.ensureVariant(ctx, batch, examinee); err != nil {
		// The assignment retries on the next paper fetch.
		s.log.Warn().Err(err).
			Int64("batch_id", batchID).
			Int64("user_id", userID).
			Msg("variant assignment at join failed")
	}

	s.log.Info().
		Int64("batch_id", batchID).
		Int64("user_id", userID).
		Int("review_status", status).
		Msg("candidate joined batch")
	return examinee, nil
}

// PaperItemGroup bundles a variant's items under one type name, in on-paper
// order.
type PaperItemGroup struct {
	TypeName string            `json:"type_name"`
	Items    []model.PaperItem `json:"items"`
}

// PaperView is the candidate-safe rendering of one paper variant. Option
// correctness never serializes.
type PaperView struct {
	Title      string              `json:"title"`
	PapersNo   int32               `json:"papers_no"`
	TotalScore float64             `json:"total_score"`
	Structs    []model.PaperStruct `json:"structs"`
	Groups     []PaperItemGroup    `json:"groups"`
}

// GetPaper returns the candidate's assigned paper variant. It requires an
// approved enrollment and the open window, which runs from prepare-minutes
// before the start time until the end time.
func (s *ExamService) GetPaper(ctx context.Context, userID, batchID int64) (*PaperView, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	examinee, err := s.getApprovedEnrollment(ctx, batchID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOpenWindow(batch); err != nil {
		return nil, err
	}

	papersNo, err := s.ensureVariant(ctx, batch, examinee)
	if err != nil {
		return nil, err
	}
	return s.loadPaperView(ctx, batch.PapersGroupID, papersNo)
}

// Start records the candidate's exam start. The first call pins the start
// time; repeats are no-ops, so a reconnecting client never resets its clock.
func (s *ExamService) Start(ctx context.Context, userID, batchID int64) error {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return err
	}
	examinee, err := s.getApprovedEnrollment(ctx, batchID, userID)
	if err != nil {
		return err
	}
	if examinee.Submitted {
		return ErrAlreadySubmitted
	}
	if err := s.checkOpenWindow(batch); err != nil {
		return err
	}

	if err := s.examinees.MarkStarted(ctx, batchID, userID, s.now()); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	return nil
}

// SaveAnswer records one item's answer into the candidate's single running
// session, replacing any earlier answer for the same item.
func (s *ExamService) SaveAnswer(ctx context.Context, userID, itemID int64, chosen []int32) error {
	sessions, err := s.examinees.ListUnsubmitted(ctx, userID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if len(sessions) == 0 {
		return ErrNoActiveSession
	}
	session := sessions[0]
	if !session.ExamStarted {
		return ErrExamNotStarted
	}

	batch, err := s.getBatch(ctx, session.BatchID)
	if err != nil {
		return err
	}
	if s.now().After(batch.EndTime) {
		return ErrExamClosed
	}

	answer := &model.ExamAnswer{
		BatchID:   session.BatchID,
		UserID:    userID,
		ItemID:    itemID,
		Chosen:    chosen,
		UpdatedAt: s.now(),
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Submit hands in the paper and grades it. Late submission is accepted for a
// grace period after the end time, but any answers carried in a late payload
// are discarded. The submitted flag persists before grading runs, so a
// grading failure never reopens the session.
func (s *ExamService) Submit(ctx context.Context, userID, batchID int64, answers []model.AnswerRequest) error {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return err
	}
	examinee, err := s.getEnrollment(ctx, batchID, userID)
	if err != nil {
		return err
	}
	if examinee.Submitted {
		return ErrAlreadySubmitted
	}
	if !examinee.ExamStarted {
		return ErrExamNotStarted
	}

	now := s.now()
	deadline := batch.EndTime.Add(time.Duration(s.cfg.LateGraceMinutes) * time.Minute)
	if now.After(deadline) {
		return ErrSubmitWindowClosed
	}

	lockKey := config.CacheKey.SubmitLockKey(batchID, userID)
	locked, err := s.rdb.SetNX(ctx, lockKey, "1", submitLockTTL).Result()
	if err != nil {
		// The submitted-flag CAS below is the authority; the lock only
		// shortcuts doomed concurrent grading.
		s.log.Warn().Err(err).Msg("submit lock unavailable, relying on database")
	} else if !locked {
		return ErrAlreadySubmitted
	} else {
		defer s.rdb.Del(context.WithoutCancel(ctx), lockKey)
	}

	if len(answers) > 0 && !now.After(batch.EndTime) {
		for _, a := range answers {
			ans := &model.ExamAnswer{
				BatchID:   batchID,
				UserID:    userID,
				ItemID:    a.ID,
				Chosen:    a.Ans,
				UpdatedAt: now,
			}
			if err := s.answers.Upsert(ctx, ans); err != nil {
				return fmt.Errorf("save answer %d: %w", a.ID, err)
			}
		}
	}

	won, err := s.examinees.MarkSubmitted(ctx, batchID, userID, now)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if !won {
		return ErrAlreadySubmitted
	}

	if err := s.scorer.EvaluateAndSave(ctx, batchID, userID); err != nil {
		s.log.Error().Err(err).
			Int64("batch_id", batchID).
			Int64("user_id", userID).
			Msg("grading failed after submission")
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}

// ensureVariant returns the examinee's variant number, assigning one first
// if needed. Assignment is a compare-and-set on the unassigned row; losing
// the race means another request already assigned, so the stored value wins.
func (s *ExamService) ensureVariant(ctx context.Context, batch *model.ExamBatch, examinee *model.Examinee) (int32, error) {
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

	pick := nos[s.intn(len(nos))]
	won, err := s.examinees.AssignPaperNo(ctx, batch.ID, examinee.UserID, pick)
	if err != nil {
		return 0, fmt.Errorf("assign variant: %w", err)
	}
	if won {
		examinee.PapersNo = &pick
		return pick, nil
	}

	current, err := s.examinees.GetByBatchAndUser(ctx, batch.ID, examinee.UserID)
	if err != nil {
		return 0, fmt.Errorf("reload enrollment: %w", err)
	}
	if current.PapersNo == nil {
		return 0, fmt.Errorf("variant assignment raced but no variant stored")
	}
	examinee.PapersNo = current.PapersNo
	return *current.PapersNo, nil
}

// loadPaperView builds the candidate-safe payload for one variant, cached in
// Redis per (group, variant). Papers are immutable once grouped, so the
// cache never needs invalidation.
func (s *ExamService) loadPaperView(ctx context.Context, groupID int64, papersNo int32) (*PaperView, error) {
	cacheKey := config.CacheKey.PaperContentKey(groupID, papersNo)
	if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var view PaperView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
		s.log.Warn().Str("key", cacheKey).Msg("corrupt paper cache entry, rebuilding")
	}

	variant, err := s.papers.GetVariant(ctx, groupID, papersNo)
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}
	structs, err := s.papers.ListStructs(ctx, variant.ID)
	if err != nil {
		return nil, fmt.Errorf("load structs: %w", err)
	}
	items, err := s.papers.ListItems(ctx, variant.ID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	view := &PaperView{
		Title:      variant.Title,
		PapersNo:   variant.PapersNo,
		TotalScore: variant.TotalScore,
		Structs:    structs,
	}
	groupIndex := make(map[string]int)
	for _, item := range items {
		gi, ok := groupIndex[item.TypeName]
		if !ok {
			view.Groups = append(view.Groups, PaperItemGroup{TypeName: item.TypeName})
			gi = len(view.Groups) - 1
			groupIndex[item.TypeName] = gi
		}
		view.Groups[gi].Items = append(view.Groups[gi].Items, item)
	}

	if payload, err := json.Marshal(view); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, payload, paperCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("paper cache write failed")
		}
	}
	return view, nil
}

func (s *ExamService) getBatch(ctx context.Context, batchID int64) (*model.ExamBatch, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return batch, nil
}

func (s *ExamService) getEnrollment(ctx context.Context, batchID, userID int64) (*model.Examinee, error) {
	examinee, err := s.examinees.GetByBatchAndUser(ctx, batchID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	return examinee, nil
}

func (s *ExamService) getApprovedEnrollment(ctx context.Context, batchID, userID int64) (*model.Examinee, error) {
	examinee, err := s.getEnrollment(ctx, batchID, userID)
	if err != nil {
		return nil, err
	}
	switch examinee.ReviewStatus {
	case model.ReviewApproved:
		return examinee, nil
	case model.ReviewPending:
		return nil, ErrReviewPending
	default:
		return nil, ErrNotEnrolled
	}
}

// checkOpenWindow verifies now ∈ [start − prepareMinutes, end].
func (s *ExamService) checkOpenWindow(batch *model.ExamBatch) error {
	now := s.now()
	if now.Before(batch.PreStart()) || now.After(batch.EndTime) {
		return ErrOutsideWindow
	}
	return nil
}

func (s *ExamService) enrollmentsByBatch(ctx context.Context, userID int64) (map[int64]model.Examinee, error) {
	enrollments, err := s.examinees.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make(map[int64]model.Examinee, len(enrollments))
	for _, e := range enrollments {
		out[e.BatchID] = e
	}
	return out, nil
}
