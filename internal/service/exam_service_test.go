package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lexamine/lexam-backend/internal/config"
	"github.com/lexamine/lexam-backend/internal/model"
)

// ─── In-memory fakes ───────────────────────────────────────────────────────

type fakeBatchStore struct {
	batches map[int64]*model.ExamBatch
}

func (f *fakeBatchStore) GetByID(_ context.Context, id int64) (*model.ExamBatch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBatchStore) ListJoinable(_ context.Context, now time.Time) ([]model.ExamBatch, error) {
	var out []model.ExamBatch
	for _, b := range f.batches {
		if b.Released && !b.PapersDistributed && now.Before(b.StartTime) {
			out = append(out, *b)
		}
	}
	return out, nil
}

type examineeKey struct{ batchID, userID int64 }

type fakeExamineeStore struct {
	mu     sync.Mutex
	rows   map[examineeKey]*model.Examinee
	nextID int64

	// Invoked once before the next CAS, simulating a concurrent writer.
	beforeAssign func(f *fakeExamineeStore)
	beforeSubmit func(f *fakeExamineeStore)
}

func newFakeExamineeStore() *fakeExamineeStore {
	return &fakeExamineeStore{rows: make(map[examineeKey]*model.Examinee)}
}

func (f *fakeExamineeStore) GetByBatchAndUser(_ context.Context, batchID, userID int64) (*model.Examinee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[examineeKey{batchID, userID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (f *fakeExamineeStore) Create(_ context.Context, e *model.Examinee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := examineeKey{e.BatchID, e.UserID}
	if _, ok := f.rows[key]; ok {
		return pgx.ErrNoRows
	}
	f.nextID++
	e.ID = f.nextID
	cp := *e
	f.rows[key] = &cp
	return nil
}

func (f *fakeExamineeStore) ListByUser(_ context.Context, userID int64) ([]model.Examinee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Examinee
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeExamineeStore) ListUnsubmitted(_ context.Context, userID int64) ([]model.Examinee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Examinee
	for _, row := range f.rows {
		if row.UserID == userID && !row.Submitted {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].ExamStartTime, out[j].ExamStartTime
		if ti == nil || tj == nil {
			return tj == nil
		}
		return ti.After(*tj)
	})
	return out, nil
}

func (f *fakeExamineeStore) AssignPaperNo(_ context.Context, batchID, userID int64, papersNo int32) (bool, error) {
	if hook := f.beforeAssign; hook != nil {
		f.beforeAssign = nil
		hook(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[examineeKey{batchID, userID}]
	if !ok {
		return false, nil
	}
	if row.PapersNo != nil {
		return false, nil
	}
	row.PapersNo = &papersNo
	return true, nil
}

func (f *fakeExamineeStore) MarkStarted(_ context.Context, batchID, userID int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[examineeKey{batchID, userID}]
	if !ok {
		return pgx.ErrNoRows
	}
	row.ExamStarted = true
	if row.ExamStartTime == nil {
		t := now
		row.ExamStartTime = &t
	}
	return nil
}

func (f *fakeExamineeStore) MarkSubmitted(_ context.Context, batchID, userID int64, now time.Time) (bool, error) {
	if hook := f.beforeSubmit; hook != nil {
		f.beforeSubmit = nil
		hook(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[examineeKey{batchID, userID}]
	if !ok {
		return false, nil
	}
	if row.Submitted {
		return false, nil
	}
	row.Submitted = true
	t := now
	row.SubmitTime = &t
	row.ExamStarted = true
	if row.ExamStartTime == nil {
		row.ExamStartTime = &t
	}
	return true, nil
}

// setPaperNo force-assigns a variant, bypassing the CAS.
func (f *fakeExamineeStore) setPaperNo(batchID, userID int64, papersNo int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[examineeKey{batchID, userID}]
	row.PapersNo = &papersNo
}

type answerKey struct{ batchID, userID, itemID int64 }

type fakeAnswerStore struct {
	mu     sync.Mutex
	rows   map[answerKey]*model.ExamAnswer
	nextID int64
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{rows: make(map[answerKey]*model.ExamAnswer)}
}

func (f *fakeAnswerStore) Upsert(_ context.Context, a *model.ExamAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := answerKey{a.BatchID, a.UserID, a.ItemID}
	if row, ok := f.rows[key]; ok {
		row.Chosen = append([]int32(nil), a.Chosen...)
		row.IsCorrect = nil
		row.Score = nil
		row.UpdatedAt = a.UpdatedAt
		a.ID = row.ID
		return nil
	}
	f.nextID++
	a.ID = f.nextID
	cp := *a
	cp.Chosen = append([]int32(nil), a.Chosen...)
	f.rows[key] = &cp
	return nil
}

func (f *fakeAnswerStore) ListByBatchAndUser(_ context.Context, batchID, userID int64) ([]model.ExamAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamAnswer
	for _, row := range f.rows {
		if row.BatchID == batchID && row.UserID == userID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (f *fakeAnswerStore) UpdateGrading(_ context.Context, id int64, isCorrect bool, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			c, s := isCorrect, score
			row.IsCorrect = &c
			row.Score = &s
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakePaperStore struct {
	groups   map[int64]*model.PaperGroup
	nos      map[int64][]int32
	variants map[int64]map[int32]*model.Paper
	structs  map[int64][]model.PaperStruct
	items    map[int64][]model.PaperItem
}

func (f *fakePaperStore) GetGroup(_ context.Context, groupID int64) (*model.PaperGroup, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return g, nil
}

func (f *fakePaperStore) ListVariantNumbers(_ context.Context, groupID int64) ([]int32, error) {
	return f.nos[groupID], nil
}

func (f *fakePaperStore) GetVariant(_ context.Context, groupID int64, papersNo int32) (*model.Paper, error) {
	p, ok := f.variants[groupID][papersNo]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakePaperStore) ListStructs(_ context.Context, papersID int64) ([]model.PaperStruct, error) {
	return f.structs[papersID], nil
}

func (f *fakePaperStore) ListItems(_ context.Context, papersID int64) ([]model.PaperItem, error) {
	return f.items[papersID], nil
}

type scoreKey struct{ batchID, userID int64 }

type fakeScoreStore struct {
	mu   sync.Mutex
	rows map[scoreKey]*model.ExamScore
}

func newFakeScoreStore() *fakeScoreStore {
	return &fakeScoreStore{rows: make(map[scoreKey]*model.ExamScore)}
}

func (f *fakeScoreStore) Upsert(_ context.Context, s *model.ExamScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.rows[scoreKey{s.BatchID, s.UserID}] = &cp
	return nil
}

func (f *fakeScoreStore) GetByBatchAndUser(_ context.Context, batchID, userID int64) (*model.ExamScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[scoreKey{batchID, userID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

// ─── Test environment ──────────────────────────────────────────────────────

const (
	testBatchID = int64(1)
	testGroupID = int64(7)
	testUserID  = int64(42)

	itemSingle   = int64(11)
	itemMulti    = int64(12)
	itemJudgment = int64(13)
)

type env struct {
	now  time.Time
	pick int

	batches   *fakeBatchStore
	examinees *fakeExamineeStore
	answers   *fakeAnswerStore
	papers    *fakePaperStore
	scores    *fakeScoreStore

	exam  *ExamService
	score *ScoreService
}

// newEnv builds a batch running 09:00-10:30 with 15 prepare minutes and a
// three-variant paper group. Variant 1 carries one single-choice item
// (30 pts, correct {2}), one multi-choice item (40 pts, correct {1,3}) and
// one judgment item (30 pts, correct "False").
func newEnv(t *testing.T) *env {
	t.Helper()

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

	e := &env{
		now: start.Add(-30 * time.Minute),
		batches: &fakeBatchStore{batches: map[int64]*model.ExamBatch{
			testBatchID: {
				ID:                testBatchID,
				BatchName:         "Morning Session",
				StartTime:         start,
				EndTime:           end,
				PrepareMinutes:    15,
				PapersGroupID:     testGroupID,
				SelfJoin:          true,
				Released:          true,
				PapersDistributed: true,
			},
		}},
		examinees: newFakeExamineeStore(),
		answers:   newFakeAnswerStore(),
		scores:    newFakeScoreStore(),
	}

	items := []model.PaperItem{
		{
			ItemID: itemSingle, TypeID: model.ItemTypeSingle, TypeName: "Single Choice", Score: 30, SortOrder: 1,
			Options: []model.ItemOption{
				{No: 1}, {No: 2, IsCorrect: true}, {No: 3}, {No: 4},
			},
		},
		{
			ItemID: itemMulti, TypeID: model.ItemTypeMulti, TypeName: "Multiple Choice", Score: 40, SortOrder: 2,
			Options: []model.ItemOption{
				{No: 1, IsCorrect: true}, {No: 2}, {No: 3, IsCorrect: true}, {No: 4},
			},
		},
		{
			ItemID: itemJudgment, TypeID: model.ItemTypeJudgment, TypeName: "True or False", Score: 30, SortOrder: 3,
			Options: []model.ItemOption{
				{No: 1, Title: "True"}, {No: 2, Title: "False", IsCorrect: true},
			},
		},
	}
	e.papers = &fakePaperStore{
		groups: map[int64]*model.PaperGroup{testGroupID: {ID: testGroupID, GroupTitle: "Demo Group", PapersCount: 3}},
		nos:    map[int64][]int32{testGroupID: {1, 2, 3}},
		variants: map[int64]map[int32]*model.Paper{testGroupID: {
			1: {ID: 101, GroupID: testGroupID, Title: "Variant 1", PapersNo: 1, TotalScore: 100},
			2: {ID: 102, GroupID: testGroupID, Title: "Variant 2", PapersNo: 2, TotalScore: 100},
			3: {ID: 103, GroupID: testGroupID, Title: "Variant 3", PapersNo: 3, TotalScore: 100},
		}},
		structs: map[int64][]model.PaperStruct{
			101: {{PapersID: 101, TypeName: "Single Choice", Score: 30}},
		},
		items: map[int64][]model.PaperItem{101: items, 102: items, 103: items},
	}

	cfg := &config.Config{PassScore: 60.0, LateGraceMinutes: 30}
	log := zerolog.Nop()

	// Points at a closed port: every cache and lock attempt fails fast and
	// the service falls through to its database paths.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})

	e.score = NewScoreService(e.batches, e.examinees, e.answers, e.papers, e.scores, nil, nil, cfg, log)
	e.exam = NewExamService(
		e.batches, e.examinees, e.answers, e.papers, e.score, rdb, cfg, log,
		func() time.Time { return e.now },
		func(n int) int { return e.pick % n },
	)
	return e
}

func (e *env) at(hour, min, sec int) {
	e.now = time.Date(2026, 3, 10, hour, min, sec, 0, time.UTC)
}

func (e *env) join(t *testing.T) {
	t.Helper()
	e.at(8, 0, 0)
	if _, err := e.exam.Join(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("join: %v", err)
	}
}

// ─── Tests ─────────────────────────────────────────────────────────────────

func TestJoinBeforeStart(t *testing.T) {
	e := newEnv(t)
	e.at(8, 59, 59)

	examinee, err := e.exam.Join(context.Background(), testUserID, testBatchID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if examinee.ReviewStatus != model.ReviewApproved {
		t.Errorf("review status = %d, want approved", examinee.ReviewStatus)
	}

	stored, _ := e.examinees.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if stored.PapersNo == nil {
		t.Error("variant not assigned at join")
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	e := newEnv(t)

	for _, tc := range []struct{ hour, min, sec int }{
		{9, 0, 0},
		{9, 30, 0},
	} {
		e.at(tc.hour, tc.min, tc.sec)
		if _, err := e.exam.Join(context.Background(), testUserID, testBatchID); !errors.Is(err, ErrBatchStarted) {
			t.Errorf("join at %02d:%02d:%02d: err = %v, want ErrBatchStarted", tc.hour, tc.min, tc.sec, err)
		}
	}
}

func TestJoinDuplicateRejected(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	if _, err := e.exam.Join(context.Background(), testUserID, testBatchID); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("err = %v, want ErrAlreadyJoined", err)
	}
}

func TestJoinReviewRequiredLandsPending(t *testing.T) {
	e := newEnv(t)
	e.batches.batches[testBatchID].ReviewRequired = true
	e.at(8, 0, 0)

	examinee, err := e.exam.Join(context.Background(), testUserID, testBatchID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if examinee.ReviewStatus != model.ReviewPending {
		t.Errorf("review status = %d, want pending", examinee.ReviewStatus)
	}

	// A pending enrollment cannot open the paper.
	e.at(9, 0, 0)
	if _, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID); !errors.Is(err, ErrReviewPending) {
		t.Errorf("get paper: err = %v, want ErrReviewPending", err)
	}
}

func TestGetPaperWindow(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	tests := []struct {
		name           string
		hour, min, sec int
		wantErr        error
	}{
		{"one second before window opens", 8, 44, 59, ErrOutsideWindow},
		{"window opens", 8, 45, 0, nil},
		{"during exam", 9, 30, 0, nil},
		{"at end time", 10, 30, 0, nil},
		{"one second after end", 10, 30, 1, ErrOutsideWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.at(tt.hour, tt.min, tt.sec)
			_, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetPaperRequiresEnrollment(t *testing.T) {
	e := newEnv(t)
	e.at(9, 0, 0)

	if _, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestGetPaperGroupsItemsByType(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)

	paper, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID)
	if err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if len(paper.Groups) != 3 {
		t.Fatalf("groups = %d, want 3 type groups", len(paper.Groups))
	}
	if paper.Groups[0].TypeName != "Single Choice" {
		t.Errorf("first group = %q, want on-paper order", paper.Groups[0].TypeName)
	}
}

func TestVariantStability(t *testing.T) {
	e := newEnv(t)
	e.pick = 2 // selects variant number 3
	e.join(t)
	e.at(9, 0, 0)

	first, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID)
	if err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if first.PapersNo != 3 {
		t.Fatalf("papers_no = %d, want 3", first.PapersNo)
	}

	// A different random pick must not change an assigned variant.
	e.pick = 0
	for i := 0; i < 5; i++ {
		again, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID)
		if err != nil {
			t.Fatalf("get paper: %v", err)
		}
		if again.PapersNo != first.PapersNo {
			t.Fatalf("fetch %d returned variant %d, want %d", i, again.PapersNo, first.PapersNo)
		}
	}
}

func TestVariantAssignmentRaceLoserKeepsWinner(t *testing.T) {
	e := newEnv(t)
	e.at(8, 0, 0)
	examinee := &model.Examinee{BatchID: testBatchID, UserID: testUserID, ReviewStatus: model.ReviewApproved}
	if err := e.examinees.Create(context.Background(), examinee); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A concurrent request wins the assignment just before our CAS lands.
	e.examinees.beforeAssign = func(f *fakeExamineeStore) {
		f.setPaperNo(testBatchID, testUserID, 2)
	}

	e.pick = 0 // our request would pick variant 1
	e.at(9, 0, 0)
	paper, err := e.exam.GetPaper(context.Background(), testUserID, testBatchID)
	if err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if paper.PapersNo != 2 {
		t.Errorf("papers_no = %d, want the concurrent winner's 2", paper.PapersNo)
	}

	stored, _ := e.examinees.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if stored.PapersNo == nil || *stored.PapersNo != 2 {
		t.Errorf("stored papers_no = %v, want 2", stored.PapersNo)
	}
}

func TestStartIdempotent(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, _ := e.examinees.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if first.ExamStartTime == nil {
		t.Fatal("start time not recorded")
	}

	e.at(9, 20, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("second start: %v", err)
	}
	second, _ := e.examinees.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if !second.ExamStartTime.Equal(*first.ExamStartTime) {
		t.Errorf("start time moved from %v to %v", first.ExamStartTime, second.ExamStartTime)
	}
}

func TestStartOutsideWindow(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	e.at(8, 44, 59)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); !errors.Is(err, ErrOutsideWindow) {
		t.Errorf("err = %v, want ErrOutsideWindow", err)
	}
}

func TestSaveAnswerNoActiveSession(t *testing.T) {
	e := newEnv(t)
	e.at(9, 0, 0)

	// Never joined anything.
	err := e.exam.SaveAnswer(context.Background(), testUserID, itemSingle, []int32{1})
	if !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestSaveAnswerBeforeStart(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)

	// Joined but never started.
	err := e.exam.SaveAnswer(context.Background(), testUserID, itemSingle, []int32{1})
	if !errors.Is(err, ErrExamNotStarted) {
		t.Errorf("err = %v, want ErrExamNotStarted", err)
	}
}

func TestSaveAnswerReplaces(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemSingle, []int32{1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemSingle, []int32{2}); err != nil {
		t.Fatalf("resave: %v", err)
	}

	answers, _ := e.answers.ListByBatchAndUser(context.Background(), testBatchID, testUserID)
	if len(answers) != 1 {
		t.Fatalf("rows = %d, want 1 (replace, not append)", len(answers))
	}
	if len(answers[0].Chosen) != 1 || answers[0].Chosen[0] != 2 {
		t.Errorf("chosen = %v, want [2]", answers[0].Chosen)
	}
}

func TestSaveAnswerAfterEnd(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	e.at(10, 30, 1)
	err := e.exam.SaveAnswer(context.Background(), testUserID, itemSingle, []int32{1})
	if !errors.Is(err, ErrExamClosed) {
		t.Errorf("err = %v, want ErrExamClosed", err)
	}
}

func TestSubmitGradesAndScores(t *testing.T) {
	e := newEnv(t)
	e.pick = 0 // variant 1
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Wrong single (30 pts lost), correct multi (40), correct judgment
	// answered with the false code (30). Expected total 70, pass.
	mustSave := func(itemID int64, chosen []int32) {
		t.Helper()
		if err := e.exam.SaveAnswer(context.Background(), testUserID, itemID, chosen); err != nil {
			t.Fatalf("save %d: %v", itemID, err)
		}
	}
	mustSave(itemSingle, []int32{1})
	mustSave(itemMulti, []int32{1, 3})
	mustSave(itemJudgment, []int32{0})

	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	score, err := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if err != nil {
		t.Fatalf("score missing: %v", err)
	}
	if score.TotalScore != 70 {
		t.Errorf("total = %v, want 70", score.TotalScore)
	}
	if !score.IsPass {
		t.Error("is_pass = false, want true")
	}
	if score.ExamDuration == nil || *score.ExamDuration != 60 {
		t.Errorf("duration = %v, want 60", score.ExamDuration)
	}

	examinee, _ := e.examinees.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if !examinee.Submitted || examinee.SubmitTime == nil {
		t.Error("examinee not marked submitted")
	}
}

func TestSubmitBelowThresholdFails(t *testing.T) {
	e := newEnv(t)
	e.pick = 0
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Only the judgment item correct: 30 < 60.
	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemJudgment, []int32{0}); err != nil {
		t.Fatalf("save: %v", err)
	}

	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	score, _ := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if score.TotalScore != 30 {
		t.Errorf("total = %v, want 30", score.TotalScore)
	}
	if score.IsPass {
		t.Error("is_pass = true, want false")
	}
}

func TestSubmitExactThresholdPasses(t *testing.T) {
	e := newEnv(t)
	e.pick = 0
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Correct single (30) + correct judgment (30) = exactly 60.
	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemSingle, []int32{2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemJudgment, []int32{0}); err != nil {
		t.Fatalf("save: %v", err)
	}

	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	score, _ := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if !score.IsPass {
		t.Errorf("total %v at threshold should pass", score.TotalScore)
	}
}

func TestSubmitPayloadPersistedBeforeEnd(t *testing.T) {
	e := newEnv(t)
	e.pick = 0
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	e.at(10, 0, 0)
	payload := []model.AnswerRequest{
		{ID: itemMulti, Ans: []int32{1, 3}},
		{ID: itemJudgment, Ans: []int32{0}},
	}
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, payload); err != nil {
		t.Fatalf("submit: %v", err)
	}

	score, _ := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if score.TotalScore != 70 {
		t.Errorf("total = %v, want 70 from payload answers", score.TotalScore)
	}
}

func TestSubmitLatePayloadIgnored(t *testing.T) {
	e := newEnv(t)
	e.pick = 0
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemJudgment, []int32{0}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Within the grace window: submission accepted, payload discarded.
	e.at(10, 45, 0)
	payload := []model.AnswerRequest{{ID: itemMulti, Ans: []int32{1, 3}}}
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, payload); err != nil {
		t.Fatalf("late submit: %v", err)
	}

	answers, _ := e.answers.ListByBatchAndUser(context.Background(), testBatchID, testUserID)
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want only the in-time answer", len(answers))
	}
	score, _ := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if score.TotalScore != 30 {
		t.Errorf("total = %v, want 30 (late payload must not count)", score.TotalScore)
	}
}

func TestSubmitBeyondGraceRejected(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	e.at(11, 0, 1)
	err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil)
	if !errors.Is(err, ErrSubmitWindowClosed) {
		t.Errorf("err = %v, want ErrSubmitWindowClosed", err)
	}

	examinee, _ := e.examinees.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if examinee.Submitted {
		t.Error("rejected submission must not mark the exam submitted")
	}
}

func TestSubmitTwiceRejected(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitRaceLoserRejected(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A concurrent submit lands between our checks and the CAS.
	e.examinees.beforeSubmit = func(f *fakeExamineeStore) {
		f.mu.Lock()
		defer f.mu.Unlock()
		row := f.rows[examineeKey{testBatchID, testUserID}]
		row.Submitted = true
		t := row.ExamStartTime.Add(30 * time.Minute)
		row.SubmitTime = &t
	}

	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitNotStartedRejected(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); !errors.Is(err, ErrExamNotStarted) {
		t.Errorf("err = %v, want ErrExamNotStarted", err)
	}
}

func TestListJoinableFlagsJoined(t *testing.T) {
	e := newEnv(t)
	e.batches.batches[testBatchID].PapersDistributed = false
	e.at(8, 0, 0)

	before, err := e.exam.ListJoinableBatches(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(before) != 1 || before[0].Joined {
		t.Fatalf("want one unjoined batch, got %+v", before)
	}

	if _, err := e.exam.Join(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("join: %v", err)
	}
	after, err := e.exam.ListJoinableBatches(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(after) != 1 || !after[0].Joined {
		t.Fatalf("want one joined batch, got %+v", after)
	}
}

func TestListMyBatchesFiltersEnded(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	e.at(10, 0, 0)
	active, err := e.exam.ListMyBatches(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("want 1 active batch, got %d", len(active))
	}

	e.at(10, 30, 1)
	ended, err := e.exam.ListMyBatches(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ended) != 0 {
		t.Fatalf("want 0 batches after end, got %d", len(ended))
	}
}

func TestEvaluateVariantFallback(t *testing.T) {
	e := newEnv(t)
	e.at(8, 0, 0)
	examinee := &model.Examinee{BatchID: testBatchID, UserID: testUserID, ReviewStatus: model.ReviewApproved}
	if err := e.examinees.Create(context.Background(), examinee); err != nil {
		t.Fatalf("create: %v", err)
	}
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := e.examinees.MarkStarted(context.Background(), testBatchID, testUserID, start); err != nil {
		t.Fatalf("mark started: %v", err)
	}
	if _, err := e.examinees.MarkSubmitted(context.Background(), testBatchID, testUserID, start.Add(time.Hour)); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	ans := &model.ExamAnswer{BatchID: testBatchID, UserID: testUserID, ItemID: itemMulti, Chosen: []int32{1, 3}}
	if err := e.answers.Upsert(context.Background(), ans); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// No variant was ever assigned; grading falls back to the first one.
	if err := e.score.EvaluateAndSave(context.Background(), testBatchID, testUserID); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	score, err := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if err != nil {
		t.Fatalf("score missing: %v", err)
	}
	if score.TotalScore != 40 {
		t.Errorf("total = %v, want 40", score.TotalScore)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	e := newEnv(t)
	e.join(t)
	e.at(9, 0, 0)
	if err := e.exam.Start(context.Background(), testUserID, testBatchID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.exam.SaveAnswer(context.Background(), testUserID, itemMulti, []int32{1, 3}); err != nil {
		t.Fatalf("save: %v", err)
	}
	e.at(10, 0, 0)
	if err := e.exam.Submit(context.Background(), testUserID, testBatchID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, _ := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	for i := 0; i < 3; i++ {
		if err := e.score.EvaluateAndSave(context.Background(), testBatchID, testUserID); err != nil {
			t.Fatalf("re-evaluate %d: %v", i, err)
		}
	}
	again, _ := e.scores.GetByBatchAndUser(context.Background(), testBatchID, testUserID)
	if again.TotalScore != first.TotalScore || again.IsPass != first.IsPass {
		t.Errorf("re-grading diverged: %+v vs %+v", again, first)
	}
}

func TestEvaluateEmptyGroupFails(t *testing.T) {
	e := newEnv(t)
	e.papers.nos[testGroupID] = nil
	e.at(8, 0, 0)
	examinee := &model.Examinee{BatchID: testBatchID, UserID: testUserID, ReviewStatus: model.ReviewApproved}
	if err := e.examinees.Create(context.Background(), examinee); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.examinees.MarkSubmitted(context.Background(), testBatchID, testUserID, e.now); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	err := e.score.EvaluateAndSave(context.Background(), testBatchID, testUserID)
	if !errors.Is(err, ErrNoVariants) {
		t.Errorf("err = %v, want ErrNoVariants", err)
	}
}
