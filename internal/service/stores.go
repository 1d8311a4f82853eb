package service

import (
	"context"
	"time"

	"github.com/lexamine/lexam-backend/internal/model"
)

// Narrow store contracts consumed by the session and scoring engines. The
// repository package satisfies all of them; tests substitute in-memory
// implementations.

// BatchStore reads exam batches.
type BatchStore interface {
	GetByID(ctx context.Context, id int64) (*model.ExamBatch, error)
	ListJoinable(ctx context.Context, now time.Time) ([]model.ExamBatch, error)
}

// ExamineeStore manages enrollment rows and their lifecycle flags.
type ExamineeStore interface {
	GetByBatchAndUser(ctx context.Context, batchID, userID int64) (*model.Examinee, error)
	Create(ctx context.Context, e *model.Examinee) error
	ListByUser(ctx context.Context, userID int64) ([]model.Examinee, error)
	ListUnsubmitted(ctx context.Context, userID int64) ([]model.Examinee, error)
	AssignPaperNo(ctx context.Context, batchID, userID int64, papersNo int32) (bool, error)
	MarkStarted(ctx context.Context, batchID, userID int64, now time.Time) error
	MarkSubmitted(ctx context.Context, batchID, userID int64, now time.Time) (bool, error)
}

// AnswerStore manages the answer ledger.
type AnswerStore interface {
	Upsert(ctx context.Context, a *model.ExamAnswer) error
	ListByBatchAndUser(ctx context.Context, batchID, userID int64) ([]model.ExamAnswer, error)
	UpdateGrading(ctx context.Context, id int64, isCorrect bool, score float64) error
}

// PaperStore reads immutable paper variants.
type PaperStore interface {
	GetGroup(ctx context.Context, groupID int64) (*model.PaperGroup, error)
	ListVariantNumbers(ctx context.Context, groupID int64) ([]int32, error)
	GetVariant(ctx context.Context, groupID int64, papersNo int32) (*model.Paper, error)
	ListStructs(ctx context.Context, papersID int64) ([]model.PaperStruct, error)
	ListItems(ctx context.Context, papersID int64) ([]model.PaperItem, error)
}

// ScoreStore persists graded results.
type ScoreStore interface {
	Upsert(ctx context.Context, s *model.ExamScore) error
	GetByBatchAndUser(ctx context.Context, batchID, userID int64) (*model.ExamScore, error)
}
