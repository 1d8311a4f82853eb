package model

import (
	"time"
)

// ExamAnswer is the live answer record for one (batch, user, item). Saving
// the same item again replaces the row. IsCorrect and Score stay nil until
// the scoring engine runs at submit time.
type ExamAnswer struct {
	ID        int64     `json:"id"`
	BatchID   int64     `json:"batch_id"`
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Chosen    []int32   `json:"chosen"`
	IsCorrect *bool     `json:"is_correct,omitempty"`
	Score     *float64  `json:"score,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnswerRequest is the candidate payload for saving one item's answer.
// Ans holds chosen option numbers; for judgment items the client sends
// 1 (true) or 0 (false).
type AnswerRequest struct {
	ID  int64   `json:"id" binding:"required"`
	Ans []int32 `json:"ans" binding:"required"`
}

// SubmitRequest is the candidate payload for handing in a paper. Answers is
// optional: when present before the end time it is persisted first, so a
// single submit is equivalent to save-all-then-submit.
type SubmitRequest struct {
	Answers []AnswerRequest `json:"answers" binding:"omitempty,dive"`
}
