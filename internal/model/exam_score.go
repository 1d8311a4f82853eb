package model

import (
	"time"
)

// ExamScore is the graded result for one (batch, user), written exactly once
// per submission and overwritten if grading is re-run.
type ExamScore struct {
	ID           int64     `json:"id"`
	BatchID      int64     `json:"batch_id"`
	UserID       int64     `json:"user_id"`
	TotalScore   float64   `json:"total_score"`
	PassScore    float64   `json:"pass_score"`
	IsPass       bool      `json:"is_pass"`
	ExamDuration *int      `json:"exam_duration,omitempty"` // minutes, nil if start time unknown
	SubmitTime   time.Time `json:"submit_time"`
	CreatedAt    time.Time `json:"created_at"`
}
