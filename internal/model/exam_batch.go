package model

import (
	"time"
)

// ExamBatch represents one scheduled exam event. Candidates enroll into a
// batch and are handed a random paper variant from its paper group.
type ExamBatch struct {
	ID                int64     `json:"id"`
	BatchName         string    `json:"batch_name"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	PrepareMinutes    int       `json:"prepare_minutes"`
	AdvanceMinutes    int       `json:"advance_minutes"`
	LateMinutes       int       `json:"late_minutes"`
	OptionsRandom     bool      `json:"options_random"`
	ItemRandom        bool      `json:"item_random"`
	PapersGroupID     int64     `json:"papers_group_id"`
	SelfJoin          bool      `json:"self_join"`
	ReviewRequired    bool      `json:"review_required"`
	Released          bool      `json:"released"`
	PapersDistributed bool      `json:"papers_distributed"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Enabled reports whether the batch is visible to candidates as active.
func (b *ExamBatch) Enabled() bool {
	return b.Released && b.PapersDistributed
}

// PreStart returns the earliest instant a candidate may open or start the
// paper.
func (b *ExamBatch) PreStart() time.Time {
	return b.StartTime.Add(-time.Duration(b.PrepareMinutes) * time.Minute)
}

// CreateBatchRequest is the payload for creating a new exam batch.
type CreateBatchRequest struct {
	BatchName      string    `json:"batch_name" binding:"required,min=2,max=255"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	PrepareMinutes int       `json:"prepare_minutes" binding:"min=0,max=1440"`
	AdvanceMinutes int       `json:"advance_minutes" binding:"min=0,max=1440"`
	LateMinutes    int       `json:"late_minutes" binding:"min=0,max=1440"`
	OptionsRandom  bool      `json:"options_random"`
	ItemRandom     bool      `json:"item_random"`
	PapersGroupID  int64     `json:"papers_group_id" binding:"required"`
	SelfJoin       bool      `json:"self_join"`
	ReviewRequired bool      `json:"review_required"`
}

// UpdateBatchRequest is the payload for updating an existing exam batch.
type UpdateBatchRequest struct {
	BatchName      string    `json:"batch_name" binding:"required,min=2,max=255"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	PrepareMinutes int       `json:"prepare_minutes" binding:"min=0,max=1440"`
	AdvanceMinutes int       `json:"advance_minutes" binding:"min=0,max=1440"`
	LateMinutes    int       `json:"late_minutes" binding:"min=0,max=1440"`
	OptionsRandom  bool      `json:"options_random"`
	ItemRandom     bool      `json:"item_random"`
	PapersGroupID  int64     `json:"papers_group_id" binding:"required"`
	SelfJoin       bool      `json:"self_join"`
	ReviewRequired bool      `json:"review_required"`
}
