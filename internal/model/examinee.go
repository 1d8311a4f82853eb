package model

import (
	"time"
)

// Review status values for an examinee's enrollment.
const (
	ReviewPending  = 0
	ReviewApproved = 1
	ReviewRejected = -1
)

// Examinee is one candidate's enrollment in one batch. PapersNo is assigned
// at most once and never changes afterwards, so repeated paper fetches always
// return the same variant. Submitted is terminal.
type Examinee struct {
	ID            int64      `json:"id"`
	BatchID       int64      `json:"batch_id"`
	UserID        int64      `json:"user_id"`
	PapersNo      *int32     `json:"papers_no,omitempty"`
	ReviewStatus  int        `json:"review_status"`
	ExamStarted   bool       `json:"exam_started"`
	ExamStartTime *time.Time `json:"exam_start_time,omitempty"`
	Submitted     bool       `json:"submitted"`
	SubmitTime    *time.Time `json:"submit_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ReviewRequest is the admin payload for bulk-reviewing enrollments.
type ReviewRequest struct {
	BatchID int64   `json:"batch_id" binding:"required"`
	Approve *bool   `json:"approve" binding:"required"`
	UserIDs []int64 `json:"user_ids" binding:"required,min=1"`
}

// BindExamineesRequest is the admin payload for attaching users to a batch.
type BindExamineesRequest struct {
	UserIDs []int64 `json:"user_ids" binding:"required,min=1"`
}
