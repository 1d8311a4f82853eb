package model

import (
	"time"
)

// Item type classifiers. Judgment items carry the true/false answer-code
// convention: a chosen value of 1 means option slot 1, 0 means option slot 2.
const (
	ItemTypeSingle   = 1
	ItemTypeMulti    = 2
	ItemTypeJudgment = 3
)

// PaperGroup is a set of interchangeable paper variants generated from one
// template. Batches reference a group; each examinee is pinned to one
// variant number within it.
type PaperGroup struct {
	ID          int64     `json:"id"`
	GroupTitle  string    `json:"group_title"`
	PapersCount int       `json:"papers_count"`
	TotalScore  float64   `json:"total_score"`
	TemplateID  int64     `json:"template_id"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Paper is a single immutable variant within a group.
type Paper struct {
	ID         int64     `json:"id"`
	GroupID    int64     `json:"group_id"`
	Title      string    `json:"title"`
	PapersNo   int32     `json:"papers_no"`
	TotalScore float64   `json:"total_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// PaperStruct is one section of a paper's structure breakdown (type name,
// remarks, aggregate score).
type PaperStruct struct {
	PapersID    int64   `json:"papers_id"`
	TypeName    string  `json:"type_name"`
	TypeRemarks string  `json:"type_remarks"`
	Score       float64 `json:"score"`
}

// ItemOption is one selectable option of an item. IsCorrect is part of the
// answer key and must never reach candidates before submission.
type ItemOption struct {
	No        int32  `json:"no"`
	Title     string `json:"title"`
	IsCorrect bool   `json:"-"`
}

// PaperItem is one question placed on a paper variant, with its options
// loaded. SortOrder fixes the on-paper position.
type PaperItem struct {
	ItemID    int64        `json:"id"`
	TypeID    int          `json:"type_id"`
	TypeName  string       `json:"type_name"`
	Content   string       `json:"content"`
	Score     float64      `json:"score"`
	SortOrder int          `json:"sort_order"`
	Options   []ItemOption `json:"options"`
}

// CorrectSet returns the item's correct option numbers.
func (it *PaperItem) CorrectSet() map[int32]struct{} {
	set := make(map[int32]struct{})
	for _, op := range it.Options {
		if op.IsCorrect {
			set[op.No] = struct{}{}
		}
	}
	return set
}
