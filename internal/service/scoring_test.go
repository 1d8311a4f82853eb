package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/lexamine/lexam-backend/internal/model"
)

func judgmentItem(correctNo int32) *model.PaperItem {
	return &model.PaperItem{
		ItemID:   1,
		TypeID:   model.ItemTypeJudgment,
		TypeName: "True or False",
		Score:    10,
		Options: []model.ItemOption{
			{No: 1, Title: "True", IsCorrect: correctNo == 1},
			{No: 2, Title: "False", IsCorrect: correctNo == 2},
		},
	}
}

func multiItem(correct ...int32) *model.PaperItem {
	isCorrect := make(map[int32]bool, len(correct))
	for _, no := range correct {
		isCorrect[no] = true
	}
	item := &model.PaperItem{
		ItemID:   2,
		TypeID:   model.ItemTypeMulti,
		TypeName: "Multiple Choice",
		Score:    20,
	}
	for no := int32(1); no <= 4; no++ {
		item.Options = append(item.Options, model.ItemOption{No: no, IsCorrect: isCorrect[no]})
	}
	return item
}

func TestNormalizeChosen(t *testing.T) {
	tests := []struct {
		name   string
		typeID int
		chosen []int32
		want   []int32
	}{
		{"judgment true maps to option 1", model.ItemTypeJudgment, []int32{1}, []int32{1}},
		{"judgment false maps to option 2", model.ItemTypeJudgment, []int32{0}, []int32{2}},
		{"judgment other values pass through", model.ItemTypeJudgment, []int32{3}, []int32{3}},
		{"single choice untouched", model.ItemTypeSingle, []int32{0}, []int32{0}},
		{"multi choice untouched", model.ItemTypeMulti, []int32{1, 0}, []int32{1, 0}},
		{"empty stays empty", model.ItemTypeJudgment, []int32{}, []int32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeChosen(tt.typeID, tt.chosen)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeChosen(%d, %v) = %v, want %v", tt.typeID, tt.chosen, got, tt.want)
			}
		})
	}
}

func TestGradeItemJudgment(t *testing.T) {
	tests := []struct {
		name        string
		correctNo   int32
		chosen      []int32
		wantCorrect bool
	}{
		{"true answer on true item", 1, []int32{1}, true},
		{"false answer on true item", 1, []int32{0}, false},
		{"false answer on false item", 2, []int32{0}, true},
		{"true answer on false item", 2, []int32{1}, false},
		{"no answer", 1, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := judgmentItem(tt.correctNo)
			correct, score := gradeItem(item, tt.chosen)
			if correct != tt.wantCorrect {
				t.Errorf("correct = %v, want %v", correct, tt.wantCorrect)
			}
			wantScore := 0.0
			if tt.wantCorrect {
				wantScore = item.Score
			}
			if score != wantScore {
				t.Errorf("score = %v, want %v", score, wantScore)
			}
		})
	}
}

func TestGradeItemExactSet(t *testing.T) {
	item := multiItem(1, 3)

	tests := []struct {
		name        string
		chosen      []int32
		wantCorrect bool
	}{
		{"exact match", []int32{1, 3}, true},
		{"exact match reordered", []int32{3, 1}, true},
		{"subset earns nothing", []int32{1}, false},
		{"superset earns nothing", []int32{1, 2, 3}, false},
		{"disjoint earns nothing", []int32{2, 4}, false},
		{"empty earns nothing", nil, false},
		{"duplicates collapse to exact match", []int32{1, 3, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, score := gradeItem(item, tt.chosen)
			if correct != tt.wantCorrect {
				t.Errorf("gradeItem(%v) correct = %v, want %v", tt.chosen, correct, tt.wantCorrect)
			}
			if tt.wantCorrect && score != item.Score {
				t.Errorf("score = %v, want %v", score, item.Score)
			}
			if !tt.wantCorrect && score != 0 {
				t.Errorf("score = %v, want 0", score)
			}
		})
	}
}

func TestGradeItemNoKey(t *testing.T) {
	item := multiItem() // no correct options

	tests := []struct {
		name   string
		chosen []int32
	}{
		{"empty answer never scores", []int32{}},
		{"nil answer never scores", nil},
		{"any answer never scores", []int32{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, score := gradeItem(item, tt.chosen)
			if correct || score != 0 {
				t.Errorf("gradeItem(%v) = (%v, %v), want (false, 0)", tt.chosen, correct, score)
			}
		})
	}

	t.Run("empty answer on keyed item never scores", func(t *testing.T) {
		correct, score := gradeItem(multiItem(1, 3), []int32{})
		if correct || score != 0 {
			t.Errorf("got (%v, %v), want (false, 0)", correct, score)
		}
	})
}

func TestGradeItemDeterministic(t *testing.T) {
	item := multiItem(1, 3)
	chosen := []int32{3, 1}

	firstCorrect, firstScore := gradeItem(item, chosen)
	for i := 0; i < 100; i++ {
		correct, score := gradeItem(item, chosen)
		if correct != firstCorrect || score != firstScore {
			t.Fatalf("run %d diverged: (%v, %v) != (%v, %v)", i, correct, score, firstCorrect, firstScore)
		}
	}
}

func TestIsPassing(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		want  bool
	}{
		{"exact threshold passes", 60.0, true},
		{"just below fails", 59.99, false},
		{"above passes", 60.01, true},
		{"zero fails", 0, false},
		{"float accumulation at threshold passes", 19.9 + 20.05 + 20.05, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPassing(tt.total, 60.0); got != tt.want {
				t.Errorf("isPassing(%v, 60.0) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}

func TestDurationMinutes(t *testing.T) {
	submit := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	t.Run("nil start yields nil", func(t *testing.T) {
		if got := durationMinutes(nil, submit); got != nil {
			t.Errorf("got %v, want nil", *got)
		}
	})

	t.Run("whole minutes", func(t *testing.T) {
		start := submit.Add(-95 * time.Minute)
		got := durationMinutes(&start, submit)
		if got == nil || *got != 95 {
			t.Errorf("got %v, want 95", got)
		}
	})

	t.Run("partial minute rounds down", func(t *testing.T) {
		start := submit.Add(-90*time.Second - 500*time.Millisecond)
		got := durationMinutes(&start, submit)
		if got == nil || *got != 1 {
			t.Errorf("got %v, want 1", got)
		}
	})

	t.Run("start after submit clamps to zero", func(t *testing.T) {
		start := submit.Add(5 * time.Minute)
		got := durationMinutes(&start, submit)
		if got == nil || *got != 0 {
			t.Errorf("got %v, want 0", got)
		}
	})
}
