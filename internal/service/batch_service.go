package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/lexamine/lexam-backend/internal/model"
	"github.com/lexamine/lexam-backend/internal/repository"
	"github.com/lexamine/lexam-backend/internal/response"
)

// Batch administration errors.
var (
	ErrPaperGroupNotFound = errors.New("paper group not found")
	ErrBatchNotReleased   = errors.New("batch must be released before distributing papers")
)

// BatchService handles exam batch administration.
type BatchService struct {
	batchRepo *repository.BatchRepository
	paperRepo *repository.PaperRepository
	log       zerolog.Logger
	now       func() time.Time
}

// NewBatchService creates a new BatchService.
func NewBatchService(
	batchRepo *repository.BatchRepository,
	paperRepo *repository.PaperRepository,
	log zerolog.Logger,
	now func() time.Time,
) *BatchService {
	return &BatchService{
		batchRepo: batchRepo,
		paperRepo: paperRepo,
		log:       log.With().Str("component", "batch_service").Logger(),
		now:       now,
	}
}

// Get retrieves one batch.
func (s *BatchService) Get(ctx context.Context, id int64) (*model.ExamBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}

// Create registers a new batch. New batches start unreleased and
// undistributed.
func (s *BatchService) Create(ctx context.Context, req *model.CreateBatchRequest) (*model.ExamBatch, error) {
	if err := s.checkPaperGroup(ctx, req.PapersGroupID); err != nil {
		return nil, err
	}

	batch := &model.ExamBatch{
		BatchName:      req.BatchName,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		PrepareMinutes: req.PrepareMinutes,
		AdvanceMinutes: req.AdvanceMinutes,
		LateMinutes:    req.LateMinutes,
		OptionsRandom:  req.OptionsRandom,
		ItemRandom:     req.ItemRandom,
		PapersGroupID:  req.PapersGroupID,
		SelfJoin:       req.SelfJoin,
		ReviewRequired: req.ReviewRequired,
	}
	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.log.Info().Int64("batch_id", batch.ID).Str("name", batch.BatchName).Msg("batch created")
	return batch, nil
}

// Update rewrites a batch's schedule and settings.
func (s *BatchService) Update(ctx context.Context, id int64, req *model.UpdateBatchRequest) (*model.ExamBatch, error) {
	batch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkPaperGroup(ctx, req.PapersGroupID); err != nil {
		return nil, err
	}

	batch.BatchName = req.BatchName
	batch.StartTime = req.StartTime
	batch.EndTime = req.EndTime
	batch.PrepareMinutes = req.PrepareMinutes
	batch.AdvanceMinutes = req.AdvanceMinutes
	batch.LateMinutes = req.LateMinutes
	batch.OptionsRandom = req.OptionsRandom
	batch.ItemRandom = req.ItemRandom
	batch.PapersGroupID = req.PapersGroupID
	batch.SelfJoin = req.SelfJoin
	batch.ReviewRequired = req.ReviewRequired

	if err := s.batchRepo.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("update batch: %w", err)
	}
	return batch, nil
}

// Delete removes batches in bulk and reports how many existed.
func (s *BatchService) Delete(ctx context.Context, ids []int64) (int64, error) {
	deleted, err := s.batchRepo.Delete(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete batches: %w", err)
	}
	s.log.Info().Ints64("batch_ids", ids).Int64("deleted", deleted).Msg("batches deleted")
	return deleted, nil
}

// ToggleRelease flips a batch's released flag. Unreleasing always revokes
// paper distribution, so a hidden batch is never active.
func (s *BatchService) ToggleRelease(ctx context.Context, id int64) (*model.ExamBatch, error) {
	batch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	batch.Released = !batch.Released
	if !batch.Released {
		batch.PapersDistributed = false
	}
	if err := s.batchRepo.SetFlags(ctx, id, batch.Released, batch.PapersDistributed); err != nil {
		return nil, fmt.Errorf("set flags: %w", err)
	}

	s.log.Info().Int64("batch_id", id).Bool("released", batch.Released).Msg("batch release toggled")
	return batch, nil
}

// ToggleDistribute flips a batch's papers_distributed flag. Distribution
// requires a released batch.
func (s *BatchService) ToggleDistribute(ctx context.Context, id int64) (*model.ExamBatch, error) {
	batch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !batch.Released {
		return nil, ErrBatchNotReleased
	}

	batch.PapersDistributed = !batch.PapersDistributed
	if err := s.batchRepo.SetFlags(ctx, id, batch.Released, batch.PapersDistributed); err != nil {
		return nil, fmt.Errorf("set flags: %w", err)
	}

	s.log.Info().Int64("batch_id", id).Bool("distributed", batch.PapersDistributed).Msg("batch distribution toggled")
	return batch, nil
}

// Pages returns a paged batch listing with an optional name filter.
func (s *BatchService) Pages(ctx context.Context, key string, page, perPage int) ([]model.ExamBatch, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	batches, total, err := s.batchRepo.ListPaged(ctx, key, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if batches == nil {
		batches = []model.ExamBatch{}
	}
	return batches, buildPagination(page, perPage, total), nil
}

// ListEnabledNotStarted returns enabled batches whose start time is still
// ahead.
func (s *BatchService) ListEnabledNotStarted(ctx context.Context) ([]model.ExamBatch, error) {
	batches, err := s.batchRepo.ListEnabledNotStarted(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []model.ExamBatch{}
	}
	return batches, nil
}

func (s *BatchService) checkPaperGroup(ctx context.Context, groupID int64) error {
	if _, err := s.paperRepo.GetGroup(ctx, groupID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaperGroupNotFound
		}
		return fmt.Errorf("load paper group: %w", err)
	}
	return nil
}
