package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/lexamine/lexam-backend/internal/model"
	"github.com/lexamine/lexam-backend/internal/repository"
	"github.com/lexamine/lexam-backend/internal/response"
)

// Enrollment administration errors.
var (
	ErrEmptyWorkbook = errors.New("workbook has no data rows")
)

// ExamineeService handles enrollment administration: review, binding,
// listing, and roster import.
type ExamineeService struct {
	examineeRepo *repository.ExamineeRepository
	userRepo     *repository.UserRepository
	batchRepo    *repository.BatchRepository
	auth         *AuthService
	log          zerolog.Logger
}

// NewExamineeService creates a new ExamineeService.
func NewExamineeService(
	examineeRepo *repository.ExamineeRepository,
	userRepo *repository.UserRepository,
	batchRepo *repository.BatchRepository,
	auth *AuthService,
	log zerolog.Logger,
) *ExamineeService {
	return &ExamineeService{
		examineeRepo: examineeRepo,
		userRepo:     userRepo,
		batchRepo:    batchRepo,
		auth:         auth,
		log:          log.With().Str("component", "examinee_service").Logger(),
	}
}

// Review resolves pending enrollments in bulk. Approval is one-way: a
// reviewed enrollment never returns to pending.
func (s *ExamineeService) Review(ctx context.Context, batchID int64, approve bool, userIDs []int64) (int64, error) {
	status := model.ReviewApproved
	if !approve {
		status = model.ReviewRejected
	}
	updated, err := s.examineeRepo.UpdateReviewStatus(ctx, batchID, userIDs, status)
	if err != nil {
		return 0, fmt.Errorf("update review status: %w", err)
	}

	s.log.Info().
		Int64("batch_id", batchID).
		Bool("approve", approve).
		Int64("updated", updated).
		Msg("enrollments reviewed")
	return updated, nil
}

// Bind attaches users to a batch as approved examinees. Users already bound
// are counted as skipped, not errors.
func (s *ExamineeService) Bind(ctx context.Context, batchID int64, userIDs []int64) (bound, skipped int, err error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrBatchNotFound
		}
		return 0, 0, fmt.Errorf("load batch: %w", err)
	}

	for _, userID := range userIDs {
		examinee := &model.Examinee{
			BatchID:      batchID,
			UserID:       userID,
			ReviewStatus: model.ReviewApproved,
		}
		if err := s.examineeRepo.Create(ctx, examinee); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				skipped++
				continue
			}
			return bound, skipped, fmt.Errorf("bind user %d: %w", userID, err)
		}
		bound++
	}

	s.log.Info().
		Int64("batch_id", batchID).
		Int("bound", bound).
		Int("skipped", skipped).
		Msg("examinees bound")
	return bound, skipped, nil
}

// Remove detaches users from a batch.
func (s *ExamineeService) Remove(ctx context.Context, batchID int64, userIDs []int64) (int64, error) {
	removed, err := s.examineeRepo.DeleteByBatchAndUsers(ctx, batchID, userIDs)
	if err != nil {
		return 0, fmt.Errorf("remove examinees: %w", err)
	}
	return removed, nil
}

// Pages returns a paged examinee listing for one batch with candidate
// account fields.
func (s *ExamineeService) Pages(ctx context.Context, batchID int64, key string, status *int, page, perPage int) ([]repository.ExamineeRow, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	rows, total, err := s.examineeRepo.ListByBatch(ctx, batchID, key, status, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if rows == nil {
		rows = []repository.ExamineeRow{}
	}
	return rows, buildPagination(page, perPage, total), nil
}

// OptionalPages returns candidate accounts not yet bound to the batch.
func (s *ExamineeService) OptionalPages(ctx context.Context, batchID int64, key string, page, perPage int) ([]model.AccountUser, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	users, total, err := s.examineeRepo.ListOptionalUsers(ctx, batchID, key, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if users == nil {
		users = []model.AccountUser{}
	}
	return users, buildPagination(page, perPage, total), nil
}

// ImportResult summarizes one roster import run.
type ImportResult struct {
	UsersCreated int `json:"users_created"`
	Bound        int `json:"bound"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// ImportRoster reads an .xlsx roster and binds each row's candidate to the
// batch, creating missing accounts along the way. Expected columns: name,
// ID number, organization, phone. New accounts get the last six characters
// of the ID number as their initial password. Row failures are logged and
// counted, never fatal.
func (s *ExamineeService) ImportRoster(ctx context.Context, batchID int64, r io.Reader) (*ImportResult, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) <= 1 {
		return nil, ErrEmptyWorkbook
	}

	result := &ImportResult{}
	for i, row := range rows[1:] {
		name, idNo, org, phone := rosterColumns(row)
		if name == "" || idNo == "" {
			s.log.Warn().Int("row", i+2).Msg("roster row missing name or ID number, skipped")
			result.Failed++
			continue
		}

		user, err := s.findOrCreateUser(ctx, name, idNo, org, phone, result)
		if err != nil {
			s.log.Warn().Err(err).Int("row", i+2).Str("id_no", idNo).Msg("roster row failed")
			result.Failed++
			continue
		}

		examinee := &model.Examinee{
			BatchID:      batchID,
			UserID:       user.ID,
			ReviewStatus: model.ReviewApproved,
		}
		if err := s.examineeRepo.Create(ctx, examinee); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				result.Skipped++
				continue
			}
			s.log.Warn().Err(err).Int("row", i+2).Str("id_no", idNo).Msg("roster bind failed")
			result.Failed++
			continue
		}
		result.Bound++
	}

	s.log.Info().
		Int64("batch_id", batchID).
		Int("created", result.UsersCreated).
		Int("bound", result.Bound).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("roster imported")
	return result, nil
}

func (s *ExamineeService) findOrCreateUser(ctx context.Context, name, idNo, org, phone string, result *ImportResult) (*model.AccountUser, error) {
	user, err := s.userRepo.GetByIDNo(ctx, idNo)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.auth.HashPassword(defaultPassword(idNo))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user = &model.AccountUser{
		Name:         name,
		OrgName:      org,
		IDNo:         idNo,
		Phone:        phone,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	result.UsersCreated++
	return user, nil
}

// defaultPassword derives the initial password from an ID number: its last
// six characters, or the whole number when shorter.
func defaultPassword(idNo string) string {
	if len(idNo) <= 6 {
		return idNo
	}
	return idNo[len(idNo)-6:]
}

func rosterColumns(row []string) (name, idNo, org, phone string) {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return get(0), get(1), get(2), get(3)
}
