package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/metrics"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"go.uber.org/zap"
)

// FailureLogService 审计/失败日志服务
type FailureLogService struct {
	repo         *repository.FailureLogRepository
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

func NewFailureLogService(repo *repository.FailureLogRepository, defaultLimit, maxLimit int, logger *zap.Logger) *FailureLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLimit <= 0 {
		maxLimit = 500
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = 100
	}
	return &FailureLogService{repo: repo, defaultLimit: defaultLimit, maxLimit: maxLimit, logger: logger}
}

// NewFailure builds an unsaved entry stamped with id and time.
func NewFailure(source, failureType, message string, batchID, userID string, details entity.JSONB) entity.FailureLog {
	entry := entity.FailureLog{
		ID:          entity.NewID(),
		Source:      source,
		FailureType: failureType,
		Context:     details,
		Message:     message,
		CreatedAt:   time.Now(),
	}
	if batchID != "" {
		entry.ImportBatchID = &batchID
	}
	if userID != "" {
		entry.UserID = &userID
	}
	return entry
}

// Record appends entries to the log.
func (s *FailureLogService) Record(ctx context.Context, entries ...entity.FailureLog) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.repo.BatchCreate(ctx, entries); err != nil {
		return fmt.Errorf("record failures: %w", err)
	}
	for _, e := range entries {
		metrics.RecordFailure(e.Source, e.FailureType)
	}
	return nil
}

// ListFailureLogsInput 查询参数
type ListFailureLogsInput struct {
	Source   string
	Resolved *bool
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// FailureLogPage 分页结果
type FailureLogPage struct {
	Entries []entity.FailureLog `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// List 查询失败日志，limit 超过上限时截断
func (s *FailureLogService) List(ctx context.Context, input ListFailureLogsInput) (*FailureLogPage, error) {
	if input.From != nil && input.To != nil && input.From.After(*input.To) {
		return nil, validationf("from must not be after to")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.repo.List(ctx, repository.FailureLogFilter{
		Source:   strings.TrimSpace(input.Source),
		Resolved: input.Resolved,
		From:     input.From,
		To:       input.To,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list failure logs: %w", err)
	}
	return &FailureLogPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Resolve marks an entry resolved. A second resolve is rejected.
func (s *FailureLogService) Resolve(ctx context.Context, id, resolverID, note string) (*entity.FailureLog, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failure log entry", id)
	}
	if entry.IsResolved() {
		return nil, preconditionf("failure log entry %s is already resolved", id)
	}

	n, err := s.repo.MarkResolved(ctx, id, resolverID, strings.TrimSpace(note), time.Now())
	if err != nil {
		return nil, fmt.Errorf("resolve failure log: %w", err)
	}
	if n == 0 {
		return nil, preconditionf("failure log entry %s is already resolved", id)
	}

	s.logger.Info("failure log resolved", zap.String("id", id), zap.String("resolved_by", resolverID))
	return s.repo.FindByID(ctx, id)
}
