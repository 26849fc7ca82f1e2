package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/metrics"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/sse"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkflowService drives a BOM through DRAFT -> PROCESSING -> SUBMITTED -> COMPLETED.
type WorkflowService struct {
	projects    *repository.ProjectRepository
	parts       *repository.WagoPartRepository
	resolver    *Resolver
	failures    *FailureLogService
	guard       SubmitGuard
	lockTTL     time.Duration
	progress    ProgressPublisher
	concurrency int
	logger      *zap.Logger
}

func NewWorkflowService(repos *repository.Repositories, resolver *Resolver, failures *FailureLogService, concurrency int, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &WorkflowService{
		projects:    repos.Project,
		parts:       repos.WagoPart,
		resolver:    resolver,
		failures:    failures,
		lockTTL:     2 * time.Minute,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SetSubmitGuard enables the per-project submit lock.
func (s *WorkflowService) SetSubmitGuard(g SubmitGuard, ttl time.Duration) {
	s.guard = g
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// SetProgressPublisher enables bom_progress events.
func (s *WorkflowService) SetProgressPublisher(p ProgressPublisher) {
	s.progress = p
}

// ==================== 提交 ====================

// itemResolution is the resolver outcome for one line item, by index.
type itemResolution struct {
	skipped bool
	result  *Resolution
	err     error
}

// Submit resolves every line item and moves the project to SUBMITTED.
// PROCESSING is persisted before any item is resolved.
func (s *WorkflowService) Submit(ctx context.Context, projectID, userID string) (*entity.Project, error) {
	timer := metrics.NewTimer()

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, notFoundOr(err, "project", projectID)
	}
	if project.OwnerID != userID {
		return nil, forbiddenf("only the project owner can submit")
	}
	if project.Status != entity.ProjectStatusDraft {
		return nil, preconditionf("project is %s, only DRAFT projects can be submitted", project.Status)
	}

	items, err := s.projects.ListItems(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return nil, preconditionf("project has no items")
	}

	if s.guard != nil {
		release, ok, err := s.guard.Acquire(ctx, projectID, s.lockTTL)
		if err != nil {
			s.logger.Warn("submit lock unavailable, continuing without it", zap.String("project_id", projectID), zap.Error(err))
		} else if !ok {
			return nil, conflictf("project %s is already being submitted", projectID)
		} else {
			defer release()
		}
	}

	if err := s.transition(ctx, projectID, userID, entity.ProjectStatusDraft, entity.ProjectStatusProcessing, nil); err != nil {
		return nil, err
	}
	s.publish(userID, projectID, "processing", 0, len(items))

	results := s.resolveItems(ctx, items)

	for i := range items {
		s.applyResolution(ctx, &items[i], results[i])
		if (i+1)%50 == 0 {
			s.publish(userID, projectID, "resolving", i+1, len(items))
		}
	}

	now := time.Now()
	if err := s.transition(ctx, projectID, userID, entity.ProjectStatusProcessing, entity.ProjectStatusSubmitted,
		map[string]interface{}{"submitted_at": now}); err != nil {
		return nil, err
	}
	metrics.SubmitDuration.Observe(timer.Duration().Seconds())
	s.publish(userID, projectID, "submitted", len(items), len(items))

	return s.projects.FindWithItems(ctx, projectID)
}

// resolveItems fans out ResolveOne over the items. Each worker writes only its own
// index and never returns an error, so one failing item does not cancel the rest.
func (s *WorkflowService) resolveItems(ctx context.Context, items []entity.ProjectItem) []itemResolution {
	results := make([]itemResolution, len(items))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range items {
		if strings.TrimSpace(items[i].PartNumber) == "" {
			results[i].skipped = true
			continue
		}
		g.Go(func() error {
			results[i].result, results[i].err = s.resolver.ResolveOne(ctx, items[i].PartNumber, items[i].Manufacturer)
			return nil
		})
	}
	g.Wait()
	return results
}

// applyResolution stamps the resolution fields. Errors are logged and do not stop the loop.
func (s *WorkflowService) applyResolution(ctx context.Context, item *entity.ProjectItem, r itemResolution) {
	if r.skipped {
		return
	}
	if r.err != nil {
		s.logger.Warn("item resolution failed", zap.String("item_id", item.ID), zap.String("part_number", item.PartNumber), zap.Error(r.err))
		return
	}

	var fields map[string]interface{}
	switch {
	case r.result.IsWagoPart():
		fields = map[string]interface{}{"wago_part_id": r.result.WagoPart.ID, "is_wago_part": true}
	case r.result.HasEquivalent():
		fields = map[string]interface{}{"has_wago_equivalent": true}
	default:
		return
	}
	if err := s.projects.UpdateItemFields(ctx, item.ID, fields); err != nil {
		s.logger.Warn("failed to store item resolution", zap.String("item_id", item.ID), zap.Error(err))
	}
}

// ==================== 替换建议 ====================

// Suggestion is one ranked WAGO equivalent for a line item.
type Suggestion struct {
	CrossReferenceID   string  `json:"cross_reference_id"`
	WagoPartID         string  `json:"wago_part_id"`
	WagoPartNumber     string  `json:"wago_part_number"`
	Description        string  `json:"description,omitempty"`
	CompatibilityScore float64 `json:"compatibility_score"`
	Notes              string  `json:"notes,omitempty"`
}

// ItemSuggestions 行项的替换建议
type ItemSuggestions struct {
	ItemID       string       `json:"item_id"`
	ItemNumber   int          `json:"item_number"`
	Manufacturer string       `json:"manufacturer"`
	PartNumber   string       `json:"part_number"`
	Suggestions  []Suggestion `json:"suggestions"`
}

// Suggest lists every ranked equivalent for items that are not WAGO parts. Read-only.
func (s *WorkflowService) Suggest(ctx context.Context, projectID, userID string) ([]ItemSuggestions, error) {
	project, err := s.loadOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project.Status != entity.ProjectStatusSubmitted {
		return nil, preconditionf("project is %s, suggestions require SUBMITTED", project.Status)
	}

	items, err := s.projects.ListItems(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	var candidates []entity.ProjectItem
	for _, item := range items {
		if item.IsWagoPart || strings.TrimSpace(item.PartNumber) == "" {
			continue
		}
		candidates = append(candidates, item)
	}

	out := make([]ItemSuggestions, len(candidates))
	errs := make([]error, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range candidates {
		g.Go(func() error {
			item := candidates[i]
			matches, err := s.resolver.ListEquivalents(ctx, item.PartNumber, item.Manufacturer)
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = ItemSuggestions{
				ItemID:       item.ID,
				ItemNumber:   item.ItemNumber,
				Manufacturer: item.Manufacturer,
				PartNumber:   item.PartNumber,
				Suggestions:  toSuggestions(matches),
			}
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toSuggestions(matches []entity.CrossReference) []Suggestion {
	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		sg := Suggestion{
			CrossReferenceID:   m.ID,
			WagoPartID:         m.WagoPartID,
			CompatibilityScore: m.CompatibilityScore,
			Notes:              m.Notes,
		}
		if m.WagoPart != nil {
			sg.WagoPartNumber = m.WagoPart.PartNumber
			sg.Description = m.WagoPart.Description
		}
		out = append(out, sg)
	}
	return out
}

// ==================== 接受替换 ====================

// ApplyUpgrade replaces an item with the chosen WAGO part.
func (s *WorkflowService) ApplyUpgrade(ctx context.Context, projectID, itemID, wagoPartID, userID string) (*entity.ProjectItem, error) {
	project, err := s.loadOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project.Status != entity.ProjectStatusSubmitted {
		return nil, preconditionf("project is %s, upgrades require SUBMITTED", project.Status)
	}

	item, err := s.projects.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "item", itemID)
	}
	if item.ProjectID != projectID {
		return nil, notFoundf("item %s not found in project %s", itemID, projectID)
	}

	part, err := s.parts.FindByID(ctx, wagoPartID)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("load wago part: %w", err)
		}
		entry := NewFailure(entity.FailureSourceBOMWorkflow, entity.FailureTypeWagoPartNotFound,
			fmt.Sprintf("WAGO part %s not found for upgrade", wagoPartID), "", userID,
			entity.JSONB{"project_id": projectID, "item_id": itemID, "wago_part_id": wagoPartID})
		if err := s.failures.Record(ctx, entry); err != nil {
			s.logger.Error("failed to record upgrade failure", zap.Error(err))
		}
		return nil, notFoundf("WAGO part not found: %s", wagoPartID)
	}

	err = s.projects.UpdateItemFields(ctx, itemID, map[string]interface{}{
		"part_number":         part.PartNumber,
		"description":         part.Description,
		"wago_part_id":        part.ID,
		"is_wago_part":        true,
		"has_wago_equivalent": true,
	})
	if err != nil {
		return nil, fmt.Errorf("apply upgrade: %w", err)
	}

	s.logger.Info("upgrade applied",
		zap.String("project_id", projectID),
		zap.String("item_id", itemID),
		zap.String("wago_part_id", part.ID),
		zap.String("user_id", userID))
	return s.projects.FindItemByID(ctx, itemID)
}

// ==================== 完成 ====================

// Finalize moves a SUBMITTED project to COMPLETED. No matching runs.
func (s *WorkflowService) Finalize(ctx context.Context, projectID, userID string) (*entity.Project, error) {
	project, err := s.loadOwned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project.Status != entity.ProjectStatusSubmitted {
		return nil, preconditionf("project is %s, only SUBMITTED projects can be finalized", project.Status)
	}

	if err := s.transition(ctx, projectID, userID, entity.ProjectStatusSubmitted, entity.ProjectStatusCompleted,
		map[string]interface{}{"completed_at": time.Now()}); err != nil {
		return nil, err
	}
	return s.projects.FindWithItems(ctx, projectID)
}

// ==================== 辅助 ====================

func (s *WorkflowService) loadOwned(ctx context.Context, projectID, userID string) (*entity.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, notFoundOr(err, "project", projectID)
	}
	if project.OwnerID != userID {
		return nil, forbiddenf("only the project owner can do this")
	}
	return project, nil
}

// transition is a forward compare-and-set on status.
func (s *WorkflowService) transition(ctx context.Context, projectID, userID, from, to string, extra map[string]interface{}) error {
	if entity.StatusRank(to) <= entity.StatusRank(from) {
		return preconditionf("status cannot move from %s to %s", from, to)
	}
	n, err := s.projects.TransitionStatus(ctx, projectID, from, to, extra)
	if err != nil {
		return fmt.Errorf("update status to %s: %w", to, err)
	}
	if n == 0 {
		return preconditionf("project is no longer %s", from)
	}
	metrics.RecordTransition(from, to)
	s.logger.Info("project status changed",
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}

func (s *WorkflowService) publish(userID, projectID, stage string, processed, total int) {
	if s.progress == nil {
		return
	}
	s.progress.PublishProgress(userID, sse.EventBOMProgress, sse.Progress{
		ProjectID: projectID,
		Stage:     stage,
		Processed: processed,
		Total:     total,
	})
}
