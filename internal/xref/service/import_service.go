package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Nickin919/WAIGO-sub001/internal/metrics"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/sse"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ProgressPublisher receives import and submission progress.
type ProgressPublisher interface {
	PublishProgress(userID, eventType string, p sse.Progress)
}

// ImportOptions 导入参数
type ImportOptions struct {
	Replace   bool
	CatalogID string
	UserID    string
	// Lines is the source row number of each row, for uploads that skip blank rows.
	Lines []int
}

// line is the 1-based row number reported for rows[i].
func (o ImportOptions) line(i int) int {
	if i < len(o.Lines) {
		return o.Lines[i]
	}
	return i + 1
}

// CrossReferenceImportResult 交叉引用导入结果
type CrossReferenceImportResult struct {
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	TotalRows     int      `json:"total_rows"`
	Errors        []string `json:"errors,omitempty"`
	ImportBatchID string   `json:"import_batch_id"`
}

// NonWagoImportResult 无等效产品导入结果
type NonWagoImportResult struct {
	Created       int      `json:"created"`
	TotalRows     int      `json:"total_rows"`
	Errors        []string `json:"errors,omitempty"`
	ImportBatchID string   `json:"import_batch_id"`
}

// ImportService 批量导入
type ImportService struct {
	db          *gorm.DB
	xrefs       *repository.CrossReferenceRepository
	nonWago     *repository.NonWagoProductRepository
	resolver    *Resolver
	failures    *FailureLogService
	archiver    BatchArchiver
	progress    ProgressPublisher
	maxRows     int
	concurrency int
	logger      *zap.Logger
}

func NewImportService(repos *repository.Repositories, resolver *Resolver, failures *FailureLogService, maxRows, concurrency int, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 25000
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ImportService{
		db:          repos.DB(),
		xrefs:       repos.CrossReference,
		nonWago:     repos.NonWagoProduct,
		resolver:    resolver,
		failures:    failures,
		maxRows:     maxRows,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SetArchiver enables raw batch archiving.
func (s *ImportService) SetArchiver(a BatchArchiver) {
	s.archiver = a
}

// SetProgressPublisher enables import_progress events.
func (s *ImportService) SetProgressPublisher(p ProgressPublisher) {
	s.progress = p
}

// MaxRows 单次导入行数上限
func (s *ImportService) MaxRows() int {
	return s.maxRows
}

func (s *ImportService) validateBatch(rows []Row) error {
	if rows == nil {
		return validationf("rows must be a list")
	}
	if len(rows) == 0 {
		return validationf("rows must not be empty")
	}
	if len(rows) > s.maxRows {
		return validationf("too many rows: %d exceeds the limit of %d", len(rows), s.maxRows)
	}
	return nil
}

// DecodeRows turns a JSON body into rows, rejecting anything that is not a list.
func DecodeRows(raw json.RawMessage) ([]Row, error) {
	rows, err := DecodeJSONRows(raw)
	if err != nil {
		return nil, validationf("%s", err.Error())
	}
	return rows, nil
}

// ==================== 交叉引用导入 ====================

// xrefSlot is one WAGO cross number of a row and its resolution.
type xrefSlot struct {
	wagoCross string
	part      *entity.WagoPart
	err       error
}

// xrefRowPlan is a parsed row ready to write.
type xrefRowPlan struct {
	line         int
	manufacturer string
	partNumber   string
	template     entity.CrossReference
	slots        []xrefSlot
	invalid      string
	failures     []entity.FailureLog
}

// ImportCrossReferences ingests a batch in replace or merge mode.
func (s *ImportService) ImportCrossReferences(ctx context.Context, rows []Row, opts ImportOptions) (*CrossReferenceImportResult, error) {
	if err := s.validateBatch(rows); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	mode := importMode(opts.Replace)
	batchID := NewBatchID()
	result := &CrossReferenceImportResult{TotalRows: len(rows), ImportBatchID: batchID}

	plans := s.planCrossReferenceRows(rows, opts, batchID)
	s.publish(opts.UserID, batchID, "resolving", 0, len(rows))
	s.resolveSlots(ctx, plans, opts.CatalogID)

	var failures []entity.FailureLog
	var rowErrors []string
	for i := range plans {
		p := &plans[i]
		if p.invalid != "" {
			rowErrors = append(rowErrors, p.invalid)
		}
		for _, slot := range p.slots {
			if slot.err != nil {
				rowErrors = append(rowErrors, fmt.Sprintf("Row %d: lookup WAGO part %s: %v", p.line, slot.wagoCross, slot.err))
			} else if slot.part == nil {
				rowErrors = append(rowErrors, fmt.Sprintf("Row %d: WAGO part %s not found", p.line, slot.wagoCross))
				failures = append(failures, NewFailure(
					entity.FailureSourceCrossRefImport, entity.FailureTypeWagoPartNotFound,
					fmt.Sprintf("WAGO part %s not found", slot.wagoCross), batchID, opts.UserID,
					entity.JSONB{"row": p.line, "manufacturer": p.manufacturer, "part_number": p.partNumber, "wago_cross": slot.wagoCross},
				))
			}
		}
		failures = append(failures, p.failures...)
	}

	var writeErr error
	if opts.Replace {
		writeErr = s.replaceCrossReferences(ctx, plans, result, opts.UserID)
	} else {
		rowErrors, failures = s.mergeCrossReferences(ctx, plans, result, rowErrors, failures, batchID, opts.UserID)
	}

	// 审计日志在事务之外写入，回滚后依然保留
	if err := s.failures.Record(ctx, failures...); err != nil {
		s.logger.Error("failed to record import failures", zap.String("batch_id", batchID), zap.Error(err))
	}
	for _, f := range failures {
		s.logger.Warn("cross reference import failure",
			zap.String("batch_id", batchID),
			zap.String("type", f.FailureType),
			zap.String("message", f.Message))
	}

	failed := len(rows) - countResolvedRows(plans)
	metrics.RecordImport("cross_reference", mode, result.Created, result.Updated, failed, writeErr, timer.Duration())

	if writeErr != nil {
		s.logger.Error("cross reference import rolled back",
			zap.String("batch_id", batchID), zap.String("mode", mode), zap.Error(writeErr))
		return nil, fmt.Errorf("import batch %s: %w", batchID, writeErr)
	}

	s.archive(ctx, batchID, rows)

	result.Errors = rowErrors
	s.publish(opts.UserID, batchID, "done", len(rows), len(rows))
	s.logger.Info("cross reference import finished",
		zap.String("batch_id", batchID),
		zap.String("mode", mode),
		zap.Int("rows", len(rows)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(rowErrors)),
		zap.Duration("took", timer.Duration()))
	return result, nil
}

// planCrossReferenceRows validates and normalises every row without touching the store.
func (s *ImportService) planCrossReferenceRows(rows []Row, opts ImportOptions, batchID string) []xrefRowPlan {
	userID := opts.UserID
	plans := make([]xrefRowPlan, len(rows))
	for i, row := range rows {
		p := &plans[i]
		p.line = opts.line(i)

		partNumberA := row.Get(colPartNumberA...)
		partNumberB := row.Get(colPartNumberB...)
		p.partNumber = partNumberA
		if p.partNumber == "" {
			p.partNumber = partNumberB
		}
		p.manufacturer = truncateRunes(row.Get(colManufacturer...), s.resolver.manufacturerMax)

		if p.partNumber == "" || p.manufacturer == "" {
			p.invalid = fmt.Sprintf("Row %d: partNumberA or partNumberB and manufactureName are required", p.line)
			continue
		}

		crossA := row.Get(colWagoCrossA...)
		crossB := row.Get(colWagoCrossB...)
		if crossA == "" && crossB == "" {
			p.invalid = fmt.Sprintf("Row %d: wagoCrossA or wagoCrossB is required", p.line)
			p.failures = append(p.failures, NewFailure(
				entity.FailureSourceCrossRefImport, entity.FailureTypeNoEquivalence,
				fmt.Sprintf("no WAGO cross reference supplied for %s %s", p.manufacturer, p.partNumber), batchID, userID,
				entity.JSONB{"row": p.line, "manufacturer": p.manufacturer, "part_number": p.partNumber},
			))
			continue
		}
		if crossA != "" {
			p.slots = append(p.slots, xrefSlot{wagoCross: crossA})
		}
		if crossB != "" && crossB != crossA {
			p.slots = append(p.slots, xrefSlot{wagoCross: crossB})
		}

		p.template = entity.CrossReference{
			OriginalManufacturer: p.manufacturer,
			OriginalPartNumber:   p.partNumber,
			CompatibilityScore:   entity.DefaultCompatibilityScore,
			Notes:                row.Get(colNotes...),
			PartNumberA:          partNumberA,
			PartNumberB:          partNumberB,
			WagoCrossA:           crossA,
			WagoCrossB:           crossB,
			Active:               ParseBool(row.Get(colActive...)),
			EstimatedPrice:       ParseDecimal(row.Get(colPrice...)),
			NotesA:               row.Get(colNotesA...),
			NotesB:               row.Get(colNotesB...),
			Author:               row.Get(colAuthor...),
			LastModified:         ParseDate(row.Get(colLastModified...)),
			ImportBatchID:        batchID,
		}
		if userID != "" {
			p.template.CreatedBy = &userID
		}
	}
	return plans
}

// resolveSlots looks up every WAGO cross number with bounded parallelism.
// Each worker owns one plan index and never returns an error.
func (s *ImportService) resolveSlots(ctx context.Context, plans []xrefRowPlan, catalogID string) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range plans {
		if len(plans[i].slots) == 0 {
			continue
		}
		g.Go(func() error {
			p := &plans[i]
			for j := range p.slots {
				p.slots[j].part, p.slots[j].err = s.resolver.FindWagoPart(ctx, p.slots[j].wagoCross, catalogID)
			}
			return nil
		})
	}
	g.Wait()
}

// replaceCrossReferences wipes and reloads the store in one transaction.
func (s *ImportService) replaceCrossReferences(ctx context.Context, plans []xrefRowPlan, result *CrossReferenceImportResult, userID string) error {
	created, updated := 0, 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.xrefs.WithTx(tx)
		if _, err := repo.DeleteAll(ctx); err != nil {
			return fmt.Errorf("wipe cross references: %w", err)
		}

		seen := make(map[string]bool)
		for i := range plans {
			p := &plans[i]
			for _, slot := range p.slots {
				if slot.part == nil {
					continue
				}
				xref := p.template
				xref.WagoPartID = slot.part.ID
				key := identityKey(xref.OriginalManufacturer, xref.OriginalPartNumber, xref.WagoPartID)
				if seen[key] {
					// 同批次重复行：按合并语义更新
					existing, err := repo.FindByIdentity(ctx, xref.OriginalManufacturer, xref.OriginalPartNumber, xref.WagoPartID)
					if err != nil {
						return fmt.Errorf("Row %d: %w", p.line, err)
					}
					xref.ID = existing.ID
					if err := repo.UpdateMutable(ctx, &xref); err != nil {
						return fmt.Errorf("Row %d: %w", p.line, err)
					}
					updated++
					continue
				}
				xref.ID = entity.NewID()
				if err := repo.Create(ctx, &xref); err != nil {
					return fmt.Errorf("Row %d: %w", p.line, err)
				}
				seen[key] = true
				created++
			}
			s.publishEvery(userID, result.ImportBatchID, i+1, len(plans))
		}
		return nil
	})
	if err != nil {
		return err
	}
	result.Created, result.Updated = created, updated
	return nil
}

// mergeCrossReferences upserts row by row. A failed write is a row error, not a batch error.
func (s *ImportService) mergeCrossReferences(ctx context.Context, plans []xrefRowPlan, result *CrossReferenceImportResult, rowErrors []string, failures []entity.FailureLog, batchID, userID string) ([]string, []entity.FailureLog) {
	for i := range plans {
		p := &plans[i]
		for _, slot := range p.slots {
			if slot.part == nil {
				continue
			}
			xref := p.template
			xref.WagoPartID = slot.part.ID
			created, err := s.upsertCrossReference(ctx, &xref)
			if err != nil {
				rowErrors = append(rowErrors, fmt.Sprintf("Row %d: save cross reference to %s: %v", p.line, slot.wagoCross, err))
				failures = append(failures, NewFailure(
					entity.FailureSourceCrossRefImport, entity.FailureTypeInvalidRow,
					err.Error(), batchID, userID,
					entity.JSONB{"row": p.line, "manufacturer": p.manufacturer, "part_number": p.partNumber, "wago_cross": slot.wagoCross},
				))
				continue
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		s.publishEvery(userID, batchID, i+1, len(plans))
	}
	return rowErrors, failures
}

// upsertCrossReference updates by composite identity or creates with the default score.
func (s *ImportService) upsertCrossReference(ctx context.Context, xref *entity.CrossReference) (bool, error) {
	existing, err := s.xrefs.FindByIdentity(ctx, xref.OriginalManufacturer, xref.OriginalPartNumber, xref.WagoPartID)
	if err == nil {
		xref.ID = existing.ID
		return false, s.xrefs.UpdateMutable(ctx, xref)
	}
	if !repository.IsNotFound(err) {
		return false, err
	}

	xref.ID = entity.NewID()
	xref.CompatibilityScore = entity.DefaultCompatibilityScore
	err = s.xrefs.Create(ctx, xref)
	if err == nil {
		return true, nil
	}
	if !repository.IsUniqueViolation(err) {
		return false, err
	}

	// 并发导入抢先插入，退化为更新
	existing, err = s.xrefs.FindByIdentity(ctx, xref.OriginalManufacturer, xref.OriginalPartNumber, xref.WagoPartID)
	if err != nil {
		return false, err
	}
	xref.ID = existing.ID
	return false, s.xrefs.UpdateMutable(ctx, xref)
}

// ==================== 无等效产品导入 ====================

// ImportNonWagoProducts ingests (manufacturer, part number) pairs.
func (s *ImportService) ImportNonWagoProducts(ctx context.Context, rows []Row, opts ImportOptions) (*NonWagoImportResult, error) {
	if err := s.validateBatch(rows); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	mode := importMode(opts.Replace)
	batchID := NewBatchID()
	result := &NonWagoImportResult{TotalRows: len(rows), ImportBatchID: batchID}

	type pair struct {
		line         int
		manufacturer string
		partNumber   string
	}
	var valid []pair
	for i, row := range rows {
		manufacturer := truncateRunes(row.Get(colNonWagoManufacturer...), s.resolver.manufacturerMax)
		partNumber := row.Get(colNonWagoPartNumber...)
		if manufacturer == "" || partNumber == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: manufacturer and partNumber are required", opts.line(i)))
			continue
		}
		valid = append(valid, pair{line: opts.line(i), manufacturer: manufacturer, partNumber: partNumber})
	}

	newProduct := func(p pair) *entity.NonWagoProduct {
		product := &entity.NonWagoProduct{
			ID:            entity.NewID(),
			Manufacturer:  p.manufacturer,
			PartNumber:    p.partNumber,
			ImportBatchID: batchID,
		}
		if opts.UserID != "" {
			product.CreatedBy = &opts.UserID
		}
		return product
	}

	var writeErr error
	var failures []entity.FailureLog
	if opts.Replace {
		created := 0
		writeErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.nonWago.WithTx(tx)
			if _, err := repo.DeleteAll(ctx); err != nil {
				return fmt.Errorf("wipe non-wago products: %w", err)
			}
			seen := make(map[string]bool)
			for _, p := range valid {
				key := identityKey(p.manufacturer, p.partNumber)
				if seen[key] {
					continue
				}
				if err := repo.Create(ctx, newProduct(p)); err != nil {
					return fmt.Errorf("Row %d: %w", p.line, err)
				}
				seen[key] = true
				created++
			}
			return nil
		})
		if writeErr == nil {
			result.Created = created
		}
	} else {
		for _, p := range valid {
			created, err := s.nonWago.Upsert(ctx, newProduct(p))
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: save product: %v", p.line, err))
				failures = append(failures, NewFailure(
					entity.FailureSourceNonWagoImport, entity.FailureTypeInvalidRow,
					err.Error(), batchID, opts.UserID,
					entity.JSONB{"row": p.line, "manufacturer": p.manufacturer, "part_number": p.partNumber},
				))
				continue
			}
			if created {
				result.Created++
			}
		}
	}

	if err := s.failures.Record(ctx, failures...); err != nil {
		s.logger.Error("failed to record import failures", zap.String("batch_id", batchID), zap.Error(err))
	}
	metrics.RecordImport("non_wago", mode, result.Created, 0, len(result.Errors), writeErr, timer.Duration())

	if writeErr != nil {
		s.logger.Error("non-wago import rolled back", zap.String("batch_id", batchID), zap.Error(writeErr))
		return nil, fmt.Errorf("import batch %s: %w", batchID, writeErr)
	}

	s.logger.Info("non-wago import finished",
		zap.String("batch_id", batchID),
		zap.String("mode", mode),
		zap.Int("rows", len(rows)),
		zap.Int("created", result.Created),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// ==================== 辅助 ====================

func (s *ImportService) archive(ctx context.Context, batchID string, rows []Row) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, batchID, rows); err != nil {
		s.logger.Warn("failed to archive import batch", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (s *ImportService) publish(userID, batchID, stage string, processed, total int) {
	if s.progress == nil {
		return
	}
	s.progress.PublishProgress(userID, sse.EventImportProgress, sse.Progress{
		BatchID:   batchID,
		Stage:     stage,
		Processed: processed,
		Total:     total,
	})
}

const progressEvery = 500

func (s *ImportService) publishEvery(userID, batchID string, done, total int) {
	if done%progressEvery == 0 {
		s.publish(userID, batchID, "writing", done, total)
	}
}

func importMode(replace bool) string {
	if replace {
		return "replace"
	}
	return "merge"
}

func identityKey(parts ...string) string {
	b, _ := json.Marshal(parts)
	return string(b)
}

func countResolvedRows(plans []xrefRowPlan) int {
	n := 0
	for _, p := range plans {
		for _, slot := range p.slots {
			if slot.part != nil {
				n++
				break
			}
		}
	}
	return n
}
