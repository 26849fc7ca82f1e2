package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/sse"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func acmeRow() Row {
	return Row{"partNumberA": "ABC-123", "manufactureName": "Acme", "wagoCrossA": "221-413"}
}

func TestImportCrossReferences_MergeCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "cat-1")

	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.TotalRows)
	assert.Empty(t, res.Errors)
	assert.Regexp(t, `^imp_[0-9a-f-]{36}$`, res.ImportBatchID)

	again, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 1, again.Updated)
	assert.NotEqual(t, res.ImportBatchID, again.ImportBatchID)

	assert.Equal(t, int64(1), f.countXrefs(t))
}

func TestImportCrossReferences_MergeKeepsScoreAndUpdatesProvenance(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")

	_, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{})
	require.NoError(t, err)

	row := acmeRow()
	row["notes"] = "second pass"
	row["compatibilityScore"] = "0.2"
	row["compatibility_score"] = "0.2"
	row["estimated_price"] = "$4.20"
	row["is_active"] = "no"
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{row}, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	xref, err := f.repos.CrossReference.FindByIdentity(f.ctx, "Acme", "ABC-123", part.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, xref.CompatibilityScore)
	assert.Equal(t, "second pass", xref.Notes)
	assert.Equal(t, res.ImportBatchID, xref.ImportBatchID)
	require.True(t, xref.EstimatedPrice.Valid)
	assert.Equal(t, "4.2", xref.EstimatedPrice.Decimal.String())
	require.NotNil(t, xref.Active)
	assert.False(t, *xref.Active)
}

func TestImportCrossReferences_ReportsSourceLines(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "")

	rows := []Row{
		acmeRow(),
		{"partNumberA": "ABC-3", "manufactureName": "Acme", "wagoCrossA": "999-999"},
	}
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, rows, ImportOptions{UserID: "u1", Lines: []int{1, 3}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 3: WAGO part 999-999 not found")

	logs := f.failures(t, entity.FailureSourceCrossRefImport)
	require.Len(t, logs, 1)
	assert.EqualValues(t, 3, logs[0].Context["row"])

	nonWago, err := f.svc.Import.ImportNonWagoProducts(f.ctx, []Row{{"manufacturer": "Acme", "partNumber": "N-1"}, {"manufacturer": "Acme"}},
		ImportOptions{Lines: []int{2, 5}})
	require.NoError(t, err)
	require.Len(t, nonWago.Errors, 1)
	assert.Contains(t, nonWago.Errors[0], "Row 5:")
}

func TestImportCrossReferences_RowErrors(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "2002-1201", "")

	rows := []Row{
		{"partNumberA": "X-1", "wagoCrossA": "2002-1201"},                                                      // no manufacturer
		{"part_number_b": "X-2", "manufacture_name": "Beta"},                                                   // no WAGO cross
		{"partNumberA": "X-3", "manufactureName": "Gamma", "wagoCrossA": "999-999", "wagoCrossB": "2002-1201"}, // slot A missing
	}
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, rows, ImportOptions{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, res.TotalRows)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "Row 1:")
	assert.Contains(t, res.Errors[1], "Row 2:")
	assert.Contains(t, res.Errors[2], "Row 3: WAGO part 999-999 not found")

	logs := f.failures(t, entity.FailureSourceCrossRefImport)
	require.Len(t, logs, 2)
	types := map[string]bool{}
	for _, l := range logs {
		types[l.FailureType] = true
		require.NotNil(t, l.ImportBatchID)
		assert.Equal(t, res.ImportBatchID, *l.ImportBatchID)
		require.NotNil(t, l.UserID)
		assert.Equal(t, "u1", *l.UserID)
	}
	assert.True(t, types[entity.FailureTypeNoEquivalence])
	assert.True(t, types[entity.FailureTypeWagoPartNotFound])
}

func TestImportCrossReferences_BothSlotsCreateTwoRecords(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedWagoPart(t, f.db, "221-415", "")

	row := Row{"partNumberA": "ABC-123", "manufactureName": "Acme", "wagoCrossA": "221-413", "wago_cross_b": "221-415"}
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{row}, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, int64(2), f.countXrefs(t))
}

func TestImportCrossReferences_TruncatesManufacturer(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")

	long := ""
	for i := 0; i < 250; i++ {
		long += "m"
	}
	row := Row{"partNumberA": "ABC-123", "manufactureName": long, "wagoCrossA": "221-413"}
	_, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{row}, ImportOptions{})
	require.NoError(t, err)

	xref, err := f.repos.CrossReference.FindByIdentity(f.ctx, long[:200], "ABC-123", part.ID)
	require.NoError(t, err)
	assert.Len(t, xref.OriginalManufacturer, 200)
}

func TestImportCrossReferences_BatchValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{}, ImportOptions{})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.svc.Import.ImportCrossReferences(f.ctx, nil, ImportOptions{})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = DecodeRows(json.RawMessage(`{"partNumberA":"x"}`))
	assert.True(t, errors.Is(err, ErrValidation))

	small := NewImportService(f.repos, f.svc.Resolver, f.svc.FailureLog, 2, 1, nil)
	_, err = small.ImportCrossReferences(f.ctx, []Row{acmeRow(), acmeRow(), acmeRow()}, ImportOptions{Replace: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "exceeds the limit of 2")
}

func TestImportCrossReferences_OversizedBatchWritesNothing(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedCrossReference(t, f.db, "Old", "OLD-1", part, 1)

	small := NewImportService(f.repos, f.svc.Resolver, f.svc.FailureLog, 1, 1, nil)
	_, err := small.ImportCrossReferences(f.ctx, []Row{acmeRow(), acmeRow()}, ImportOptions{Replace: true})
	require.Error(t, err)
	assert.Equal(t, int64(1), f.countXrefs(t))
}

func TestImportCrossReferences_ReplaceWipesStore(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedCrossReference(t, f.db, "Old", "OLD-1", part, 0.5)
	testutil.SeedCrossReference(t, f.db, "Old", "OLD-2", part, 0.5)

	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow(), acmeRow()}, ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, int64(1), f.countXrefs(t))
}

func TestImportCrossReferences_ReplaceWhereEveryRowFailsLeavesStoreEmpty(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedCrossReference(t, f.db, "Old", "OLD-1", part, 1)

	rows := []Row{
		{"partNumberA": "ABC-123", "manufactureName": "Acme", "wagoCrossA": "000-000"},
		{"partNumberA": "ABC-124", "manufactureName": "Acme"},
	}
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, rows, ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, int64(0), f.countXrefs(t))
	assert.Len(t, f.failures(t, entity.FailureSourceCrossRefImport), 2)
}

func TestImportCrossReferences_ReplaceRollsBackOnWriteError(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedCrossReference(t, f.db, "Old", "OLD-1", part, 1)

	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_xref_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == "cross_references" {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	rows := []Row{acmeRow(), {"partNumberA": "ABC-9", "manufactureName": "Acme", "wagoCrossA": "404-404"}}
	_, err = f.svc.Import.ImportCrossReferences(f.ctx, rows, ImportOptions{Replace: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, KindOf(err))

	// 原数据保留，失败日志仍然写入
	assert.Equal(t, int64(1), f.countXrefs(t))
	assert.Len(t, f.failures(t, entity.FailureSourceCrossRefImport), 1)
}

func TestImportCrossReferences_MergeWriteErrorIsRowLevel(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedWagoPart(t, f.db, "221-415", "")

	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_one_insert", func(tx *gorm.DB) {
		if x, ok := tx.Statement.Dest.(*entity.CrossReference); ok && x.OriginalPartNumber == "BAD-1" {
			tx.AddError(errors.New("constraint exploded"))
		}
	})
	require.NoError(t, err)

	rows := []Row{
		{"partNumberA": "BAD-1", "manufactureName": "Acme", "wagoCrossA": "221-413"},
		{"partNumberA": "GOOD-1", "manufactureName": "Acme", "wagoCrossA": "221-415"},
	}
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, rows, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 1:")

	logs := f.failures(t, entity.FailureSourceCrossRefImport)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.FailureTypeInvalidRow, logs[0].FailureType)
}

func TestImportCrossReferences_CatalogScope(t *testing.T) {
	f := newFixture(t)
	older := testutil.SeedWagoPart(t, f.db, "221-413", "cat-eu")
	newer := testutil.SeedWagoPart(t, f.db, "221-413", "cat-us")

	// 未限定目录时跨目录匹配，取最早的记录
	_, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{})
	require.NoError(t, err)
	_, err = f.repos.CrossReference.FindByIdentity(f.ctx, "Acme", "ABC-123", older.ID)
	require.NoError(t, err)

	_, err = f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{CatalogID: "cat-us"})
	require.NoError(t, err)
	_, err = f.repos.CrossReference.FindByIdentity(f.ctx, "Acme", "ABC-123", newer.ID)
	require.NoError(t, err)

	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{CatalogID: "cat-apac"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created+res.Updated)
	assert.Len(t, res.Errors, 1)
}

func TestImportCrossReferences_PublishesProgressAndArchives(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "")
	pub := &recordingPublisher{}
	arch := &memArchiver{}
	f.svc.Import.SetProgressPublisher(pub)
	f.svc.Import.SetArchiver(arch)

	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{UserID: "u1"})
	require.NoError(t, err)

	require.NotEmpty(t, pub.events)
	last := pub.events[len(pub.events)-1]
	assert.Equal(t, sse.EventImportProgress, pub.types[len(pub.types)-1])
	assert.Equal(t, res.ImportBatchID, last.BatchID)
	assert.Equal(t, "done", last.Stage)

	require.Contains(t, arch.batches, res.ImportBatchID)
	assert.Len(t, arch.batches[res.ImportBatchID], 1)
}

func TestImportCrossReferences_ArchiveFailureDoesNotFailImport(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "")
	f.svc.Import.SetArchiver(&memArchiver{err: errors.New("bucket gone")})

	res, err := f.svc.Import.ImportCrossReferences(f.ctx, []Row{acmeRow()}, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}

func TestImportCrossReferences_LargeBatchKeepsRowOrder(t *testing.T) {
	f := newFixture(t)
	testutil.SeedWagoPart(t, f.db, "221-413", "")

	var rows []Row
	for i := 0; i < 60; i++ {
		rows = append(rows, Row{"partNumberA": fmt.Sprintf("P-%02d", i), "manufactureName": "Acme", "wagoCrossA": "221-413"})
		rows = append(rows, Row{"partNumberA": fmt.Sprintf("Q-%02d", i), "manufactureName": "Acme", "wagoCrossA": "000-000"})
	}
	res, err := f.svc.Import.ImportCrossReferences(f.ctx, rows, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Created)
	require.Len(t, res.Errors, 60)
	for i, msg := range res.Errors {
		assert.Contains(t, msg, fmt.Sprintf("Row %d:", 2*i+2))
	}
}

func TestImportNonWagoProducts(t *testing.T) {
	f := newFixture(t)

	rows := []Row{
		{"manufacturer": "Acme", "partNumber": "N-1"},
		{"manufacture_name": "Acme", "part_number": "N-2"},
		{"manufacturer": "Acme"},
		{"manufacturer": "Acme", "partNumber": "N-1"},
	}
	res, err := f.svc.Import.ImportNonWagoProducts(f.ctx, rows, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 4, res.TotalRows)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 3:")

	res, err = f.svc.Import.ImportNonWagoProducts(f.ctx, rows[:2], ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	var restamped entity.NonWagoProduct
	require.NoError(t, f.db.Where("part_number = ?", "N-2").First(&restamped).Error)
	assert.Equal(t, res.ImportBatchID, restamped.ImportBatchID)

	n, err := f.repos.NonWagoProduct.Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err = f.svc.Import.ImportNonWagoProducts(f.ctx, []Row{{"manufacturer": "Beta", "partNumber": "B-1"}}, ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	n, err = f.repos.NonWagoProduct.Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.Import.ImportNonWagoProducts(f.ctx, []Row{}, ImportOptions{})
	assert.True(t, errors.Is(err, ErrValidation))
}

type memArchiver struct {
	batches map[string][]Row
	err     error
}

func (m *memArchiver) Archive(_ context.Context, batchID string, rows []Row) error {
	if m.err != nil {
		return m.err
	}
	if m.batches == nil {
		m.batches = map[string][]Row{}
	}
	m.batches[batchID] = rows
	return nil
}
