package service

import (
	"strings"
	"testing"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_CanonicalWins(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	other := testutil.SeedWagoPart(t, f.db, "221-415", "")
	testutil.SeedCrossReference(t, f.db, "Acme", "221-413", other, 1)

	res, err := f.svc.Resolver.ResolveOne(f.ctx, " 221-413 ", "Acme")
	require.NoError(t, err)
	assert.True(t, res.IsWagoPart())
	assert.Equal(t, part.ID, res.WagoPart.ID)
	assert.False(t, res.HasEquivalent())
	assert.NotNil(t, res.Matches)
}

func TestResolver_RankedByScoreWithStableTies(t *testing.T) {
	f := newFixture(t)
	low := testutil.SeedWagoPart(t, f.db, "750-1", "")
	first := testutil.SeedWagoPart(t, f.db, "750-2", "")
	second := testutil.SeedWagoPart(t, f.db, "750-3", "")
	testutil.SeedCrossReference(t, f.db, "Acme", "ABC-123", low, 0.4)
	testutil.SeedCrossReference(t, f.db, "Acme", "ABC-123", first, 0.9)
	testutil.SeedCrossReference(t, f.db, "Acme", "ABC-123", second, 0.9)

	all, err := f.svc.Resolver.ListAll(f.ctx, "ABC-123", "acme")
	require.NoError(t, err)
	require.Len(t, all.Matches, 3)
	assert.Equal(t, first.ID, all.Matches[0].WagoPartID)
	assert.Equal(t, second.ID, all.Matches[1].WagoPartID)
	assert.Equal(t, low.ID, all.Matches[2].WagoPartID)
	require.NotNil(t, all.Matches[0].WagoPart)
	assert.Equal(t, "750-2", all.Matches[0].WagoPart.PartNumber)

	one, err := f.svc.Resolver.ResolveOne(f.ctx, "ABC-123", "ACME")
	require.NoError(t, err)
	require.Len(t, one.Matches, 1)
	assert.Equal(t, first.ID, one.Matches[0].WagoPartID)
}

func TestResolver_BlankManufacturerIsUnknown(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedCrossReference(t, f.db, UnknownManufacturer, "X-9", part, 1)

	res, err := f.svc.Resolver.ResolveOne(f.ctx, "X-9", "   ")
	require.NoError(t, err)
	assert.Equal(t, UnknownManufacturer, res.Manufacturer)
	assert.True(t, res.HasEquivalent())

	res, err = f.svc.Resolver.ResolveOne(f.ctx, "X-9", "Acme")
	require.NoError(t, err)
	assert.False(t, res.HasEquivalent())
	assert.False(t, res.IsWagoPart())
}

func TestResolver_NormalizeManufacturerTruncates(t *testing.T) {
	r := NewResolver(nil, nil, "", 5)
	assert.Equal(t, "AcmeC", r.NormalizeManufacturer("  AcmeCorp  "))
	assert.Equal(t, "日本電気株", r.NormalizeManufacturer("日本電気株式会社"))
	assert.Equal(t, UnknownManufacturer, r.NormalizeManufacturer(""))
	assert.Equal(t, strings.Repeat("a", 200), NewResolver(nil, nil, "", 0).NormalizeManufacturer(strings.Repeat("a", 300)))
}

func TestResolver_ListEquivalentsIgnoresCanonical(t *testing.T) {
	f := newFixture(t)
	part := testutil.SeedWagoPart(t, f.db, "221-413", "")
	testutil.SeedCrossReference(t, f.db, "Acme", "221-413", part, 0.7)

	matches, err := f.svc.Resolver.ListEquivalents(f.ctx, "221-413", "Acme")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.7, matches[0].CompatibilityScore)
}

// Two catalogs reuse a part number. Without a scope the oldest part wins,
// which may cross catalog boundaries.
func TestResolver_CatalogScopeAmbiguity(t *testing.T) {
	f := newFixture(t)
	eu := testutil.SeedWagoPart(t, f.db, "221-413", "cat-eu")
	us := testutil.SeedWagoPart(t, f.db, "221-413", "cat-us")

	unscoped, err := f.svc.Resolver.ResolveOne(f.ctx, "221-413", "")
	require.NoError(t, err)
	require.True(t, unscoped.IsWagoPart())
	assert.Equal(t, eu.ID, unscoped.WagoPart.ID)

	scoped := NewResolver(f.repos.WagoPart, f.repos.CrossReference, "cat-us", 200)
	res, err := scoped.ResolveOne(f.ctx, "221-413", "")
	require.NoError(t, err)
	require.True(t, res.IsWagoPart())
	assert.Equal(t, us.ID, res.WagoPart.ID)

	part, err := scoped.FindWagoPart(f.ctx, "221-413", "cat-eu")
	require.NoError(t, err)
	assert.Equal(t, eu.ID, part.ID)

	none, err := scoped.FindWagoPart(f.ctx, "221-413", "cat-apac")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestResolver_WithCatalogLeavesOriginalUnscoped(t *testing.T) {
	f := newFixture(t)
	eu := testutil.SeedWagoPart(t, f.db, "221-413", "cat-eu")
	us := testutil.SeedWagoPart(t, f.db, "221-413", "cat-us")

	res, err := f.svc.Resolver.WithCatalog("cat-us").ListAll(f.ctx, "221-413", "")
	require.NoError(t, err)
	assert.Equal(t, us.ID, res.WagoPart.ID)

	res, err = f.svc.Resolver.ListAll(f.ctx, "221-413", "")
	require.NoError(t, err)
	assert.Equal(t, eu.ID, res.WagoPart.ID)
}
