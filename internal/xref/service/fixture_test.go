package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/config"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/sse"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *Services
	ctx   context.Context
}

func testConfig() *config.Config {
	return &config.Config{Engine: config.EngineConfig{
		MaxImportRows:          25000,
		ResolveConcurrency:     4,
		ManufacturerMaxLen:     200,
		FailureLogDefaultLimit: 100,
		FailureLogMaxLimit:     500,
		SubmitLockTTL:          time.Minute,
	}}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return &fixture{
		db:    db,
		repos: repos,
		svc:   NewServices(repos, nil, cfg, nil, zap.NewNop()),
		ctx:   context.Background(),
	}
}

func (f *fixture) countXrefs(t *testing.T) int64 {
	t.Helper()
	n, err := f.repos.CrossReference.Count(f.ctx)
	require.NoError(t, err)
	return n
}

func (f *fixture) failures(t *testing.T, source string) []entity.FailureLog {
	t.Helper()
	page, err := f.svc.FailureLog.List(f.ctx, ListFailureLogsInput{Source: source})
	require.NoError(t, err)
	return page.Entries
}

func (f *fixture) project(t *testing.T, id string) *entity.Project {
	t.Helper()
	p, err := f.repos.Project.FindWithItems(f.ctx, id)
	require.NoError(t, err)
	return p
}

// recordingPublisher collects progress events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Progress
	types  []string
}

func (r *recordingPublisher) PublishProgress(userID, eventType string, p sse.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	r.events = append(r.events, p)
}

// stubGuard is a SubmitGuard with a fixed answer.
type stubGuard struct {
	ok       bool
	released int
}

func (g *stubGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if !g.ok {
		return nil, false, nil
	}
	return func() { g.released++ }, true, nil
}
