package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/adapters/cas"
	"go.trai.ch/mallard/internal/adapters/fs"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports/mocks"
	"go.trai.ch/mallard/internal/engine/buildctx"
	"go.trai.ch/mallard/internal/engine/outdated"
	"go.trai.ch/mallard/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

var errBoom = errors.New("boom")

type schedulerTestMocks struct {
	evaluator *mocks.MockEvaluator
	logger    *mocks.MockLogger
	queue     *mocks.MockWorkQueue
	store     *cas.Store
	root      string
}

func setupSchedulerTest(t *testing.T) schedulerTestMocks {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := schedulerTestMocks{
		evaluator: mocks.NewMockEvaluator(ctrl),
		logger:    mocks.NewMockLogger(ctrl),
		queue:     mocks.NewMockWorkQueue(ctrl),
		root:      t.TempDir(),
	}
	m.logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	m.logger.EXPECT().Info(gomock.Any()).AnyTimes()
	m.logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	store, err := cas.NewStore(filepath.Join(m.root, ".mallard", "cache"))
	require.NoError(t, err)
	m.store = store
	return m
}

func (m schedulerTestMocks) context(t *testing.T, targets []domain.Target, opts buildctx.Options) *buildctx.Context {
	t.Helper()
	plan := &domain.Plan{Root: m.root, Language: "cel", Targets: targets}
	opts.WorkDir = m.root
	if opts.Backoff == "" {
		opts.Backoff = "none"
	}
	bc, err := buildctx.New(plan, buildctx.Deps{
		Cache:     m.store,
		Evaluator: m.evaluator,
		Files:     fs.NewInspector(fs.NewHasher(fs.NewWalker())),
		Logger:    m.logger,
		Queue:     m.queue,
	}, opts)
	require.NoError(t, err)
	return bc
}

func target(name string, deps ...string) domain.Target {
	return domain.Target{
		Name:         domain.NewInternedString(name),
		Command:      name,
		Dependencies: domain.NewInternedStrings(deps),
	}
}

func byName(name string) gomock.Matcher {
	return gomock.Cond(func(inv *domain.Invocation) bool { return inv.Name == name })
}

func status(t *testing.T, store *cas.Store, name string) domain.Progress {
	t.Helper()
	var p domain.Progress
	require.NoError(t, store.Load(name, domain.NamespaceProgress, &p))
	return p
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	retries := 2
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{Retries: &retries})

	gomock.InOrder(
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom),
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom),
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{Value: int64(7)}, nil),
	)

	require.NoError(t, scheduler.New(bc).Run(context.Background(), bc.Graph))

	assert.Equal(t, []string{"a"}, bc.Report.Succeeded)
	v, ok := bc.TargetScope.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
	p := status(t, m.store, "a")
	assert.Equal(t, domain.StatusDone, p.Status)
	assert.Equal(t, 3, p.Attempts)
}

func TestRun_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	retries := 2
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{Retries: &retries})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom).Times(3)

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrBuildFailed)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"a"}, bc.Report.Failed)
	require.ErrorIs(t, bc.Report.Cause("a"), domain.ErrTargetFailed)

	p := status(t, m.store, "a")
	assert.Equal(t, domain.StatusFailed, p.Status)
	assert.Equal(t, 3, p.Attempts)
	assert.False(t, m.store.Exists("a", domain.NamespaceValues))
}

func TestRun_PerTargetRetries(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	one := 1
	a := target("a")
	a.Retries = &one
	bc := m.context(t, []domain.Target{a}, buildctx.Options{})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom).Times(2)

	require.Error(t, scheduler.New(bc).Run(context.Background(), bc.Graph))
}

func TestRun_TransportErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	retries := 3
	bc := m.context(t, []domain.Target{target("a"), target("b")}, buildctx.Options{
		Retries:   &retries,
		KeepGoing: true,
	})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).
		Return(domain.Outcome{}, zerr.Wrap(domain.ErrTransport, "connection refused")).Times(1)

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, []string{"a"}, bc.Report.Failed)
	assert.Equal(t, []string{"b"}, bc.Report.Cancelled)
}

func TestRun_KeepGoing(t *testing.T) {
	t.Parallel()

	for _, strategy := range []string{"sequential", "pool"} {
		t.Run(strategy, func(t *testing.T) {
			t.Parallel()
			m := setupSchedulerTest(t)
			bc := m.context(t, []domain.Target{
				target("a"),
				target("b", "a"),
				target("c", "b"),
				target("d"),
			}, buildctx.Options{Strategy: strategy, Jobs: 2, KeepGoing: true})

			m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom)
			m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("d")).Return(domain.Outcome{Value: "ok"}, nil)

			err := scheduler.New(bc).Run(context.Background(), bc.Graph)
			require.ErrorIs(t, err, domain.ErrBuildFailed)

			assert.Equal(t, []string{"a"}, bc.Report.Failed)
			assert.ElementsMatch(t, []string{"b", "c"}, bc.Report.Skipped)
			assert.Equal(t, []string{"d"}, bc.Report.Succeeded)
			assert.Empty(t, bc.Report.Cancelled)
			assert.Equal(t, domain.StatusSkipped, status(t, m.store, "c").Status)
		})
	}
}

func TestRun_AbortCancelsRemaining(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{
		target("a"),
		target("b", "a"),
		target("c"),
	}, buildctx.Options{})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom)

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrBuildFailed)

	assert.Equal(t, []string{"a"}, bc.Report.Failed)
	assert.ElementsMatch(t, []string{"b", "c"}, bc.Report.Cancelled)
	assert.Equal(t, domain.StatusCancelled, status(t, m.store, "c").Status)
}

func TestRun_PoolAbortCancelsInFlight(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{target("a"), target("slow")}, buildctx.Options{Strategy: "pool", Jobs: 2})

	started := make(chan struct{})
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("slow")).DoAndReturn(
		func(ctx context.Context, _ *domain.Invocation) (domain.Outcome, error) {
			close(started)
			<-ctx.Done()
			return domain.Outcome{}, ctx.Err()
		})
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).DoAndReturn(
		func(context.Context, *domain.Invocation) (domain.Outcome, error) {
			<-started
			return domain.Outcome{}, errBoom
		})

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrBuildFailed)
	assert.Equal(t, []string{"a"}, bc.Report.Failed)
	assert.Equal(t, []string{"slow"}, bc.Report.Cancelled)
}

func TestRun_ReadAfterWrite(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{
		target("a"),
		target("b"),
		target("sum", "a", "b"),
	}, buildctx.Options{Strategy: "pool", Jobs: 4})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{Value: int64(1)}, nil)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("b")).Return(domain.Outcome{Value: int64(2)}, nil)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("sum")).DoAndReturn(
		func(_ context.Context, inv *domain.Invocation) (domain.Outcome, error) {
			for _, dep := range []string{"a", "b"} {
				assert.True(t, m.store.Exists(dep, domain.NamespaceValues))
				assert.True(t, m.store.Exists(dep, domain.NamespaceFingerprints))
			}
			assert.Equal(t, map[string]any{"a": int64(1), "b": int64(2)}, inv.Inputs)
			return domain.Outcome{Value: int64(3)}, nil
		})

	require.NoError(t, scheduler.New(bc).Run(context.Background(), bc.Graph))
	assert.Len(t, bc.Report.Succeeded, 3)
	assert.Equal(t, "sum", bc.Report.Succeeded[2])
}

func TestRun_UpToDateDependencyLoadedFromCache(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	targets := []domain.Target{target("a"), target("b", "a")}

	first := m.context(t, targets, buildctx.Options{})
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{Value: int64(1)}, nil)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("b")).Return(domain.Outcome{Value: int64(2)}, nil)
	require.NoError(t, scheduler.New(first).Run(context.Background(), first.Graph))

	targets[1].Command = "a + 10"
	second := m.context(t, targets, buildctx.Options{})
	stale, err := outdated.Compute(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, stale.Names())

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("b")).DoAndReturn(
		func(_ context.Context, inv *domain.Invocation) (domain.Outcome, error) {
			assert.Equal(t, int64(1), inv.Inputs["a"])
			return domain.Outcome{Value: int64(11)}, nil
		})
	require.NoError(t, scheduler.New(second).Run(context.Background(), stale))

	now, err := outdated.Compute(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, now.Empty())
}

func TestRun_ElapsedCap(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{Elapsed: 20 * time.Millisecond})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).DoAndReturn(
		func(ctx context.Context, _ *domain.Invocation) (domain.Outcome, error) {
			<-ctx.Done()
			return domain.Outcome{}, ctx.Err()
		})

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrResourceCapExceeded)
	assert.Equal(t, []string{"a"}, bc.Report.Failed)
}

func TestRun_CPUCap(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{CPU: time.Second})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{Value: 1, CPU: 2 * time.Second}, nil)

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrResourceCapExceeded)
	assert.False(t, m.store.Exists("a", domain.NamespaceValues))
}

func TestRun_BackoffBetweenAttempts(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		m := setupSchedulerTest(t)
		retries := 2
		bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{
			Retries:      &retries,
			Backoff:      "exponential",
			BackoffDelay: time.Second,
		})

		var calls []time.Time
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).DoAndReturn(
			func(context.Context, *domain.Invocation) (domain.Outcome, error) {
				calls = append(calls, time.Now())
				return domain.Outcome{}, errBoom
			}).Times(3)

		require.Error(t, scheduler.New(bc).Run(context.Background(), bc.Graph))
		require.Len(t, calls, 3)
		assert.Equal(t, time.Second, calls[1].Sub(calls[0]))
		assert.Equal(t, 2*time.Second, calls[2].Sub(calls[1]))
	})
}

func TestRun_ScopesLockedDuringBuild(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).DoAndReturn(
		func(_ context.Context, inv *domain.Invocation) (domain.Outcome, error) {
			if err := inv.Scope.Set("leak", true); err != nil {
				return domain.Outcome{}, err
			}
			return domain.Outcome{Value: 1}, nil
		})

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrScopeLocked)
	assert.False(t, bc.TargetScope.Has("leak"))
}

func TestRun_ScopesUnlocked(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{NoLockScopes: true})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).DoAndReturn(
		func(_ context.Context, inv *domain.Invocation) (domain.Outcome, error) {
			return domain.Outcome{Value: 1}, inv.Scope.Set("leak", true)
		})

	require.NoError(t, scheduler.New(bc).Run(context.Background(), bc.Graph))
	assert.True(t, bc.TargetScope.Has("leak"))
}

func TestRun_Distributed(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, []domain.Target{target("a"), target("b", "a")}, buildctx.Options{Strategy: "distributed", Jobs: 2})

	m.queue.EXPECT().Submit(gomock.Any(), byName("a")).Return(domain.Outcome{Value: int64(1)}, nil)
	m.queue.EXPECT().Submit(gomock.Any(), byName("b")).Return(domain.Outcome{Value: int64(2)}, nil)

	require.NoError(t, scheduler.New(bc).Run(context.Background(), bc.Graph))
	assert.Equal(t, []string{"a", "b"}, bc.Report.Succeeded)
}

func TestRun_External(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)

	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any()).Times(1)
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	m.logger = logger

	var calls atomic.Int32
	backend := func(ctx context.Context, bc *buildctx.Context, g *domain.Graph) error {
		calls.Add(1)
		runner := scheduler.NewRunner(bc)
		for t := range g.Walk() {
			if err := runner.Build(ctx, &t); err != nil {
				return err
			}
		}
		return nil
	}
	bc := m.context(t, []domain.Target{target("a")}, buildctx.Options{Strategy: "external", External: backend})
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{Value: 1}, nil).Times(2)

	d := scheduler.New(bc)
	require.NoError(t, d.Run(context.Background(), bc.Graph))
	require.NoError(t, d.Run(context.Background(), bc.Graph))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_ReportsMetrics(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	ctrl := gomock.NewController(t)
	collector := mocks.NewMockMetrics(ctrl)

	retries := 1
	plan := &domain.Plan{Root: m.root, Language: "cel", Targets: []domain.Target{target("a"), target("b", "a")}}
	bc, err := buildctx.New(plan, buildctx.Deps{
		Cache:     m.store,
		Evaluator: m.evaluator,
		Files:     fs.NewInspector(fs.NewHasher(fs.NewWalker())),
		Logger:    m.logger,
		Metrics:   collector,
	}, buildctx.Options{WorkDir: m.root, Retries: &retries, Backoff: "none"})
	require.NoError(t, err)

	gomock.InOrder(
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{}, errBoom),
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("a")).Return(domain.Outcome{Value: int64(1)}, nil),
		m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("b")).Return(domain.Outcome{Value: int64(2)}, nil),
	)
	collector.EXPECT().SetOutdated(2)
	collector.EXPECT().ObserveAttempt(true)
	collector.EXPECT().ObserveAttempt(false).Times(2)
	collector.EXPECT().ObserveTarget(string(domain.StatusDone), gomock.Any()).Times(2)

	require.NoError(t, scheduler.New(bc).Run(context.Background(), bc.Graph))
}
