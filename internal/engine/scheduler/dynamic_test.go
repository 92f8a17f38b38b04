package scheduler_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
	"go.trai.ch/mallard/internal/engine/outdated"
	"go.trai.ch/mallard/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

func dynamicTargets() []domain.Target {
	double := target("double", "xs")
	double.MapOver = domain.NewInternedString("xs")
	return []domain.Target{target("xs"), double}
}

// doubler evaluates the mapped element of a sub-target, counting calls per element.
func doubler(calls map[int64]int) func(context.Context, *domain.Invocation) (domain.Outcome, error) {
	return func(_ context.Context, inv *domain.Invocation) (domain.Outcome, error) {
		x := inv.Inputs["xs"].(int64)
		calls[x]++
		return domain.Outcome{Value: x * 2}, nil
	}
}

func isSubTarget(parent string) gomock.Matcher {
	return gomock.Cond(func(inv *domain.Invocation) bool { return strings.HasPrefix(inv.Name, parent+"_") })
}

func TestRun_DynamicTarget(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, dynamicTargets(), buildctx.Options{})

	calls := make(map[int64]int)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("xs")).Return(domain.Outcome{Value: []any{int64(1), int64(2), int64(3)}}, nil)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), isSubTarget("double")).DoAndReturn(doubler(calls)).Times(3)

	require.NoError(t, scheduler.New(bc).Run(context.Background(), bc.Graph))

	v, ok := bc.TargetScope.Get("double")
	require.True(t, ok)
	assert.Equal(t, []any{int64(2), int64(4), int64(6)}, v)
	assert.Equal(t, 3, bc.Tables.Size("double"))
	for _, sub := range bc.Tables.Members("double") {
		assert.True(t, bc.Tables.Exists(sub))
		assert.True(t, bc.DynamicScope.Has(sub))
		assert.True(t, m.store.Exists(sub, domain.NamespaceValues))
	}

	hash, err := m.store.HashValue(int64(1))
	require.NoError(t, err)
	assert.Contains(t, bc.Tables.Members("double"), scheduler.SubTargetName("double", hash))
}

func TestRun_DynamicTargetReusesUnchangedElements(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)

	first := m.context(t, dynamicTargets(), buildctx.Options{})
	calls := make(map[int64]int)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("xs")).Return(domain.Outcome{Value: []any{int64(1), int64(2)}}, nil)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), isSubTarget("double")).DoAndReturn(doubler(calls)).Times(2)
	require.NoError(t, scheduler.New(first).Run(context.Background(), first.Graph))

	targets := dynamicTargets()
	targets[0].Command = "xs v2"
	second := m.context(t, targets, buildctx.Options{})
	stale, err := outdated.Compute(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, []string{"xs", "double"}, stale.Names())

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("xs")).Return(domain.Outcome{Value: []any{int64(1), int64(2), int64(5)}}, nil)
	m.evaluator.EXPECT().Evaluate(gomock.Any(), isSubTarget("double")).DoAndReturn(doubler(calls)).Times(1)
	require.NoError(t, scheduler.New(second).Run(context.Background(), stale))

	assert.Equal(t, map[int64]int{1: 1, 2: 1, 5: 1}, calls)
	v, _ := second.TargetScope.Get("double")
	assert.Equal(t, []any{int64(2), int64(4), int64(10)}, v)

	fresh, err := outdated.Compute(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, fresh.Empty())
}

func TestRun_DynamicTargetRequiresList(t *testing.T) {
	t.Parallel()
	m := setupSchedulerTest(t)
	bc := m.context(t, dynamicTargets(), buildctx.Options{})

	m.evaluator.EXPECT().Evaluate(gomock.Any(), byName("xs")).Return(domain.Outcome{Value: "not a list"}, nil)

	err := scheduler.New(bc).Run(context.Background(), bc.Graph)
	require.ErrorIs(t, err, domain.ErrMapOverNotList)
	assert.Equal(t, []string{"double"}, bc.Report.Failed)
}
