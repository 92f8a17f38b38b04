package linear_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/adapters/linear"
)

func TestRenderer_TargetLifecycle(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)
	require.NoError(t, r.Start(context.Background()))

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.OnPlanEmit([]string{"raw", "model"}, map[string][]string{"model": {"raw"}})
	r.OnTargetStart("span1", "raw", start)
	r.OnTargetLog("span1", []byte("first line\nsecond "))
	r.OnTargetLog("span1", []byte("line\n"))
	r.OnTargetComplete("span1", start.Add(120*time.Millisecond), nil)
	r.OnTargetStart("span2", "model", start)
	r.OnTargetLog("span2", []byte("partial"))
	r.OnTargetComplete("span2", start.Add(2*time.Second), errors.New("exit status 1"))
	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())

	g := goldie.New(t)
	g.Assert(t, "lifecycle_stderr", stderr.Bytes())
	g.Assert(t, "lifecycle_stdout", stdout.Bytes())
}

func TestRenderer_UnknownSpan(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnTargetLog("missing", []byte("ignored\n"))
	r.OnTargetComplete("missing", time.Now(), nil)
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderer_StopFlushesPartialLines(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnTargetStart("span1", "raw", time.Now())
	r.OnTargetLog("span1", []byte("no newline"))
	assert.Empty(t, stdout.String())

	require.NoError(t, r.Stop())
	assert.Equal(t, "[raw] no newline\n", stdout.String())
}
