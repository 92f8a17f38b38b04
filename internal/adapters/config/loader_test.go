package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/adapters/config"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	return config.NewLoader(log)
}

func writePlan(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const yamlPlan = `
version: "1"
language: cel
settings:
  strategy: pool
  jobs: 4
  retries: 2
  backoff: exponential
  backoffDelay: 50ms
  timeout: 30s
  keepGoing: true
  lockScopes: false
  trigger: [command, depend]
prework:
  seed: "42"
imports:
  helper:
    command: "'h'"
    language: cel
targets:
  raw:
    command: "[1, 2, 3]"
  data:
    command: raw.size()
    dependsOn: [raw, helper]
    files: [b.csv, a.csv, a.csv]
  model:
    command: raw * 2
    dependsOn: [raw]
    mapOver: raw
    retries: 1
    trigger: [always]
`

func TestLoader_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, domain.PlanFileName, yamlPlan)

	plan, err := newLoader(t).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, plan.Root)
	assert.Equal(t, "cel", plan.Language)

	s := plan.Settings
	assert.Equal(t, "pool", s.Strategy)
	assert.Equal(t, 4, s.Jobs)
	assert.Equal(t, 2, s.Retries)
	assert.Equal(t, "exponential", s.Backoff)
	assert.Equal(t, 50*time.Millisecond, s.BackoffDelay)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.True(t, s.KeepGoing)
	assert.True(t, s.NoLockScopes)
	assert.Equal(t, []string{"command", "depend"}, s.Trigger)

	require.Len(t, plan.Prework, 1)
	assert.Equal(t, domain.Binding{Name: "seed", Command: "42"}, plan.Prework[0])
	require.Len(t, plan.Imports, 1)
	assert.Equal(t, domain.Binding{Name: "helper", Command: "'h'", Language: "cel"}, plan.Imports[0])

	require.Len(t, plan.Targets, 3)
	names := make([]string, 0, len(plan.Targets))
	for _, tgt := range plan.Targets {
		names = append(names, tgt.Name.String())
	}
	assert.Equal(t, []string{"raw", "data", "model"}, names)

	data := plan.Targets[1]
	assert.Equal(t, []string{"raw", "helper"}, domain.Strings(data.Dependencies))
	assert.Equal(t, []string{"a.csv", "b.csv"}, domain.Strings(data.Files))
	assert.Nil(t, data.Trigger)
	assert.Nil(t, data.Retries)

	model := plan.Targets[2]
	assert.True(t, model.Dynamic())
	require.NotNil(t, model.Retries)
	assert.Equal(t, 1, *model.Retries)
	require.NotNil(t, model.Trigger)
	assert.True(t, model.Trigger(&domain.Fingerprint{}, &domain.Fingerprint{}))

	g, err := plan.Graph()
	require.NoError(t, err)
	assert.Equal(t, 3, g.TargetCount())
}

func TestLoader_LoadHCL(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, domain.PlanFileNameHCL, `
language = "cel"

settings {
  strategy   = "sequential"
  retries    = 1
  timeout    = "5s"
  keep_going = true
}

prework "seed" {
  command = "1"
}

import "helper" {
  command = "2"
}

target "a" {
  command = "helper + 1"
  depends_on = ["helper"]
}

target "b" {
  command    = "a * 2"
  depends_on = ["a"]
  files      = ["input.txt"]
  retries    = 3
}
`)

	plan, err := newLoader(t).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sequential", plan.Settings.Strategy)
	assert.Equal(t, 1, plan.Settings.Retries)
	assert.Equal(t, 5*time.Second, plan.Settings.Timeout)
	assert.True(t, plan.Settings.KeepGoing)
	assert.False(t, plan.Settings.NoLockScopes)

	require.Len(t, plan.Prework, 1)
	require.Len(t, plan.Imports, 1)
	require.Len(t, plan.Targets, 2)
	assert.Equal(t, "a", plan.Targets[0].Name.String())
	assert.Equal(t, []string{"input.txt"}, domain.Strings(plan.Targets[1].Files))
	require.NotNil(t, plan.Targets[1].Retries)
	assert.Equal(t, 3, *plan.Targets[1].Retries)
}

func TestLoader_Discovery(t *testing.T) {
	root := t.TempDir()
	writePlan(t, root, domain.PlanFileName, "targets:\n  a:\n    command: \"1\"\n")
	nested := filepath.Join(root, "sub", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	plan, err := newLoader(t).Load(nested)
	require.NoError(t, err)
	assert.Equal(t, root, plan.Root)
}

func TestLoader_ConfiguredRoot(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, domain.PlanFileNameAlt, "root: project\ntargets:\n  a:\n    command: \"1\"\n")

	plan, err := newLoader(t).Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "project"), plan.Root)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{
			name:    "invalid yaml",
			file:    domain.PlanFileName,
			content: "targets: [",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name:    "bad duration",
			file:    domain.PlanFileName,
			content: "settings:\n  timeout: soon\n",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name:    "unknown trigger",
			file:    domain.PlanFileName,
			content: "targets:\n  a:\n    command: \"1\"\n    trigger: [sometimes]\n",
			wantErr: domain.ErrUnknownTrigger,
		},
		{
			name:    "invalid import name",
			file:    domain.PlanFileName,
			content: "imports:\n  bad-name: \"1\"\n",
			wantErr: domain.ErrInvalidTargetName,
		},
		{
			name:    "invalid hcl",
			file:    domain.PlanFileNameHCL,
			content: "target \"a\" {",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name:    "duplicate hcl target",
			file:    domain.PlanFileNameHCL,
			content: "target \"a\" {\n  command = \"1\"\n}\ntarget \"a\" {\n  command = \"2\"\n}\n",
			wantErr: domain.ErrTargetAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePlan(t, dir, tt.file, tt.content)

			_, err := newLoader(t).Load(dir)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoader_NotFound(t *testing.T) {
	_, err := newLoader(t).Load(t.TempDir())
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}
