// Package config loads mallard plan files written in YAML or HCL.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.PlanLoader = (*Loader)(nil)

// planFileNames lists the recognized plan files in order of preference.
var planFileNames = []string{domain.PlanFileName, domain.PlanFileNameAlt, domain.PlanFileNameHCL}

// Loader implements ports.PlanLoader.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load finds the nearest plan file at or above cwd and returns the plan it describes.
func (l *Loader) Load(cwd string) (*domain.Plan, error) {
	path, err := l.findPlanFile(cwd)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(path)
}

// LoadFile reads the plan file at path. The format follows the file extension.
func (l *Loader) LoadFile(path string) (*domain.Plan, error) {
	// #nosec G304 -- path is discovered or provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", path)
	}

	var file *Planfile
	if filepath.Ext(path) == ".hcl" {
		file, err = decodeHCL(path, data)
	} else {
		file, err = decodeYAML(data)
	}
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}

	plan, err := file.plan(resolveRoot(path, file.Root))
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	if l.Logger != nil {
		l.Logger.Debug("loaded plan from " + path)
	}
	return plan, nil
}

func (l *Loader) findPlanFile(cwd string) (string, error) {
	currentDir := cwd
	for {
		for _, name := range planFileNames {
			candidate := filepath.Join(currentDir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}
	return "", domain.Detail(domain.ErrConfigNotFound, "cwd", cwd)
}

func decodeYAML(data []byte) (*Planfile, error) {
	var file Planfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(domain.ErrConfigParseFailed, err.Error())
	}
	return &file, nil
}

// plan converts the decoded file into a domain plan rooted at root.
func (f *Planfile) plan(root string) (*domain.Plan, error) {
	settings, err := f.Settings.settings()
	if err != nil {
		return nil, err
	}

	p := &domain.Plan{
		Root:     root,
		Language: f.Language,
		Settings: settings,
		Targets:  make([]domain.Target, 0, len(f.Targets)),
	}
	for _, e := range f.Prework {
		p.Prework = append(p.Prework, domain.Binding{Name: e.Name, Command: e.Value.Command, Language: e.Value.Language})
	}
	for _, e := range f.Imports {
		if err := domain.ValidateName(e.Name); err != nil {
			return nil, err
		}
		p.Imports = append(p.Imports, domain.Binding{Name: e.Name, Command: e.Value.Command, Language: e.Value.Language})
	}

	for _, e := range f.Targets {
		t, err := e.Value.target(e.Name)
		if err != nil {
			return nil, err
		}
		p.Targets = append(p.Targets, t)
	}
	return p, nil
}

func (dto *TargetDTO) target(name string) (domain.Target, error) {
	t := domain.Target{
		Name:         domain.NewInternedString(name),
		Command:      dto.Command,
		Language:     dto.Language,
		Dependencies: domain.NewInternedStrings(dto.DependsOn),
		Files:        canonicalizeStrings(dto.Files),
		Retries:      dto.Retries,
	}
	if dto.MapOver != "" {
		t.MapOver = domain.NewInternedString(dto.MapOver)
	}
	if len(dto.Trigger) > 0 {
		trigger, err := domain.ParseTrigger(dto.Trigger)
		if err != nil {
			return domain.Target{}, zerr.With(err, "target", name)
		}
		t.Trigger = trigger
	}
	return t, nil
}

func (dto *SettingsDTO) settings() (domain.Settings, error) {
	s := domain.Settings{
		Strategy:       dto.Strategy,
		Jobs:           dto.Jobs,
		Retries:        dto.Retries,
		Backoff:        dto.Backoff,
		KeepGoing:      dto.KeepGoing,
		NoLockScopes:   dto.LockScopes != nil && !*dto.LockScopes,
		GarbageCollect: dto.GarbageCollect,
		Trigger:        dto.Trigger,
		Workers:        dto.Workers,
	}
	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"backoffDelay", dto.BackoffDelay, &s.BackoffDelay},
		{"timeout", dto.Timeout, &s.Timeout},
		{"elapsed", dto.Elapsed, &s.Elapsed},
		{"cpu", dto.CPU, &s.CPU},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return domain.Settings{}, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "setting", d.field)
		}
		*d.dst = v
	}
	if _, err := domain.ParseTrigger(s.Trigger); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	if len(strs) == 0 {
		return nil
	}
	sorted := slices.Clone(strs)
	slices.Sort(sorted)
	return domain.NewInternedStrings(slices.Compact(sorted))
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}
