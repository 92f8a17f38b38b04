package config

import (
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Planfile represents the structure of the mallard.yaml plan file.
type Planfile struct {
	Version  string              `yaml:"version"`
	Root     string              `yaml:"root"`
	Language string              `yaml:"language"`
	Settings SettingsDTO         `yaml:"settings"`
	Prework  ordered[BindingDTO] `yaml:"prework"`
	Imports  ordered[BindingDTO] `yaml:"imports"`
	Targets  ordered[TargetDTO]  `yaml:"targets"`
}

// SettingsDTO holds scheduling defaults. Durations use time.ParseDuration syntax.
type SettingsDTO struct {
	Strategy       string   `yaml:"strategy"       hcl:"strategy,optional"`
	Jobs           int      `yaml:"jobs"           hcl:"jobs,optional"`
	Retries        int      `yaml:"retries"        hcl:"retries,optional"`
	Backoff        string   `yaml:"backoff"        hcl:"backoff,optional"`
	BackoffDelay   string   `yaml:"backoffDelay"   hcl:"backoff_delay,optional"`
	Timeout        string   `yaml:"timeout"        hcl:"timeout,optional"`
	Elapsed        string   `yaml:"elapsed"        hcl:"elapsed,optional"`
	CPU            string   `yaml:"cpu"            hcl:"cpu,optional"`
	KeepGoing      bool     `yaml:"keepGoing"      hcl:"keep_going,optional"`
	LockScopes     *bool    `yaml:"lockScopes"     hcl:"lock_scopes,optional"`
	GarbageCollect bool     `yaml:"garbageCollect" hcl:"garbage_collect,optional"`
	Trigger        []string `yaml:"trigger"        hcl:"trigger,optional"`
	Workers        []string `yaml:"workers"        hcl:"workers,optional"`
}

// BindingDTO represents a prework or import binding.
// A bare string is accepted as the command.
type BindingDTO struct {
	Command  string `yaml:"command"`
	Language string `yaml:"language"`
}

// UnmarshalYAML accepts either a scalar command or a mapping.
func (b *BindingDTO) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Command = node.Value
		return nil
	}
	type plain BindingDTO
	return node.Decode((*plain)(b))
}

// TargetDTO represents a target definition in the plan file.
type TargetDTO struct {
	Command   string   `yaml:"command"`
	Language  string   `yaml:"language"`
	DependsOn []string `yaml:"dependsOn"`
	Files     []string `yaml:"files"`
	Trigger   []string `yaml:"trigger"`
	MapOver   string   `yaml:"mapOver"`
	Retries   *int     `yaml:"retries"`
}

// entry is one key of a mapping, kept in declaration order.
type entry[T any] struct {
	Name  string
	Value T
}

// ordered decodes a YAML mapping while preserving key order.
type ordered[T any] []entry[T]

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return zerr.With(zerr.New("expected a mapping"), "line", node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return domain.Detail(domain.ErrTargetAlreadyExists, "target", name)
		}
		seen[name] = true

		var value T
		if err := node.Content[i+1].Decode(&value); err != nil {
			return err
		}
		*o = append(*o, entry[T]{Name: name, Value: value})
	}
	return nil
}

// hclPlanfile represents the structure of the mallard.hcl plan file.
type hclPlanfile struct {
	Root     string        `hcl:"root,optional"`
	Language string        `hcl:"language,optional"`
	Settings *SettingsDTO  `hcl:"settings,block"`
	Prework  []*hclBinding `hcl:"prework,block"`
	Imports  []*hclBinding `hcl:"import,block"`
	Targets  []*hclTarget  `hcl:"target,block"`
}

type hclBinding struct {
	Name     string `hcl:"name,label"`
	Command  string `hcl:"command"`
	Language string `hcl:"language,optional"`
}

type hclTarget struct {
	Name      string   `hcl:"name,label"`
	Command   string   `hcl:"command"`
	Language  string   `hcl:"language,optional"`
	DependsOn []string `hcl:"depends_on,optional"`
	Files     []string `hcl:"files,optional"`
	Trigger   []string `hcl:"trigger,optional"`
	MapOver   string   `hcl:"map_over,optional"`
	Retries   *int     `hcl:"retries,optional"`
}
