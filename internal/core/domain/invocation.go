package domain

import "time"

// Invocation is one attempt at evaluating a command with concrete dependency values.
type Invocation struct {
	Name     string         `json:"name"`
	Command  string         `json:"command"`
	Language string         `json:"language"`
	Inputs   map[string]any `json:"inputs"`
	Attempt  int            `json:"attempt"`
	// Dir is the plan root commands run in.
	Dir string `json:"dir,omitempty"`
	// Scope receives side-effect bindings made by the command. It is nil on remote workers.
	Scope *Scope `json:"-"`
}

// Outcome is the result of a successful evaluation.
type Outcome struct {
	Value any `json:"value"`
	// CPU is the processor time consumed, when the evaluator can measure it.
	CPU time.Duration `json:"cpu"`
}
