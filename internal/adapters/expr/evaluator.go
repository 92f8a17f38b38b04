// Package expr evaluates target commands written as CEL expressions.
//
// Every dependency value is bound as a dynamically typed variable named after
// the dependency, so `raw.size()` reads the value of target `raw`.
package expr

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

// Language is the identifier targets use to select this evaluator.
const Language = "cel"

// interruptCheckFrequency is how many comprehension iterations run between context checks.
const interruptCheckFrequency = 100

var _ ports.Evaluator = (*Evaluator)(nil)

// Evaluator implements ports.Evaluator on cel-go.
// Compiled programs are cached per expression and variable set.
type Evaluator struct {
	mu       sync.Mutex
	programs map[string]cel.Program
}

// New creates a CEL evaluator.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]cel.Program)}
}

// Evaluate compiles inv.Command against the names of inv.Inputs and evaluates it.
// CPU is reported as the wall time of the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error) {
	names := slices.Sorted(maps.Keys(inv.Inputs))

	prg, err := e.program(inv.Command, names)
	if err != nil {
		return domain.Outcome{}, zerr.With(err, "target", inv.Name)
	}

	vars := make(map[string]any, len(inv.Inputs))
	maps.Copy(vars, inv.Inputs)

	start := time.Now()
	out, _, err := prg.ContextEval(ctx, vars)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Outcome{}, ctxErr
		}
		return domain.Outcome{}, zerr.With(zerr.Wrap(domain.ErrEvaluationFailed, err.Error()), "target", inv.Name)
	}

	value, err := GoNativeType(out)
	if err != nil {
		return domain.Outcome{}, zerr.With(zerr.Wrap(domain.ErrEvaluationFailed, err.Error()), "target", inv.Name)
	}
	return domain.Outcome{Value: value, CPU: elapsed}, nil
}

func (e *Evaluator) program(expression string, names []string) (cel.Program, error) {
	key := strings.Join(names, ",") + "\x00" + expression

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[key]; ok {
		return prg, nil
	}

	env, err := Environment(names...)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrEvaluationFailed, err.Error())
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrEvaluationFailed, issues.Err().Error()), "expression", expression)
	}
	prg, err := env.Program(ast, cel.InterruptCheckFrequency(interruptCheckFrequency))
	if err != nil {
		return nil, zerr.Wrap(domain.ErrEvaluationFailed, err.Error())
	}

	e.programs[key] = prg
	return prg, nil
}

// Environment returns the CEL environment with the given variables declared as dyn.
func Environment(variables ...string) (*cel.Env, error) {
	declarations := []cel.EnvOption{
		ext.Lists(),
		ext.Strings(),
		ext.Math(),
		ext.Encoders(),
		cel.OptionalTypes(),
	}
	for _, name := range variables {
		declarations = append(declarations, cel.Variable(name, cel.DynType))
	}
	return cel.NewEnv(declarations...)
}
