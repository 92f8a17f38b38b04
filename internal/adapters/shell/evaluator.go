// Package shell evaluates target commands with the system shell.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

// Language is the identifier targets use to select this evaluator.
const Language = "sh"

// waitDelay bounds how long output pipes are drained after a cancelled command exits.
const waitDelay = 500 * time.Millisecond

const (
	// EnvTarget names the target being built.
	EnvTarget = "MALLARD_TARGET"
	// EnvAttempt carries the 1-based attempt number.
	EnvAttempt = "MALLARD_ATTEMPT"
	// EnvExports points at a file where the command may write name=value bindings.
	EnvExports = "MALLARD_EXPORTS"
)

var _ ports.Evaluator = (*Evaluator)(nil)

// Evaluator implements ports.Evaluator by running commands through `sh -c`.
//
// Dependency values are passed as environment variables named after the dependency:
// strings verbatim, everything else JSON encoded. Standard output is the value;
// output that parses as JSON is decoded, anything else is kept as a trimmed string.
// Standard error is streamed to the logger.
type Evaluator struct {
	logger ports.Logger
	shell  string
}

// New creates a shell evaluator.
func New(logger ports.Logger) *Evaluator {
	return &Evaluator{logger: logger, shell: "/bin/sh"}
}

// Evaluate runs one attempt of inv.
func (e *Evaluator) Evaluate(ctx context.Context, inv *domain.Invocation) (domain.Outcome, error) {
	exports, err := os.CreateTemp("", "mallard-exports-*")
	if err != nil {
		return domain.Outcome{}, zerr.Wrap(domain.ErrStorage, err.Error())
	}
	exportsPath := exports.Name()
	_ = exports.Close()
	defer func() { _ = os.Remove(exportsPath) }()

	env, err := environment(inv, exportsPath)
	if err != nil {
		return domain.Outcome{}, zerr.With(err, "target", inv.Name)
	}

	var stdout bytes.Buffer
	stderr := &logWriter{logger: e.logger, prefix: inv.Name + ": "}

	cmd := exec.CommandContext(ctx, e.shell, "-c", inv.Command) //nolint:gosec // user provided command
	cmd.Dir = inv.Dir
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()
	stderr.flush()

	cpu := cpuTime(cmd)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Outcome{CPU: cpu}, ctxErr
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		err := zerr.With(zerr.Wrap(domain.ErrEvaluationFailed, runErr.Error()), "exit_code", exitCode)
		return domain.Outcome{CPU: cpu}, zerr.With(err, "target", inv.Name)
	}

	if err := applyExports(exportsPath, inv.Scope); err != nil {
		return domain.Outcome{CPU: cpu}, zerr.With(err, "target", inv.Name)
	}

	return domain.Outcome{Value: parseValue(stdout.Bytes()), CPU: cpu}, nil
}

func cpuTime(cmd *exec.Cmd) time.Duration {
	if cmd.ProcessState == nil {
		return 0
	}
	return cmd.ProcessState.UserTime() + cmd.ProcessState.SystemTime()
}

// environment builds the command environment from the process environment and inv.
func environment(inv *domain.Invocation, exportsPath string) ([]string, error) {
	envMap := make(map[string]string)
	for _, entry := range os.Environ() {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	for name, value := range inv.Inputs {
		encoded, err := encodeValue(value)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrEvaluationFailed, err.Error()), "dependency", name)
		}
		envMap[name] = encoded
	}
	envMap[EnvTarget] = inv.Name
	envMap[EnvAttempt] = fmt.Sprint(inv.Attempt)
	envMap[EnvExports] = exportsPath

	result := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		result = append(result, k+"="+envMap[k])
	}
	return result, nil
}

func encodeValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseValue decodes command output. Integral JSON numbers become int64.
func parseValue(out []byte) any {
	trimmed := bytes.TrimSpace(out)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(trimmed)
	}
	return normalizeNumbers(v)
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
		return x
	default:
		return v
	}
}

// applyExports binds every name=value line of the exports file into scope.
// Bindings go through Scope.Set so a locked scope rejects new names.
func applyExports(path string, scope *domain.Scope) error {
	if scope == nil {
		return nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		if err := scope.Set(strings.TrimSpace(name), parseValue([]byte(value))); err != nil {
			return err
		}
	}
	return nil
}

// logWriter forwards complete lines to the logger.
type logWriter struct {
	logger ports.Logger
	prefix string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Info(w.prefix + string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *logWriter) flush() {
	if len(w.buf) > 0 {
		w.logger.Info(w.prefix + string(w.buf))
		w.buf = nil
	}
}
