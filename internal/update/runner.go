// Package update runs the configured update command in the background.
package update

import (
	"context"
	"fmt"
	"time"

	"updatehook/internal/config"
	"updatehook/pkg/cmdutil"
)

// Result represents the outcome of one update run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// OK checks if the update exited successfully.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// Runner executes the update action. Implementations must be safe for
// concurrent use; overlapping runs are not serialized.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// ExecutionError is returned by ScriptRunner when the update command could
// not be started, exited non-zero, or timed out.
type ExecutionError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("update command %q exited with code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ScriptRunner runs a fixed command line. No data from the triggering
// request ever reaches the command.
type ScriptRunner struct {
	Command []string
	Dir     string
	Timeout time.Duration

	// Secrets are redacted from captured output before it is returned.
	Secrets []string
}

// NewScriptRunner builds a ScriptRunner from the listener configuration.
func NewScriptRunner(cfg *config.Config) (*ScriptRunner, error) {
	command, err := cfg.CommandLine()
	if err != nil {
		return nil, fmt.Errorf("invalid update command: %w", err)
	}

	runner := &ScriptRunner{
		Command: command,
		Timeout: cfg.UpdateTimeoutDuration(),
	}
	if cfg.SignatureRequired() {
		runner.Secrets = []string{cfg.Secret}
	}
	return runner, nil
}

// String returns the shell-quoted command line for logging.
func (s *ScriptRunner) String() string {
	return cmdutil.FormatCommand(s.Command)
}

// Run executes the command and waits for it to exit.
func (s *ScriptRunner) Run(ctx context.Context) (*Result, error) {
	res, err := cmdutil.Run(ctx, cmdutil.ExecOptions{
		Dir:     s.Dir,
		Timeout: s.Timeout,
	}, s.Command)

	result := &Result{ExitCode: -1}
	if res != nil {
		result.Stdout = string(cmdutil.SanitizeOutput(res.Stdout, s.Secrets))
		result.Stderr = string(cmdutil.SanitizeOutput(res.Stderr, s.Secrets))
		result.ExitCode = res.ExitCode
		result.Duration = res.Duration
	}

	if err != nil {
		return result, &ExecutionError{
			Command:  s.String(),
			ExitCode: result.ExitCode,
			Err:      err,
		}
	}
	return result, nil
}
