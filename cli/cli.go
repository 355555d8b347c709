// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli adapts command-line agent programs to the A2A protocol.
//
// Each call runs the configured binary once, passing the message text as
// the final argument or on stdin, and reads the reply from stdout.
// Subprocess failures are mapped onto the dispatch error taxonomy: usage
// errors and unstartable binaries are caller faults, other non-zero exits
// are transient, and a kill by the time budget is a timeout.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/adapter"
)

// DefaultTimeout is the default per-attempt time budget for subprocess
// agents, which routinely run far longer than HTTP calls.
const DefaultTimeout = 5 * time.Minute

// usageExitCode is the conventional exit status for command-line usage
// errors. Such failures are caller faults and are never retried.
const usageExitCode = 2

// options holds the configuration for an [Adapter].
type options struct {
	command    string
	args       []string
	dir        string
	env        map[string]string
	stdin      bool
	asyncMode  bool
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// defaultOptions returns the default adapter configuration. Subprocess
// calls are not retried by default: rerunning an agent process is rarely
// safe to repeat blindly.
func defaultOptions() *options {
	return &options{
		timeout:    DefaultTimeout,
		maxRetries: 0,
		backoff:    adapter.DefaultBackoff,
	}
}

// Option configures an [Adapter].
type Option func(*options) error

// WithCommand sets the agent binary to run.
func WithCommand(command string) Option {
	return func(o *options) error {
		if command == "" {
			return &adapter.ValidationError{Field: "command", Message: "command cannot be empty"}
		}
		o.command = command
		return nil
	}
}

// WithArgs sets the fixed arguments passed before the message text.
func WithArgs(args ...string) Option {
	return func(o *options) error {
		o.args = args
		return nil
	}
}

// WithDir sets the working directory the agent runs in.
func WithDir(dir string) Option {
	return func(o *options) error {
		o.dir = dir
		return nil
	}
}

// WithEnv sets extra environment variables for the agent, merged over the
// parent environment.
func WithEnv(env map[string]string) Option {
	return func(o *options) error {
		o.env = env
		return nil
	}
}

// WithStdin delivers the message text on the agent's stdin instead of as
// the final argument.
func WithStdin(enabled bool) Option {
	return func(o *options) error {
		o.stdin = enabled
		return nil
	}
}

// WithAsyncMode marks invocations as long-running, so the serving layer
// tracks them as tasks instead of blocking the caller.
func WithAsyncMode(enabled bool) Option {
	return func(o *options) error {
		o.asyncMode = enabled
		return nil
	}
}

// WithTimeout sets the per-attempt time budget.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &adapter.ValidationError{Field: "timeout", Message: "timeout must be positive"}
		}
		o.timeout = d
		return nil
	}
}

// WithMaxRetries sets the retry budget after the first attempt. Negative
// values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(o *options) error {
		o.maxRetries = n
		return nil
	}
}

// WithBackoff sets the base delay before the first retry.
func WithBackoff(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return &adapter.ValidationError{Field: "backoff", Message: "backoff cannot be negative"}
		}
		o.backoff = d
		return nil
	}
}

// WithLogger sets the logger for the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer sets the tracer for the adapter.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Adapter runs a command-line agent as the backend.
type Adapter struct {
	translator adapter.Translator
	dispatcher *adapter.Dispatcher
	caller     *execCaller
	asyncMode  bool
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a CLI adapter. The command option is required.
func New(opts ...Option) (*Adapter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.command == "" {
		return nil, &adapter.ValidationError{Field: "command", Message: "command is required"}
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	caller := &execCaller{
		command: o.command,
		args:    o.args,
		dir:     o.dir,
		env:     o.env,
		stdin:   o.stdin,
	}

	retry := adapter.RetryConfig{MaxRetries: o.maxRetries, Backoff: o.backoff}
	dispatcher := adapter.NewDispatcher(caller, retry, o.timeout).WithLogger(logger)
	if o.tracer != nil {
		dispatcher = dispatcher.WithTracer(o.tracer)
	}

	return &Adapter{
		translator: adapter.Translator{},
		dispatcher: dispatcher,
		caller:     caller,
		asyncMode:  o.asyncMode,
	}, nil
}

// Command returns the agent binary the adapter runs.
func (a *Adapter) Command() string {
	return a.caller.command
}

// ToBackend implements [adapter.Adapter].
func (a *Adapter) ToBackend(ctx context.Context, params *adapter.MessageSendParams) (*adapter.BackendRequest, error) {
	return &adapter.BackendRequest{Payload: a.translator.ToBackend(params)}, nil
}

// CallBackend implements [adapter.Adapter].
func (a *Adapter) CallBackend(ctx context.Context, req *adapter.BackendRequest) (*adapter.BackendResponse, error) {
	return a.dispatcher.Dispatch(ctx, req)
}

// FromBackend implements [adapter.Adapter].
func (a *Adapter) FromBackend(ctx context.Context, resp *adapter.BackendResponse) (*adapter.Message, error) {
	return a.translator.FromBackend(resp.Payload), nil
}

// SupportsStreaming implements [adapter.Adapter].
func (a *Adapter) SupportsStreaming() bool {
	return false
}

// SupportsAsyncTasks implements [adapter.Adapter].
func (a *Adapter) SupportsAsyncTasks() bool {
	return a.asyncMode
}

// Handle processes one inbound message synchronously.
func (a *Adapter) Handle(ctx context.Context, params *adapter.MessageSendParams) (*adapter.Message, error) {
	return adapter.Handle(ctx, a, params)
}

// Close marks the adapter closed. Further calls fail fast with
// [adapter.ErrClosed] until [Adapter.Reopen].
func (a *Adapter) Close() error {
	return a.dispatcher.Close()
}

// Reopen re-arms a closed adapter.
func (a *Adapter) Reopen() {
	a.dispatcher.Reopen()
}

// execCaller runs the agent binary once per attempt.
type execCaller struct {
	command string
	args    []string
	dir     string
	env     map[string]string
	stdin   bool

	mu     sync.Mutex
	closed bool
}

var _ adapter.Caller = (*execCaller)(nil)

// Call implements [adapter.Caller].
func (c *execCaller) Call(ctx context.Context, req *adapter.BackendRequest) (*adapter.BackendResponse, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, adapter.ErrClosed
	}

	text, _ := req.Payload[adapter.DefaultMessageField].(string)

	args := slices.Clone(c.args)
	if !c.stdin {
		args = append(args, text)
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Dir = c.dir
	cmd.Env = mergedEnv(c.env)
	if c.stdin {
		cmd.Stdin = strings.NewReader(text)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyExec(ctx, err, stderr.Bytes())
	}

	return &adapter.BackendResponse{
		Payload: map[string]any{"output": strings.TrimSpace(stdout.String())},
		Raw:     stdout.Bytes(),
	}, nil
}

// Close implements [adapter.Caller].
func (c *execCaller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Reopen re-arms the caller.
func (c *execCaller) Reopen() {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
}

// classifyExec maps a subprocess failure onto the dispatch error taxonomy.
func classifyExec(ctx context.Context, cmdErr error, stderr []byte) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &adapter.TimeoutError{Operation: "run"}
		}
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(cmdErr, &exitErr) {
		code := exitErr.ExitCode()
		status := 500
		if code == usageExitCode {
			status = 400
		}
		return &adapter.StatusError{
			Status: status,
			Body:   stderr,
			Reason: fmt.Sprintf("exit status %d", code),
		}
	}

	// the binary could not be started at all; retrying cannot help
	return &adapter.StatusError{
		Status: 400,
		Body:   stderr,
		Reason: cmdErr.Error(),
	}
}

// mergedEnv merges the extra variables over the parent environment. A nil
// result keeps the parent environment untouched.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}

	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
