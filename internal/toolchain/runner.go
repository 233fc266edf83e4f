package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ErrToolMissing = errors.New("toolchain: tool not installed")

// Runner executes external tools and streams their output to the logger.
type Runner struct {
	Log *zap.Logger
	Dir string
	Env []string // appended to the current environment

	// LookPath resolves tool names; exec.LookPath when nil.
	LookPath func(string) (string, error)
}

func NewRunner(log *zap.Logger) *Runner { return &Runner{Log: log} }

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) resolve(name string) (string, error) {
	look := r.LookPath
	if look == nil {
		look = exec.LookPath
	}
	p, err := look(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrToolMissing)
	}
	return p, nil
}

func (r *Runner) command(ctx context.Context, name string, args []string) (*exec.Cmd, error) {
	path, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	return cmd, nil
}

// Run executes name with args. Stdout lines are logged at info, stderr
// lines at warn.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	cmd, err := r.command(ctx, name, args)
	if err != nil {
		return err
	}
	log := r.log().With(zap.String("tool", name))
	log.Debug("exec", zap.Strings("args", args))
	out := &lineLogger{log: log, warn: false}
	errw := &lineLogger{log: log, warn: true}
	cmd.Stdout, cmd.Stderr = out, errw
	err = cmd.Run()
	out.Flush()
	errw.Flush()
	if err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// Output executes name and returns its trimmed stdout.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd, err := r.command(ctx, name, args)
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	b, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(b)), nil
}

// lineLogger logs every complete line written to it.
type lineLogger struct {
	mu   sync.Mutex
	log  *zap.Logger
	warn bool
	buf  []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.emit(string(bytes.TrimRight(l.buf[:i], "\r")))
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) > 0 {
		l.emit(string(l.buf))
		l.buf = nil
	}
}

func (l *lineLogger) emit(line string) {
	if line == "" {
		return
	}
	if l.warn {
		l.log.Warn(line)
	} else {
		l.log.Info(line)
	}
}
