// Package sidecar runs an external model service (detector or embedder) as a
// child process and exchanges length-prefixed requests for JSON-line replies.
package sidecar

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// ErrScriptNotFound is returned when the service script cannot be located.
var ErrScriptNotFound = errors.New("sidecar script not found")

// DefaultIdleTimeout is how long an unused process is kept alive.
const DefaultIdleTimeout = 30 * time.Second

// Config describes how to launch a sidecar service.
type Config struct {
	// Script is the service script name or path. Relative names are searched
	// in scripts/, ../scripts/, next to the executable and under DataDir.
	Script string
	// Python is the interpreter. When empty a venv interpreter is used if
	// one is found, otherwise python3.
	Python string
	// DataDir is an extra search root for scripts and venvs.
	DataDir     string
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Process is a lazily started child process. Calls are serialized.
type Process struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
	log        *slog.Logger
}

// New resolves the script and returns a Process. The child is started on
// the first Call.
func New(config Config) (*Process, error) {
	path := findScript(config.Script, config.DataDir)
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, config.Script)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Process{
		config:     config,
		scriptPath: path,
		log:        log.With("sidecar", filepath.Base(path)),
	}, nil
}

// Call writes payload prefixed with its 4-byte big-endian length and returns
// the next newline-terminated reply. If ctx ends first the child is killed
// and restarted on the next Call.
func (p *Process) Call(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureStarted(); err != nil {
		return nil, err
	}

	replies := make(chan reply, 1)
	go func(stdin io.Writer, stdout *bufio.Reader) {
		line, err := exchange(stdin, stdout, payload)
		replies <- reply{line: line, err: err}
	}(p.stdin, p.stdout)

	select {
	case r := <-replies:
		if r.err != nil {
			p.shutdown()
			return nil, r.err
		}
		p.resetIdleTimer()
		return r.line, nil
	case <-ctx.Done():
		p.log.Warn("sidecar did not reply, killing it", "err", ctx.Err())
		p.kill()
		return nil, ctx.Err()
	}
}

type reply struct {
	line []byte
	err  error
}

func exchange(stdin io.Writer, stdout *bufio.Reader, payload []byte) ([]byte, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))

	if _, err := stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}

	line, err := stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// Close stops the child process if it is running.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *Process) ensureStarted() error {
	if p.started {
		return nil
	}

	python := p.config.Python
	if python == "" {
		python = findVenvPython(p.config.DataDir)
	}
	if python == "" {
		python = "python3"
	}

	p.cmd = exec.Command(python, p.scriptPath)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.scriptPath, err)
	}

	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	p.log.Info("sidecar started", "python", python, "pid", p.cmd.Process.Pid)
	return nil
}

func (p *Process) shutdown() error {
	if !p.started {
		return nil
	}

	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	if p.stdin != nil {
		p.stdin.Close()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
	p.log.Info("sidecar stopped")
	return err
}

// kill stops an unresponsive child. Wait closes the stdout pipe, which
// unblocks a pending exchange.
func (p *Process) kill() {
	if !p.started {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil {
		p.log.Warn("kill sidecar", "err", err)
	}
	p.shutdown()
}

func (p *Process) resetIdleTimer() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.config.IdleTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.shutdown()
	})
}

func findScript(name, dataDir string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name
		}
		return ""
	}

	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		name,
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
	}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "scripts", name))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for venv/bin/python relative to the working
// directory, the executable and dataDir.
func findVenvPython(dataDir string) string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
	}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "venv/bin/python"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
