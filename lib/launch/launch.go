// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package launch spawns the game process after a completed sync. It
// captures output, tracks running processes in a table for kill and
// status, and discovers classpath jars under the synchronized root.
package launch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/alauncher/updater/lib/sync"
)

var ErrNoSuchProcess = errors.New("no such process")

// A Command describes a process to spawn. Extra holds user-supplied
// arguments in shell quoting, split before use.
type Command struct {
	Binary  string
	Args    []string
	Extra   string
	WorkDir string
	Env     []string
}

// A Result is the outcome of a finished process. Code is -1 when the
// process never ran or was killed before exiting on its own.
type Result struct {
	Code int
	Err  error
}

// A Process is one spawned command. Its output is streamed to the debug
// log and retained for the caller.
type Process struct {
	ID string

	cmd  *exec.Cmd
	done chan struct{}

	mut    sync.Mutex
	output strings.Builder
	result Result
}

// Wait blocks until the process exits and returns its result.
func (p *Process) Wait() Result {
	<-p.done
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.result
}

// Running reports whether the process has not yet exited.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Output returns the combined stdout and stderr captured so far.
func (p *Process) Output() string {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.output.String()
}

// A Table owns the running processes of one launcher instance. Finished
// processes stay in the table until Remove, so their result and output
// remain inspectable.
type Table struct {
	mut   sync.Mutex
	procs map[string]*Process
}

func NewTable() *Table {
	return &Table{
		mut:   sync.NewMutex(),
		procs: make(map[string]*Process),
	}
}

// Start spawns the command. The context bounds the process lifetime; when
// it is cancelled the process is killed.
func (t *Table) Start(ctx context.Context, command Command) (*Process, error) {
	args := command.Args
	if command.Extra != "" {
		extra, err := shellquote.Split(command.Extra)
		if err != nil {
			return nil, err
		}
		args = append(append([]string{}, args...), extra...)
	}

	cmd := exec.CommandContext(ctx, command.Binary, args...)
	cmd.Dir = command.WorkDir
	if command.Env != nil {
		cmd.Env = append(os.Environ(), command.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &Process{
		ID:   uuid.NewString(),
		cmd:  cmd,
		done: make(chan struct{}),
		mut:  sync.NewMutex(),
	}
	l.Infof("Started %s (pid %d, id %s)", command.Binary, cmd.Process.Pid, p.ID)

	t.mut.Lock()
	t.procs[p.ID] = p
	t.mut.Unlock()

	drained := sync.NewWaitGroup()
	drained.Add(2)
	go p.capture(stdout, drained)
	go p.capture(stderr, drained)

	go func() {
		drained.Wait()
		err := cmd.Wait()

		p.mut.Lock()
		p.result = Result{Code: cmd.ProcessState.ExitCode(), Err: err}
		p.mut.Unlock()
		close(p.done)

		l.Infof("Process %s exited with code %d", p.ID, cmd.ProcessState.ExitCode())
	}()

	return p, nil
}

// capture copies process output line by line into the retained buffer and
// the debug log.
func (p *Process) capture(r io.Reader, wg sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		l.Debugln(p.ID+":", line)
		p.mut.Lock()
		p.output.WriteString(line)
		p.output.WriteString("\n")
		p.mut.Unlock()
	}
}

// Get returns the process with the given id, if present.
func (t *Table) Get(id string) (*Process, bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	p, ok := t.procs[id]
	return p, ok
}

// List returns all processes in the table.
func (t *Table) List() []*Process {
	t.mut.Lock()
	defer t.mut.Unlock()
	procs := make([]*Process, 0, len(t.procs))
	for _, p := range t.procs {
		procs = append(procs, p)
	}
	return procs
}

// Kill terminates a running process. Killing an already finished process
// is a no-op.
func (t *Table) Kill(id string) error {
	p, ok := t.Get(id)
	if !ok {
		return ErrNoSuchProcess
	}
	if !p.Running() {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Remove drops a finished process from the table. A running process is
// left alone.
func (t *Table) Remove(id string) {
	t.mut.Lock()
	defer t.mut.Unlock()
	if p, ok := t.procs[id]; ok && !p.Running() {
		delete(t.procs, id)
	}
}

// FindJars walks the root recursively and returns the absolute paths of
// all .jar files, sorted for a stable classpath. Unreadable subtrees are
// logged and skipped.
func FindJars(root string) ([]string, error) {
	var jars []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			l.Warnf("Scanning %s: %v; skipping", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".jar") {
			jars = append(jars, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(jars)
	return jars, nil
}

// Classpath joins jar paths with the platform's path list separator.
func Classpath(jars []string) string {
	return strings.Join(jars, string(os.PathListSeparator))
}
