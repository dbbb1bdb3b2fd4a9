// Package api runs coder-audit commands in-process so other Go programs can
// embed the audit reports without shelling out to the binary.
package api

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bjornrobertsson/coder-audit-simple/internal/cli"
)

// Options configures a Runner. Env entries are applied to the process
// environment for the duration of each run and restored afterwards, which
// lets an embedder point a run at a different deployment via CODER_URL and
// CODER_SESSION_TOKEN without mutating its own environment permanently.
type Options struct {
	Stdin io.Reader
	Env   map[string]string
}

// Result holds the captured output of one run.
type Result struct {
	Stdout string
	Stderr string
}

// Output returns stdout and stderr combined, trimmed, stderr last.
func (r Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Line is one line of streamed output. Stderr marks diagnostics (warnings,
// progress) as opposed to report rows.
type Line struct {
	Text   string
	Stderr bool
}

// Runner executes coder-audit command lines in-process. Runs are serialized:
// the command tree reads process env and the config file, so two concurrent
// runs with different Env would race.
type Runner struct {
	opts Options
	mu   sync.Mutex
}

func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run executes one command line (e.g. `last -n 5`) and returns its captured
// output once it finishes. The leading "coder-audit" word is optional.
func (r *Runner) Run(ctx context.Context, command string) (Result, error) {
	args, err := splitArgs(command)
	if err != nil {
		return Result{}, err
	}
	var stdout, stderr bytes.Buffer
	err = r.execute(ctx, args, &stdout, &stderr)
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// Stream executes one command line, invoking fn for every line of output as
// it is produced, and returns the command's error when it finishes. fn is
// called from a single goroutine.
func (r *Runner) Stream(ctx context.Context, command string, fn func(Line)) error {
	args, err := splitArgs(command)
	if err != nil {
		return err
	}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	lines := make(chan Line, 64)

	// Both scanners must drain before lines is closed, otherwise a send
	// races the close.
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		scanLines(outR, false, lines)
	}()
	go func() {
		defer readers.Done()
		scanLines(errR, true, lines)
	}()

	done := make(chan error, 1)
	go func() {
		err := r.execute(ctx, args, outW, errW)
		// EOF the read ends so the scanners exit.
		_ = outW.Close()
		_ = errW.Close()
		readers.Wait()
		close(lines)
		done <- err
	}()

	for line := range lines {
		fn(line)
	}
	return <-done
}

func (r *Runner) execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	restore := r.applyEnv()
	defer restore()

	in := r.opts.Stdin
	if in == nil {
		in = bytes.NewReader(nil)
	}
	root := cli.NewRootCommandWithIO(in, out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (r *Runner) applyEnv() func() {
	if len(r.opts.Env) == 0 {
		return func() {}
	}
	prev := map[string]*string{}
	for k, v := range r.opts.Env {
		if old, ok := os.LookupEnv(k); ok {
			ov := old
			prev[k] = &ov
		} else {
			prev[k] = nil
		}
		_ = os.Setenv(k, v)
	}
	return func() {
		for k, v := range prev {
			if v == nil {
				_ = os.Unsetenv(k)
			} else {
				_ = os.Setenv(k, *v)
			}
		}
	}
}

// splitArgs tokenizes a command line. Single and double quotes group words
// (`last -u "alice smith"`), and a leading "coder-audit" word is stripped so
// both `coder-audit last` and `last` work.
func splitArgs(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inWord  bool
	)
	for _, c := range command {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(c)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in command", quote)
	}
	if inWord {
		args = append(args, current.String())
	}
	if len(args) > 0 && args[0] == "coder-audit" {
		args = args[1:]
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

func scanLines(r io.Reader, stderr bool, lines chan<- Line) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		lines <- Line{Text: s.Text(), Stderr: stderr}
	}
}
