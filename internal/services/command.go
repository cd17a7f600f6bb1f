package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// CommandExecutor runs binaries with os/exec and forwards every stdout and
// stderr line to onOutput.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
	)
	forward := func(line string) {
		if onOutput == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onOutput(line)
	}
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), err)
	}
	return nil
}

// ExitCode extracts the exit status from an Executor error, or -1.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
