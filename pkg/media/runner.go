package media

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"VidFlow/pkg/errors"

	"github.com/mattn/go-shellwords"
)

// Runner executes one external command line and returns its stdout.
type Runner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

const stderrTail = 2048

func (ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, errors.Precondition("empty command line")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), errors.WrapCode(err, errors.CodeProcess, argv[0]+" failed").
			WithContext("exit_code", exitCode(exitErr)).
			WithContext("stderr", tail(stderr.String(), stderrTail))
	}
	// 进程未能启动
	return nil, errors.WrapCode(err, errors.CodeProcess, "spawn "+argv[0])
}

func exitCode(e *exec.ExitError) string {
	return strings.TrimPrefix(e.Error(), "exit status ")
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// parseCommand splits a configured command such as "docker run --rm -v /data:/data
// jrottenberg/ffmpeg" into argv.
func parseCommand(line, fallback string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		line = fallback
	}
	argv, err := shellwords.Parse(line)
	if err != nil {
		return nil, errors.Wrapf(err, "parse command %q", line)
	}
	if len(argv) == 0 {
		return nil, errors.Precondition("empty command %q", line)
	}
	return argv, nil
}
