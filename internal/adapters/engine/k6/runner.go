// Package k6 runs a generated script through a local k6 binary and returns
// its exported summary. The process is killed when the run context ends.
package k6

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/report"
)

type Runner struct {
	bin    string
	logger *zerolog.Logger
}

func NewRunner(bin string, logger *zerolog.Logger) *Runner {
	if bin == "" {
		bin = "k6"
	}
	return &Runner{bin: bin, logger: logger}
}

func (r *Runner) Run(ctx context.Context, scriptText string, opts domain.RunOptions) (report.RawSummary, error) {
	dir, err := os.MkdirTemp("", "loadtest-run-*")
	if err != nil {
		return nil, fmt.Errorf("k6: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "script.js")
	summaryPath := filepath.Join(dir, "summary.json")
	if err := os.WriteFile(scriptPath, []byte(scriptText), 0o600); err != nil {
		return nil, fmt.Errorf("k6: write script: %w", err)
	}

	// vus/duration live in the script's options block; the flags keep the
	// engine honest if the script is hand-edited.
	cmd := exec.CommandContext(ctx, r.bin, "run",
		"--quiet",
		"--summary-export", summaryPath,
		"--vus", fmt.Sprintf("%d", opts.VirtualUsers),
		"--duration", opts.Duration,
		scriptPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if r.logger != nil {
		r.logger.Debug().Str("bin", r.bin).Int("vus", opts.VirtualUsers).
			Str("duration", opts.Duration).Msg("starting k6 run")
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("k6: run interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("k6: engine exited: %w: %s", err, firstLine(stderr.String()))
	}

	data, err := os.ReadFile(summaryPath)
	if err != nil {
		return nil, fmt.Errorf("k6: no summary produced: %w", err)
	}
	doc, err := report.ParseSummary(data)
	if err != nil {
		return nil, fmt.Errorf("k6: %w", err)
	}
	return doc, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
