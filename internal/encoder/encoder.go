package encoder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"spacesaver/internal/services"
)

// Options describes a single encode job handed to the external encoder.
type Options struct {
	InputPath  string
	OutputPath string
	CRF        int
	ResCap     int
}

// Progress is a best-effort snapshot of encoder state, parsed from the
// subprocess's stdout. Callers must not treat any field as durable: a crash
// mid-encode loses whatever progress was last reported.
type Progress struct {
	Stage      string
	Percent    float64
	Message    string
	ETASeconds int
	Speed      float64
	FPS        float64
}

// Client runs an encode job and reports progress as it happens.
type Client interface {
	Encode(ctx context.Context, opts Options, onProgress func(Progress)) error
}

// CLI invokes an external encoder binary, parsing newline-delimited JSON
// progress events from its stdout.
type CLI struct {
	Binary        string
	ShutdownGrace time.Duration
}

// NewCLI returns a CLI client for the given encoder binary.
func NewCLI(binary string, shutdownGrace time.Duration) *CLI {
	if shutdownGrace <= 0 {
		shutdownGrace = 30 * time.Second
	}
	return &CLI{Binary: binary, ShutdownGrace: shutdownGrace}
}

type progressEvent struct {
	Type       string  `json:"type"`
	Stage      string  `json:"stage"`
	Percent    float64 `json:"percent"`
	Message    string  `json:"message"`
	ETASeconds int     `json:"eta_seconds"`
	Speed      float64 `json:"speed"`
	FPS        float64 `json:"fps"`
}

// Encode shells out to the configured encoder binary. ctx cancellation sends
// SIGTERM to the subprocess and escalates to SIGKILL after ShutdownGrace;
// the claimed entry is left IN_PROGRESS for Recovery to reconcile on restart.
func (c *CLI) Encode(ctx context.Context, opts Options, onProgress func(Progress)) error {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		binary = "spacesaver-encode"
	}

	cmd := exec.Command(binary,
		"--input", opts.InputPath,
		"--output", opts.OutputPath,
		"--crf", fmt.Sprintf("%d", opts.CRF),
		"--res-cap", fmt.Sprintf("%d", opts.ResCap),
		"--json-progress",
	)
	// Run the encoder in its own process group so cancellation reaches any
	// children it spawns, not just the top-level process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "encode", "pipe", "create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "encode", "pipe", "create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "encode", "start", "start encoder process", err)
	}

	done := make(chan struct{})
	defer close(done)
	go c.watchCancellation(ctx, cmd, done)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanProgress(stdout, onProgress)
	}()

	var stderrTail strings.Builder
	go func() {
		defer wg.Done()
		tailStderr(stderr, &stderrTail)
	}()

	wg.Wait()
	err = cmd.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("encode canceled: %w", ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "encode", "run", strings.TrimSpace(stderrTail.String()), err)
	}
	return nil
}

func (c *CLI) watchCancellation(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
		return
	}
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(c.ShutdownGrace):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

func scanProgress(r io.Reader, onProgress func(Progress)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event progressEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if onProgress == nil {
			continue
		}
		onProgress(Progress{
			Stage:      event.Stage,
			Percent:    event.Percent,
			Message:    event.Message,
			ETASeconds: event.ETASeconds,
			Speed:      event.Speed,
			FPS:        event.FPS,
		})
	}
}

// tailStderr keeps only the last few lines of stderr, enough to populate
// last_error on failure without holding the full stream in memory.
func tailStderr(r io.Reader, dst *strings.Builder) {
	const maxLines = 20
	lines := make([]string, 0, maxLines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	dst.WriteString(strings.Join(lines, "\n"))
}
