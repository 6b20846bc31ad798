package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
	"github.com/google/uuid"
)

// DefaultTool is the extraction executable used when none is configured.
const DefaultTool = "yt-dlp"

const (
	stderrLimit = 8 << 10
	waitDelay   = 2 * time.Second
)

// Request describes one extraction.
type Request struct {
	Song    models.Song
	URL     string // Page URL or search expression such as "ytsearch1:<query>"
	Format  string // Output audio extension
	Quality string // Passed to --audio-quality; "0" when empty
}

// Extractor runs an external extraction tool to produce audio files.
type Extractor struct {
	Executable string
	ExtraArgs  []string // Inserted before --output
	TempDir    string   // os.TempDir() when empty
	logger     *log.Logger
}

// NewExtractor creates an extractor for executable, defaulting to [DefaultTool].
func NewExtractor(executable string, logger *log.Logger, extraArgs ...string) *Extractor {
	if executable == "" {
		executable = DefaultTool
	}
	return &Extractor{Executable: executable, ExtraArgs: extraArgs, logger: shared.WithLogger(logger)}
}

// Args builds the command line for req writing to output.
func (e *Extractor) Args(req Request, output string) []string {
	quality := req.Quality
	if quality == "" {
		quality = "0"
	}

	args := []string{
		"--extract-audio",
		"--audio-format", models.NormalizeExtension(req.Format),
		"--audio-quality", quality,
		"--newline",
		"--progress-template", ProgressTemplate,
	}
	args = append(args, e.ExtraArgs...)
	return append(args, "--output", output, req.URL)
}

func (e *Extractor) outputPath(format string) string {
	dir := e.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mixdeck-"+uuid.NewString()+"."+models.NormalizeExtension(format))
}

// Extract runs the tool and returns the path of the produced file.
//
// Cancelling ctx kills the process group and returns ctx.Err(). Partial output is removed on every failure.
func (e *Extractor) Extract(ctx context.Context, req Request, progress models.ProgressFunc) (string, error) {
	song := &req.Song
	output := e.outputPath(req.Format)
	progress.Emit(models.StartingProgress(song))

	cmd := exec.CommandContext(ctx, e.Executable, e.Args(req, output)...)
	stderr := &tailBuffer{limit: stderrLimit}
	stdout, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	KillGroupOnCancel(cmd)

	e.logger.Debug("starting extraction", "tool", e.Executable, "url", req.URL, "output", output)
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			err = &ToolMissingError{Tool: e.Executable, Err: err}
		} else if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = fmt.Errorf("%w: failed to start %s: %v", shared.ErrDownloadFailed, e.Executable, err)
		}
		progress.Emit(models.FailedProgress(song, 0, err))
		return "", err
	}

	var last, total int64
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			d, t, ok := ParseProgressLine(scanner.Text())
			if !ok {
				continue
			}
			if t > 0 {
				total = t
			}
			last = max(last, d)
			progress.Emit(models.DownloadingProgress(song, last, total))
		}
		// Drain so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}()

	waitErr := cmd.Wait()
	stdoutW.Close()
	<-scanned

	if ctxErr := ctx.Err(); ctxErr != nil {
		removeQuietly(output)
		progress.Emit(models.FailedProgress(song, last, ctxErr))
		return "", ctxErr
	}

	if waitErr != nil {
		removeQuietly(output)
		exitErr := &ExtractionError{ExitCode: -1, Stderr: stderr.String()}
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			exitErr.ExitCode = ee.ExitCode()
		}
		e.logger.Error("extraction failed", "url", req.URL, "exit_code", exitErr.ExitCode, "stderr", exitErr.Stderr)
		progress.Emit(models.FailedProgress(song, last, exitErr))
		return "", exitErr
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		removeQuietly(output)
		exitErr := &ExtractionError{ExitCode: 0, Stderr: stderr.String()}
		e.logger.Error("extraction produced no output", "url", req.URL, "output", output)
		progress.Emit(models.FailedProgress(song, last, exitErr))
		return "", exitErr
	}

	size := info.Size()
	if total <= 0 {
		total = size
	}
	progress.Emit(models.CompletedProgress(song, max(last, size), total))
	e.logger.Debug("extraction completed", "output", output, "bytes", size)
	return output, nil
}

// OpenExtracted extracts req fully and opens the result. The file is removed when the reader is closed.
func (e *Extractor) OpenExtracted(ctx context.Context, req Request) (io.ReadCloser, error) {
	path, err := e.Extract(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		removeQuietly(path)
		return nil, fmt.Errorf("failed to open extracted file: %w", err)
	}
	return &tempFile{File: f}, nil
}

type tempFile struct {
	*os.File
	once sync.Once
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	t.once.Do(func() { removeQuietly(t.Name()) })
	return err
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Default().Debug("failed to remove partial output", "path", path, "error", err)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
