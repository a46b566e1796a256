package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// ErrDecoderStopped is reported once the ffmpeg process has exited.
var ErrDecoderStopped = errors.New("video: decoder stopped")

// Config controls the decoder.
type Config struct {
	// FFmpeg is the ffmpeg binary. Default: "ffmpeg".
	FFmpeg string

	// Width and Height are the output frame size. Tello streams 960x720.
	Width  int
	Height int
}

// DefaultConfig returns the native Tello stream size.
func DefaultConfig() Config {
	return Config{FFmpeg: "ffmpeg", Width: 960, Height: 720}
}

// Decoder pipes H.264 into a persistent ffmpeg process and reads back raw
// RGBA frames into a FrameBuffer.
type Decoder struct {
	cfg    Config
	logger *slog.Logger
	buf    FrameBuffer

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
	done    chan struct{}
	stderr  tailBuffer
}

// tailBuffer keeps the last few KB written by ffmpeg to stderr.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if t.buf.Len() > 4096 {
		t.buf.Next(t.buf.Len() - 4096)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// NewDecoder creates a decoder. Call Start before writing.
func NewDecoder(cfg Config, logger *slog.Logger) *Decoder {
	def := DefaultConfig()
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = def.FFmpeg
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{cfg: cfg, logger: logger}
}

// Args returns the ffmpeg arguments for the configured frame size.
func (d *Decoder) Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(d.cfg.Width) + "x" + strconv.Itoa(d.cfg.Height),
		"pipe:1",
	}
}

// Start launches ffmpeg. The process is killed when ctx is cancelled or
// Close is called.
func (d *Decoder) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	cmd := exec.CommandContext(ctx, d.cfg.FFmpeg, d.Args()...)
	cmd.Stderr = &d.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.running = true
	d.done = make(chan struct{})

	go d.readFrames(stdout)

	d.logger.Debug("video decoder started", "width", d.cfg.Width, "height", d.cfg.Height)
	return nil
}

// readFrames reads fixed-size RGBA frames until ffmpeg exits.
func (d *Decoder) readFrames(stdout io.Reader) {
	defer close(d.done)

	size := d.cfg.Width * d.cfg.Height * 4
	for {
		pix := make([]byte, size)
		if _, err := io.ReadFull(stdout, pix); err != nil {
			waitErr := d.cmd.Wait()
			d.buf.Fail(fmt.Errorf("%w: %v", ErrDecoderStopped, firstErr(waitErr, err)))
			d.logger.Debug("video decoder exited", "error", err, "stderr", d.stderrTail())
			return
		}

		d.buf.Store(&image.RGBA{
			Pix:    pix,
			Stride: d.cfg.Width * 4,
			Rect:   image.Rect(0, 0, d.cfg.Width, d.cfg.Height),
		})
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) stderrTail() string {
	s := d.stderr.String()
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}

// Write feeds H.264 data (one or more NAL units) to the decoder.
func (d *Decoder) Write(p []byte) (int, error) {
	d.mu.Lock()
	stdin, running := d.stdin, d.running
	d.mu.Unlock()

	if !running {
		return 0, ErrDecoderStopped
	}
	return stdin.Write(p)
}

// Frame returns the latest decoded frame; see FrameBuffer.Frame.
func (d *Decoder) Frame() (image.Image, error) {
	return d.buf.Frame()
}

// Frames returns how many frames have been decoded.
func (d *Decoder) Frames() uint64 {
	return d.buf.Seq()
}

// Close terminates ffmpeg and waits for the reader to finish.
func (d *Decoder) Close() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stdin, cmd, done := d.stdin, d.cmd, d.done
	d.mu.Unlock()

	stdin.Close()
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	<-done
	return nil
}
