package mjpeg

import (
	"context"
	"fmt"
	"image"
	"time"
)

// DefaultPollInterval is how long the streamer waits when the source has
// not produced its first frame yet.
const DefaultPollInterval = 10 * time.Millisecond

// Source returns the most recent frame without blocking. It returns
// (nil, nil) when no frame is available yet.
type Source interface {
	Frame() (image.Image, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (image.Image, error)

// Frame implements Source.
func (f SourceFunc) Frame() (image.Image, error) { return f() }

// Sink receives each encoded JPEG. Returning an error stops the stream.
type Sink func(jpeg []byte) error

// Options configures a Streamer.
type Options struct {
	// Encoder compresses frames. Defaults to StdEncoder.
	Encoder Encoder

	// Quality is the JPEG quality 1-100. Defaults to DefaultQuality.
	Quality int

	// MaxFPS throttles the loop. 0 runs as fast as frames can be encoded.
	MaxFPS float64

	// Width downscales frames wider than this. 0 keeps native size.
	Width int

	// PollInterval is the wait between polls before the first frame.
	PollInterval time.Duration
}

// Streamer repeatedly snapshots a Source, encodes the frame and hands the
// JPEG to a Sink. It re-reads the same frame if the source has not advanced.
type Streamer struct {
	src  Source
	opts Options
}

// NewStreamer creates a streamer over src.
func NewStreamer(src Source, opts Options) *Streamer {
	if opts.Encoder == nil {
		opts.Encoder = StdEncoder{}
	}
	if opts.Quality == 0 {
		opts.Quality = DefaultQuality
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Streamer{src: src, opts: opts}
}

// Run streams until ctx is cancelled or a fault occurs. It never returns
// nil: cancellation yields ctx.Err(), a failed read the source's error,
// a failed encode an error wrapping ErrEncodeFailed.
func (s *Streamer) Run(ctx context.Context, sink Sink) error {
	var interval time.Duration
	if s.opts.MaxFPS > 0 {
		interval = time.Duration(float64(time.Second) / s.opts.MaxFPS)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()

		img, err := s.src.Frame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if img == nil {
			if err := sleep(ctx, s.opts.PollInterval); err != nil {
				return err
			}
			continue
		}

		data, err := s.Encode(img)
		if err != nil {
			return err
		}

		if err := sink(data); err != nil {
			return err
		}

		if interval > 0 {
			if err := sleep(ctx, interval-time.Since(start)); err != nil {
				return err
			}
		}
	}
}

// Encode resizes and encodes a single frame with the streamer's settings.
func (s *Streamer) Encode(img image.Image) ([]byte, error) {
	if s.opts.Width > 0 {
		img = Resize(img, s.opts.Width)
	}
	data, err := s.opts.Encoder.Encode(img, s.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return data, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
