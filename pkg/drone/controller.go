package drone

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-tello/pkg/mjpeg"
)

// Status is a point-in-time view of the controller.
type Status struct {
	Started   bool      `json:"started"`
	Starting  bool      `json:"starting"`
	Streaming bool      `json:"streaming"`
	Frames    uint64    `json:"frames"`
	LastError string    `json:"last_error,omitempty"`
	Telemetry Telemetry `json:"telemetry"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithDistance sets the magnitude of the literal directional commands.
func WithDistance(cm int) Option {
	return func(c *Controller) { c.distance = cm }
}

// WithStreamOptions configures the frame streamer.
func WithStreamOptions(opts mjpeg.Options) Option {
	return func(c *Controller) { c.streamOpts = opts }
}

// WithHistory sets the command history. Defaults to NewHistory(0).
func WithHistory(h *History) Option {
	return func(c *Controller) { c.history = h }
}

// Controller owns one drone connection: it dispatches commands and runs the
// frame streamer on its own goroutine between Start and Close.
type Controller struct {
	conn       *Conn
	logger     *slog.Logger
	distance   int
	streamOpts mjpeg.Options
	history    *History

	mu       sync.Mutex
	started  bool
	starting bool
	cancel   context.CancelFunc
	done     chan struct{}
	err      error

	subsMu sync.RWMutex
	subs   map[*subscriber]struct{}

	frameMu sync.RWMutex
	last    []byte
	frames  atomic.Uint64
}

type subscriber struct {
	ch chan []byte
}

// NewController creates a controller for sdk. Nothing is opened until Start.
func NewController(sdk SDK, opts ...Option) *Controller {
	c := &Controller{
		conn:     NewConn(sdk),
		distance: DefaultDistance,
		subs:     make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.history == nil {
		c.history = NewHistory(0)
	}
	return c
}

// Start opens the connection, enables video and launches the streamer.
// The streamer stops when ctx is cancelled or Close is called. Commands
// issued while Start is still connecting fail with ErrNotStarted.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.starting {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.starting = true
	c.mu.Unlock()

	c.logger.Info("connecting to drone")
	err := c.conn.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	streamer := mjpeg.NewStreamer(c.conn, c.streamOpts)
	go c.stream(streamCtx, streamer, c.done)

	c.logger.Info("drone connected, video streaming")
	return nil
}

func (c *Controller) stream(ctx context.Context, s *mjpeg.Streamer, done chan struct{}) {
	defer close(done)

	err := s.Run(ctx, c.publish)

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	if ctx.Err() != nil {
		c.logger.Debug("frame streamer stopped", "frames", c.frames.Load())
		if cerr := c.conn.Close(); cerr != nil {
			c.logger.Warn("close drone connection", "error", cerr)
		}
		return
	}
	c.logger.Error("frame streamer failed", "error", err, "frames", c.frames.Load())
}

// publish stores the frame and fans it out. Slow subscribers drop frames.
func (c *Controller) publish(jpeg []byte) error {
	c.frameMu.Lock()
	c.last = jpeg
	c.frameMu.Unlock()
	c.frames.Add(1)

	c.subsMu.RLock()
	for s := range c.subs {
		select {
		case s.ch <- jpeg:
		default:
		}
	}
	c.subsMu.RUnlock()
	return nil
}

// Subscribe returns a channel receiving every encoded JPEG frame and a
// function that unsubscribes and closes the channel.
func (c *Controller) Subscribe(buffer int) (<-chan []byte, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	s := &subscriber{ch: make(chan []byte, buffer)}

	c.subsMu.Lock()
	c.subs[s] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, s)
			close(s.ch)
			c.subsMu.Unlock()
		})
	}
}

// Snapshot returns the most recently encoded JPEG frame.
func (c *Controller) Snapshot() ([]byte, error) {
	c.frameMu.RLock()
	defer c.frameMu.RUnlock()
	if c.last == nil {
		return nil, ErrNoFrame
	}
	return c.last, nil
}

// Execute dispatches cmd as exactly one SDK call.
func (c *Controller) Execute(ctx context.Context, cmd Command) error {
	return c.execute(ctx, cmd.String(), cmd)
}

// ExecuteString decodes s with Parse and dispatches it. Unknown input is
// logged and reported as ErrUnsupportedCommand without touching the drone.
func (c *Controller) ExecuteString(ctx context.Context, s string) error {
	cmd, err := ParseWithDistance(s, c.distance)
	if err != nil {
		c.logger.Warn("Unknown command", "input", s)
		c.history.Add(s, nil, err)
		return err
	}
	return c.execute(ctx, s, cmd)
}

func (c *Controller) execute(ctx context.Context, input string, cmd Command) error {
	if !c.isStarted() {
		err := &CommandError{Command: cmd, Err: ErrNotStarted}
		c.history.Add(input, &cmd, err)
		return err
	}

	c.logger.Debug("executing command", "command", cmd.String())
	err := c.conn.Do(ctx, cmd)
	c.history.Add(input, &cmd, err)
	if err != nil {
		c.logger.Warn("command failed", "command", cmd.String(), "error", err)
		return err
	}
	c.logger.Info("command executed", "command", cmd.String())
	return nil
}

func (c *Controller) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// History returns the command history.
func (c *Controller) History() *History {
	return c.history
}

// Status reports whether the controller runs and the last streamer error.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		Started:  c.started,
		Starting: c.starting,
		Frames:   c.frames.Load(),
	}
	if c.started && c.done != nil {
		select {
		case <-c.done:
		default:
			st.Streaming = true
		}
	}
	if c.err != nil && !errors.Is(c.err, context.Canceled) {
		st.LastError = c.err.Error()
	}
	c.mu.Unlock()

	if c.conn.IsOpen() {
		st.Telemetry = c.conn.Telemetry()
	}
	return st
}

// Err returns the error that stopped the streamer, or nil while it runs.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the streamer goroutine exits. It is nil before Start.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close stops the streamer, waits for it and releases the connection.
func (c *Controller) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return c.conn.Close()
}
