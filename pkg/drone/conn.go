package drone

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// Conn is the synchronized handle to a backend SDK.
//
// Commands are serialised by cmdMu so only one motion call is in flight.
// The open/closed state is guarded separately so a long command round trip
// never blocks frame reads.
type Conn struct {
	sdk SDK

	cmdMu sync.Mutex

	mu      sync.RWMutex
	open    bool
	opening bool
	closed  bool
}

// NewConn wraps sdk. The connection is not opened until Open is called.
func NewConn(sdk SDK) *Conn {
	return &Conn{sdk: sdk}
}

// Open connects to the drone and enables its video stream. The state lock
// is not held while connecting, so frame reads and IsOpen never wait on the
// handshake. A Close that lands mid-handshake wins.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("open: %w", ErrConnectionLost)
	}
	if c.open || c.opening {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.opening = true
	c.mu.Unlock()

	err := c.connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opening = false
	if err != nil {
		return err
	}
	if c.closed {
		c.sdk.Close()
		return fmt.Errorf("open: %w", ErrConnectionLost)
	}
	c.open = true
	return nil
}

func (c *Conn) connect(ctx context.Context) error {
	if err := c.sdk.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := c.sdk.StreamOn(ctx); err != nil {
		c.sdk.Close()
		return fmt.Errorf("stream on: %w", err)
	}
	return nil
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (c *Conn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Do issues exactly one SDK call for cmd.
func (c *Conn) Do(ctx context.Context, cmd Command) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.RLock()
	open := c.open
	c.mu.RUnlock()
	if !open {
		return &CommandError{Command: cmd, Err: ErrConnectionLost}
	}

	if err := c.dispatch(ctx, cmd); err != nil {
		return &CommandError{Command: cmd, Err: err}
	}
	return nil
}

func (c *Conn) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case KindTakeOff:
		return c.sdk.TakeOff(ctx)
	case KindLand:
		return c.sdk.Land(ctx)
	case KindEmergency:
		return c.sdk.Emergency(ctx)
	case KindMove:
		return c.sdk.Move(ctx, cmd.Direction, cmd.Amount)
	case KindRotate:
		return c.sdk.Rotate(ctx, cmd.Rotation, cmd.Amount)
	case KindFlip:
		return c.sdk.Flip(ctx, cmd.Flip)
	case KindSpeed:
		return c.sdk.SetSpeed(ctx, cmd.Amount)
	default:
		return ErrUnsupportedCommand
	}
}

// Frame returns the latest frame from the SDK. Read failures are reported
// as ErrConnectionLost unless the backend already classified them.
func (c *Conn) Frame() (image.Image, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.open {
		return nil, ErrConnectionLost
	}

	img, err := c.sdk.Frame()
	if err != nil {
		if errors.Is(err, ErrConnectionLost) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return img, nil
}

// Telemetry returns the backend's last reported state.
func (c *Conn) Telemetry() Telemetry {
	return c.sdk.Telemetry()
}

// Close releases the SDK connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	wasOpen := c.open
	c.open = false
	if !wasOpen {
		return nil
	}
	return c.sdk.Close()
}
