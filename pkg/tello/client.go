// Package tello implements the drone SDK capability for the Ryze Tello.
//
// Client speaks the Tello SDK 2.0 text protocol over UDP. GobotClient uses
// the binary protocol through the gobot Tello driver. Both decode the H.264
// video feed with pkg/video.
package tello

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-tello/pkg/drone"
	"github.com/teslashibe/go-tello/pkg/video"
)

// Defaults for the text SDK.
const (
	DefaultAddr      = "192.168.10.1:8889"
	DefaultLocalPort = 8889
	DefaultStatePort = 8890
	DefaultVideoPort = 11111
	DefaultTimeout   = 7 * time.Second

	maxPacket = 2048
)

// Config holds text SDK client configuration.
type Config struct {
	// Addr is the drone command address.
	Addr string

	// LocalPort is the local UDP port for commands. 0 picks a free port.
	LocalPort int

	// StatePort receives the drone's state broadcast. 0 disables it.
	StatePort int

	// VideoPort receives raw H.264. 0 picks a free port.
	VideoPort int

	// Timeout bounds the wait for a command response.
	Timeout time.Duration

	// Video configures the H.264 decoder.
	Video video.Config

	Logger *slog.Logger
}

// DefaultConfig returns the standard Tello SDK 2.0 settings.
func DefaultConfig() Config {
	return Config{
		Addr:      DefaultAddr,
		LocalPort: DefaultLocalPort,
		StatePort: DefaultStatePort,
		VideoPort: DefaultVideoPort,
		Timeout:   DefaultTimeout,
		Video:     video.DefaultConfig(),
	}
}

// Client is a Tello SDK 2.0 text protocol client.
type Client struct {
	cfg    Config
	logger *slog.Logger

	drone     *net.UDPAddr
	conn      *net.UDPConn
	stateConn *net.UDPConn
	videoConn *net.UDPConn
	decoder   *video.Decoder

	// cmdMu allows one command in flight; responses are not tagged.
	cmdMu     sync.Mutex
	responses chan string

	stateMu sync.RWMutex
	state   drone.Telemetry

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a text SDK client. Nothing is opened until Connect.
func NewClient(cfg Config) *Client {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tello")

	return &Client{
		cfg:       cfg,
		logger:    logger,
		decoder:   video.NewDecoder(cfg.Video, logger),
		responses: make(chan string, 1),
		closed:    make(chan struct{}),
	}
}

// Connect opens the command socket, starts the state listener and enters
// SDK mode. On failure every socket it opened is closed again.
func (c *Client) Connect(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	addr, err := net.ResolveUDPAddr("udp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.cfg.Addr, err)
	}
	c.drone = addr

	c.conn, err = net.ListenUDP("udp", &net.UDPAddr{Port: c.cfg.LocalPort})
	if err != nil {
		return fmt.Errorf("listen command port %d: %w", c.cfg.LocalPort, err)
	}
	c.wg.Add(1)
	go c.readResponses()

	if c.cfg.StatePort > 0 {
		c.stateConn, err = net.ListenUDP("udp", &net.UDPAddr{Port: c.cfg.StatePort})
		if err != nil {
			return fmt.Errorf("listen state port %d: %w", c.cfg.StatePort, err)
		}
		c.wg.Add(1)
		go c.readState()
	}

	if err = c.send(ctx, "command"); err != nil {
		return err
	}
	c.logger.Info("entered SDK mode", "addr", c.cfg.Addr)
	return nil
}

// StreamOn starts the decoder and the video listener, then asks the drone
// to stream.
func (c *Client) StreamOn(ctx context.Context) error {
	var err error
	c.videoConn, err = net.ListenUDP("udp", &net.UDPAddr{Port: c.cfg.VideoPort})
	if err != nil {
		return fmt.Errorf("listen video port %d: %w", c.cfg.VideoPort, err)
	}

	// The decoder outlives ctx, which may be a short connect timeout.
	if err := c.decoder.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.readVideo()

	return c.send(ctx, "streamon")
}

// TakeOff implements drone.Flyer.
func (c *Client) TakeOff(ctx context.Context) error { return c.send(ctx, "takeoff") }

// Land implements drone.Flyer.
func (c *Client) Land(ctx context.Context) error { return c.send(ctx, "land") }

// Emergency implements drone.Flyer.
func (c *Client) Emergency(ctx context.Context) error { return c.send(ctx, "emergency") }

// Move implements drone.Mover.
func (c *Client) Move(ctx context.Context, dir drone.Direction, cm int) error {
	return c.send(ctx, string(dir)+" "+strconv.Itoa(cm))
}

// Rotate implements drone.Mover.
func (c *Client) Rotate(ctx context.Context, rot drone.Rotation, degrees int) error {
	return c.send(ctx, string(rot)+" "+strconv.Itoa(degrees))
}

// Flip implements drone.Mover.
func (c *Client) Flip(ctx context.Context, dir drone.FlipDirection) error {
	return c.send(ctx, "flip "+string(dir))
}

// SetSpeed implements drone.Mover.
func (c *Client) SetSpeed(ctx context.Context, cms int) error {
	return c.send(ctx, "speed "+strconv.Itoa(cms))
}

// Frame implements drone.FrameSource.
func (c *Client) Frame() (image.Image, error) {
	return c.decoder.Frame()
}

// Telemetry implements drone.TelemetrySource.
func (c *Client) Telemetry() drone.Telemetry {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Close stops streaming (best effort), closes all sockets and the decoder.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.videoConn != nil && c.conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := c.send(ctx, "streamoff"); err != nil {
				c.logger.Debug("streamoff failed", "error", err)
			}
			cancel()
		}

		close(c.closed)
		for _, conn := range []*net.UDPConn{c.conn, c.stateConn, c.videoConn} {
			if conn != nil {
				conn.Close()
			}
		}
		c.decoder.Close()
		c.wg.Wait()
	})
	return nil
}

// send writes one command and waits for its response.
func (c *Client) send(ctx context.Context, cmd string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	select {
	case <-c.closed:
		return fmt.Errorf("%s: %w", cmd, drone.ErrConnectionLost)
	default:
	}

	// Drop a late response to a previous, timed-out command.
	select {
	case <-c.responses:
	default:
	}

	c.logger.Debug("send", "cmd", cmd)
	if _, err := c.conn.WriteToUDP([]byte(cmd), c.drone); err != nil {
		return fmt.Errorf("%s: %w: %v", cmd, drone.ErrConnectionLost, err)
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case resp := <-c.responses:
		if resp == "ok" {
			return nil
		}
		return fmt.Errorf("%s: %w: %s", cmd, drone.ErrCommandRejected, resp)
	case <-timer.C:
		return fmt.Errorf("%s: %w: no response after %s", cmd, drone.ErrConnectionLost, c.cfg.Timeout)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", cmd, ctx.Err())
	case <-c.closed:
		return fmt.Errorf("%s: %w", cmd, drone.ErrConnectionLost)
	}
}

func (c *Client) readResponses() {
	defer c.wg.Done()

	buf := make([]byte, maxPacket)
	for {
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				c.logger.Warn("command socket read failed", "error", err)
			}
			return
		}

		resp := strings.TrimSpace(string(buf[:n]))
		select {
		case c.responses <- resp:
		default:
			c.logger.Debug("dropped unsolicited response", "resp", resp)
		}
	}
}

func (c *Client) readState() {
	defer c.wg.Done()

	buf := make([]byte, maxPacket)
	for {
		n, _, err := c.stateConn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		t := ParseState(string(buf[:n]))
		c.stateMu.Lock()
		c.state = t
		c.stateMu.Unlock()
	}
}

func (c *Client) readVideo() {
	defer c.wg.Done()

	buf := make([]byte, maxPacket)
	for {
		n, _, err := c.videoConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if _, err := c.decoder.Write(buf[:n]); err != nil {
			c.logger.Warn("video decoder write failed", "error", err)
			return
		}
	}
}

// ParseState decodes a state packet such as
// "pitch:0;roll:0;yaw:0;templ:83;temph:85;tof:10;h:0;bat:87;time:0;".
func ParseState(s string) drone.Telemetry {
	t := drone.Telemetry{UpdatedAt: time.Now()}
	var templ, temph float64
	var haveTemp bool

	for _, field := range strings.Split(strings.TrimSpace(s), ";") {
		key, val, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		switch key {
		case "bat":
			t.Battery, _ = strconv.Atoi(val)
		case "h":
			t.Height, _ = strconv.Atoi(val)
		case "tof":
			t.TOF, _ = strconv.Atoi(val)
		case "time":
			t.FlightTime, _ = strconv.Atoi(val)
		case "templ":
			templ, _ = strconv.ParseFloat(val, 64)
			haveTemp = true
		case "temph":
			temph, _ = strconv.ParseFloat(val, 64)
			haveTemp = true
		}
	}

	if haveTemp {
		t.Temperature = (templ + temph) / 2
	}
	return t
}

var _ drone.SDK = (*Client)(nil)
