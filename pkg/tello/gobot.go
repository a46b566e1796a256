package tello

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	gtello "gobot.io/x/gobot/platforms/dji/tello"

	"github.com/teslashibe/go-tello/pkg/drone"
	"github.com/teslashibe/go-tello/pkg/video"
)

// Defaults for the gobot backend.
const (
	DefaultGobotPort      = "8888"
	DefaultStickSpeed     = 40
	DefaultPulsePerCM     = 25 * time.Millisecond
	DefaultPulsePerDegree = 10 * time.Millisecond
	DefaultConnectTimeout = 10 * time.Second

	// keyframeInterval is how often the drone is asked for a fresh SPS/PPS.
	keyframeInterval = 100 * time.Millisecond
)

// GobotConfig holds gobot backend configuration.
type GobotConfig struct {
	// Port is the local UDP port the driver binds for the binary protocol.
	Port string

	// StickSpeed is the stick deflection (0-100) used for moves and turns.
	StickSpeed int

	// PulsePerCM and PulsePerDegree convert a distance or angle into how
	// long the stick is held. The binary protocol has no distance commands.
	PulsePerCM     time.Duration
	PulsePerDegree time.Duration

	// ConnectTimeout bounds the wait for the drone's connection ack.
	ConnectTimeout time.Duration

	Video  video.Config
	Logger *slog.Logger
}

// DefaultGobotConfig returns working defaults for a stock Tello.
func DefaultGobotConfig() GobotConfig {
	return GobotConfig{
		Port:           DefaultGobotPort,
		StickSpeed:     DefaultStickSpeed,
		PulsePerCM:     DefaultPulsePerCM,
		PulsePerDegree: DefaultPulsePerDegree,
		ConnectTimeout: DefaultConnectTimeout,
		Video:          video.DefaultConfig(),
	}
}

// driver is the subset of the gobot Tello driver used here.
type driver interface {
	Start() error
	Halt() error
	On(event string, fn func(data interface{}))
	TakeOff() error
	Land() error
	StartVideo()
	Hover()

	Forward(val int) error
	Backward(val int) error
	Left(val int) error
	Right(val int) error
	Up(val int) error
	Down(val int) error
	Clockwise(val int) error
	CounterClockwise(val int) error

	FrontFlip() error
	BackFlip() error
	LeftFlip() error
	RightFlip() error
}

// gobotDriver pins the signatures of the few driver methods whose results
// are ignored.
type gobotDriver struct {
	*gtello.Driver
}

func (d gobotDriver) On(event string, fn func(data interface{})) { d.Driver.On(event, fn) }
func (d gobotDriver) StartVideo()                                { d.Driver.StartVideo() }
func (d gobotDriver) Hover()                                     { d.Driver.Hover() }

// GobotClient drives a Tello through the gobot binary protocol driver.
// Moves are stick pulses followed by a hover; emergency stop and speed
// changes are not available.
type GobotClient struct {
	cfg     GobotConfig
	drv     driver
	logger  *slog.Logger
	decoder *video.Decoder

	connectOnce sync.Once
	connected   chan struct{}

	// moveMu keeps stick pulses from overlapping.
	moveMu sync.Mutex

	stateMu sync.RWMutex
	state   drone.Telemetry

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewGobotClient creates a client on the gobot Tello driver.
func NewGobotClient(cfg GobotConfig) *GobotClient {
	if cfg.Port == "" {
		cfg.Port = DefaultGobotPort
	}
	return newGobotClient(gobotDriver{gtello.NewDriver(cfg.Port)}, cfg)
}

func newGobotClient(drv driver, cfg GobotConfig) *GobotClient {
	def := DefaultGobotConfig()
	if cfg.StickSpeed <= 0 || cfg.StickSpeed > 100 {
		cfg.StickSpeed = def.StickSpeed
	}
	if cfg.PulsePerCM <= 0 {
		cfg.PulsePerCM = def.PulsePerCM
	}
	if cfg.PulsePerDegree <= 0 {
		cfg.PulsePerDegree = def.PulsePerDegree
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tello-gobot")

	return &GobotClient{
		cfg:       cfg,
		drv:       drv,
		logger:    logger,
		decoder:   video.NewDecoder(cfg.Video, logger),
		connected: make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

// Connect starts the driver and waits for the drone's connection ack.
func (g *GobotClient) Connect(ctx context.Context) error {
	g.drv.On(gtello.ConnectedEvent, func(interface{}) {
		g.connectOnce.Do(func() { close(g.connected) })
	})
	g.drv.On(gtello.FlightDataEvent, g.onFlightData)
	g.drv.On(gtello.WifiDataEvent, g.onWifiData)
	g.drv.On(gtello.VideoFrameEvent, g.onVideoFrame)

	if err := g.drv.Start(); err != nil {
		return fmt.Errorf("%w: start driver: %v", drone.ErrConnectionLost, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.ConnectTimeout)
	defer cancel()

	select {
	case <-g.connected:
		g.logger.Info("connected", "port", g.cfg.Port)
		return nil
	case <-ctx.Done():
		g.drv.Halt()
		return fmt.Errorf("%w: no connection ack: %v", drone.ErrConnectionLost, ctx.Err())
	}
}

func (g *GobotClient) onFlightData(data interface{}) {
	fd, ok := data.(*gtello.FlightData)
	if !ok || fd == nil {
		return
	}

	g.stateMu.Lock()
	g.state.Battery = int(fd.BatteryPercentage)
	g.state.Height = int(fd.Height) * 10
	g.state.FlightTime = int(fd.FlyTime)
	g.state.UpdatedAt = time.Now()
	g.stateMu.Unlock()
}

// onWifiData arrives separately from flight data.
func (g *GobotClient) onWifiData(data interface{}) {
	wd, ok := data.(*gtello.WifiData)
	if !ok || wd == nil {
		return
	}

	g.stateMu.Lock()
	g.state.WiFi = int(wd.Strength)
	g.stateMu.Unlock()
}

func (g *GobotClient) onVideoFrame(data interface{}) {
	pkt, ok := data.([]byte)
	if !ok {
		return
	}
	if _, err := g.decoder.Write(pkt); err != nil {
		g.logger.Debug("video packet dropped", "error", err)
	}
}

// StreamOn starts the decoder and asks for video, repeating the request so
// the decoder gets regular keyframes.
func (g *GobotClient) StreamOn(ctx context.Context) error {
	if err := g.decoder.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	g.drv.StartVideo()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(keyframeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-g.closed:
				return
			case <-ticker.C:
				g.drv.StartVideo()
			}
		}
	}()
	return nil
}

// TakeOff implements drone.Flyer.
func (g *GobotClient) TakeOff(ctx context.Context) error {
	return g.wrap("takeoff", g.drv.TakeOff())
}

// Land implements drone.Flyer.
func (g *GobotClient) Land(ctx context.Context) error {
	return g.wrap("land", g.drv.Land())
}

// Emergency is not exposed by the gobot driver.
func (g *GobotClient) Emergency(ctx context.Context) error {
	return fmt.Errorf("emergency: %w on gobot backend", drone.ErrUnsupportedCommand)
}

// Move implements drone.Mover as a timed stick pulse.
func (g *GobotClient) Move(ctx context.Context, dir drone.Direction, cm int) error {
	var stick func(int) error
	switch dir {
	case drone.Forward:
		stick = g.drv.Forward
	case drone.Back:
		stick = g.drv.Backward
	case drone.Left:
		stick = g.drv.Left
	case drone.Right:
		stick = g.drv.Right
	case drone.Up:
		stick = g.drv.Up
	case drone.Down:
		stick = g.drv.Down
	default:
		return fmt.Errorf("move %q: %w", dir, drone.ErrUnsupportedCommand)
	}
	return g.pulse(ctx, string(dir), stick, time.Duration(cm)*g.cfg.PulsePerCM)
}

// Rotate implements drone.Mover as a timed yaw pulse.
func (g *GobotClient) Rotate(ctx context.Context, rot drone.Rotation, degrees int) error {
	var stick func(int) error
	switch rot {
	case drone.Clockwise:
		stick = g.drv.Clockwise
	case drone.CounterClockwise:
		stick = g.drv.CounterClockwise
	default:
		return fmt.Errorf("rotate %q: %w", rot, drone.ErrUnsupportedCommand)
	}
	return g.pulse(ctx, string(rot), stick, time.Duration(degrees)*g.cfg.PulsePerDegree)
}

func (g *GobotClient) pulse(ctx context.Context, name string, stick func(int) error, d time.Duration) error {
	g.moveMu.Lock()
	defer g.moveMu.Unlock()

	if err := stick(g.cfg.StickSpeed); err != nil {
		g.drv.Hover()
		return g.wrap(name, err)
	}
	defer g.drv.Hover()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", name, ctx.Err())
	case <-g.closed:
		return fmt.Errorf("%s: %w", name, drone.ErrConnectionLost)
	}
}

// Flip implements drone.Mover.
func (g *GobotClient) Flip(ctx context.Context, dir drone.FlipDirection) error {
	var err error
	switch dir {
	case drone.FlipFront:
		err = g.drv.FrontFlip()
	case drone.FlipBack:
		err = g.drv.BackFlip()
	case drone.FlipLeft:
		err = g.drv.LeftFlip()
	case drone.FlipRight:
		err = g.drv.RightFlip()
	default:
		return fmt.Errorf("flip %q: %w", dir, drone.ErrUnsupportedCommand)
	}
	return g.wrap("flip "+string(dir), err)
}

// SetSpeed is not exposed by the gobot driver.
func (g *GobotClient) SetSpeed(ctx context.Context, cms int) error {
	return fmt.Errorf("speed: %w on gobot backend", drone.ErrUnsupportedCommand)
}

// Frame implements drone.FrameSource.
func (g *GobotClient) Frame() (image.Image, error) {
	return g.decoder.Frame()
}

// Telemetry implements drone.TelemetrySource.
func (g *GobotClient) Telemetry() drone.Telemetry {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.state
}

// Close halts the driver and stops the decoder.
func (g *GobotClient) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.closed)
		g.wg.Wait()
		err = g.drv.Halt()
		g.decoder.Close()
	})
	return err
}

func (g *GobotClient) wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", name, drone.ErrConnectionLost, err)
}

var _ drone.SDK = (*GobotClient)(nil)
