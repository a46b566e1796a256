package tello

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gtello "gobot.io/x/gobot/platforms/dji/tello"

	"github.com/teslashibe/go-tello/pkg/drone"
)

type fakeDriver struct {
	mu       sync.Mutex
	calls    []string
	handlers map[string]func(interface{})

	startErr   error
	ackOnStart bool
	stickErr   error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{handlers: make(map[string]func(interface{})), ackOnStart: true}
}

func (f *fakeDriver) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeDriver) emit(event string, data interface{}) {
	f.mu.Lock()
	h := f.handlers[event]
	f.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func (f *fakeDriver) Start() error {
	f.record("Start")
	if f.startErr != nil {
		return f.startErr
	}
	if f.ackOnStart {
		go f.emit(gtello.ConnectedEvent, nil)
	}
	return nil
}

func (f *fakeDriver) Halt() error { f.record("Halt"); return nil }

func (f *fakeDriver) On(event string, fn func(interface{})) {
	f.mu.Lock()
	f.handlers[event] = fn
	f.mu.Unlock()
}

func (f *fakeDriver) TakeOff() error { f.record("TakeOff"); return nil }
func (f *fakeDriver) Land() error    { f.record("Land"); return nil }
func (f *fakeDriver) StartVideo()    { f.record("StartVideo") }
func (f *fakeDriver) Hover()         { f.record("Hover") }

func (f *fakeDriver) stick(name string) error {
	f.record(name)
	return f.stickErr
}

func (f *fakeDriver) Forward(int) error          { return f.stick("Forward") }
func (f *fakeDriver) Backward(int) error         { return f.stick("Backward") }
func (f *fakeDriver) Left(int) error             { return f.stick("Left") }
func (f *fakeDriver) Right(int) error            { return f.stick("Right") }
func (f *fakeDriver) Up(int) error               { return f.stick("Up") }
func (f *fakeDriver) Down(int) error             { return f.stick("Down") }
func (f *fakeDriver) Clockwise(int) error        { return f.stick("Clockwise") }
func (f *fakeDriver) CounterClockwise(int) error { return f.stick("CounterClockwise") }

func (f *fakeDriver) FrontFlip() error { f.record("FrontFlip"); return nil }
func (f *fakeDriver) BackFlip() error  { f.record("BackFlip"); return nil }
func (f *fakeDriver) LeftFlip() error  { f.record("LeftFlip"); return nil }
func (f *fakeDriver) RightFlip() error { f.record("RightFlip"); return nil }

func newTestGobotClient(drv *fakeDriver) *GobotClient {
	return newGobotClient(drv, GobotConfig{
		PulsePerCM:     time.Microsecond,
		PulsePerDegree: time.Microsecond,
	})
}

func TestGobotClient_Connect(t *testing.T) {
	drv := newFakeDriver()
	g := newTestGobotClient(drv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := g.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	calls := drv.Calls()
	if len(calls) != 2 || calls[0] != "Start" || calls[1] != "Halt" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestGobotClient_ConnectNoAck(t *testing.T) {
	drv := newFakeDriver()
	drv.ackOnStart = false
	g := newTestGobotClient(drv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := g.Connect(ctx)
	if !errors.Is(err, drone.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestGobotClient_ConnectStartError(t *testing.T) {
	drv := newFakeDriver()
	drv.startErr = errors.New("bind: address in use")
	g := newTestGobotClient(drv)

	err := g.Connect(context.Background())
	if !errors.Is(err, drone.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestGobotClient_Motion(t *testing.T) {
	drv := newFakeDriver()
	g := newTestGobotClient(drv)
	ctx := context.Background()

	steps := []struct {
		name string
		call func() error
		want []string
	}{
		{"takeoff", func() error { return g.TakeOff(ctx) }, []string{"TakeOff"}},
		{"forward", func() error { return g.Move(ctx, drone.Forward, 30) }, []string{"Forward", "Hover"}},
		{"back", func() error { return g.Move(ctx, drone.Back, 30) }, []string{"Backward", "Hover"}},
		{"left", func() error { return g.Move(ctx, drone.Left, 30) }, []string{"Left", "Hover"}},
		{"right", func() error { return g.Move(ctx, drone.Right, 30) }, []string{"Right", "Hover"}},
		{"up", func() error { return g.Move(ctx, drone.Up, 30) }, []string{"Up", "Hover"}},
		{"down", func() error { return g.Move(ctx, drone.Down, 30) }, []string{"Down", "Hover"}},
		{"cw", func() error { return g.Rotate(ctx, drone.Clockwise, 90) }, []string{"Clockwise", "Hover"}},
		{"ccw", func() error { return g.Rotate(ctx, drone.CounterClockwise, 90) }, []string{"CounterClockwise", "Hover"}},
		{"flip f", func() error { return g.Flip(ctx, drone.FlipFront) }, []string{"FrontFlip"}},
		{"flip b", func() error { return g.Flip(ctx, drone.FlipBack) }, []string{"BackFlip"}},
		{"flip l", func() error { return g.Flip(ctx, drone.FlipLeft) }, []string{"LeftFlip"}},
		{"flip r", func() error { return g.Flip(ctx, drone.FlipRight) }, []string{"RightFlip"}},
		{"land", func() error { return g.Land(ctx) }, []string{"Land"}},
	}

	for _, step := range steps {
		before := len(drv.Calls())
		if err := step.call(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got := drv.Calls()[before:]
		if len(got) != len(step.want) {
			t.Errorf("%s: expected %v, got %v", step.name, step.want, got)
			continue
		}
		for i := range got {
			if got[i] != step.want[i] {
				t.Errorf("%s: expected %v, got %v", step.name, step.want, got)
				break
			}
		}
	}
}

func TestGobotClient_StickError(t *testing.T) {
	drv := newFakeDriver()
	drv.stickErr = errors.New("write: network is down")
	g := newTestGobotClient(drv)

	err := g.Move(context.Background(), drone.Up, 20)
	if !errors.Is(err, drone.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}

	calls := drv.Calls()
	if len(calls) == 0 || calls[len(calls)-1] != "Hover" {
		t.Errorf("expected a hover after a failed stick command, got %v", calls)
	}
}

func TestGobotClient_PulseCancel(t *testing.T) {
	drv := newFakeDriver()
	g := newGobotClient(drv, GobotConfig{PulsePerCM: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Move(ctx, drone.Forward, 100)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	calls := drv.Calls()
	if calls[len(calls)-1] != "Hover" {
		t.Errorf("expected a hover after cancel, got %v", calls)
	}
}

func TestGobotClient_Unsupported(t *testing.T) {
	g := newTestGobotClient(newFakeDriver())
	ctx := context.Background()

	if err := g.Emergency(ctx); !errors.Is(err, drone.ErrUnsupportedCommand) {
		t.Errorf("Emergency: expected ErrUnsupportedCommand, got %v", err)
	}
	if err := g.SetSpeed(ctx, 50); !errors.Is(err, drone.ErrUnsupportedCommand) {
		t.Errorf("SetSpeed: expected ErrUnsupportedCommand, got %v", err)
	}
	if err := g.Move(ctx, drone.Direction("sideways"), 10); !errors.Is(err, drone.ErrUnsupportedCommand) {
		t.Errorf("Move: expected ErrUnsupportedCommand, got %v", err)
	}
}

func TestGobotClient_FlightData(t *testing.T) {
	drv := newFakeDriver()
	g := newTestGobotClient(drv)

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close()

	drv.emit(gtello.WifiDataEvent, &gtello.WifiData{Strength: 90})
	drv.emit(gtello.FlightDataEvent, &gtello.FlightData{
		BatteryPercentage: 64,
		Height:            12,
		FlyTime:           30,
	})
	drv.emit(gtello.FlightDataEvent, "ignored")
	drv.emit(gtello.WifiDataEvent, "ignored")

	tel := g.Telemetry()
	if tel.Battery != 64 {
		t.Errorf("Battery: expected 64, got %d", tel.Battery)
	}
	if tel.Height != 120 {
		t.Errorf("Height: expected 120 cm, got %d", tel.Height)
	}
	if tel.WiFi != 90 {
		t.Errorf("WiFi: expected 90 kept across flight data, got %d", tel.WiFi)
	}
	if tel.FlightTime != 30 {
		t.Errorf("FlightTime: expected 30, got %d", tel.FlightTime)
	}
}

func TestGobotClient_VideoBeforeStream(t *testing.T) {
	drv := newFakeDriver()
	g := newTestGobotClient(drv)

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close()

	// Packets before StreamOn are dropped without blocking.
	drv.emit(gtello.VideoFrameEvent, []byte{0, 0, 0, 1})

	img, err := g.Frame()
	if img != nil || err != nil {
		t.Errorf("expected no frame yet, got %v, %v", img, err)
	}
}
