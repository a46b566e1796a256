package drone

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// Mock implements SDK for testing.
// All methods record their invocation; behaviour can be customized via
// the function fields.
type Mock struct {
	// CommandFunc, if set, is called for every flight/motion call and its
	// error returned.
	CommandFunc func(call MockCall) error

	// ConnectFunc, if set, is called by Connect.
	ConnectFunc func(ctx context.Context) error

	// FrameFunc, if set, replaces the default frame source, which returns
	// a solid 320x240 image.
	FrameFunc func() (image.Image, error)

	// State is returned by Telemetry.
	State Telemetry

	mu     sync.Mutex
	calls  []MockCall
	closed bool
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Arg    string
	Amount int
}

// String renders the call as "Method(arg, amount)".
func (c MockCall) String() string {
	return fmt.Sprintf("%s(%s, %d)", c.Method, c.Arg, c.Amount)
}

// NewMock creates a mock with a static test frame.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) record(call MockCall) error {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	fn := m.CommandFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	return nil
}

// Calls returns every recorded call in order.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MotionCalls returns recorded calls excluding Connect, StreamOn and Close.
func (m *Mock) MotionCalls() []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		switch c.Method {
		case "Connect", "StreamOn", "Close":
		default:
			out = append(out, c)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Connect implements Connector.
func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Connect"})
	fn := m.ConnectFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// StreamOn implements Connector.
func (m *Mock) StreamOn(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "StreamOn"})
	m.mu.Unlock()
	return nil
}

// Close implements Connector.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Close"})
	m.closed = true
	m.mu.Unlock()
	return nil
}

// TakeOff implements Flyer.
func (m *Mock) TakeOff(ctx context.Context) error {
	return m.record(MockCall{Method: "TakeOff"})
}

// Land implements Flyer.
func (m *Mock) Land(ctx context.Context) error {
	return m.record(MockCall{Method: "Land"})
}

// Emergency implements Flyer.
func (m *Mock) Emergency(ctx context.Context) error {
	return m.record(MockCall{Method: "Emergency"})
}

// Move implements Mover.
func (m *Mock) Move(ctx context.Context, dir Direction, cm int) error {
	return m.record(MockCall{Method: "Move", Arg: string(dir), Amount: cm})
}

// Rotate implements Mover.
func (m *Mock) Rotate(ctx context.Context, rot Rotation, degrees int) error {
	return m.record(MockCall{Method: "Rotate", Arg: string(rot), Amount: degrees})
}

// Flip implements Mover.
func (m *Mock) Flip(ctx context.Context, dir FlipDirection) error {
	return m.record(MockCall{Method: "Flip", Arg: string(dir)})
}

// SetSpeed implements Mover.
func (m *Mock) SetSpeed(ctx context.Context, cms int) error {
	return m.record(MockCall{Method: "SetSpeed", Amount: cms})
}

var mockFrame = func() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 120, 200, 255
	}
	img.Set(0, 0, color.White)
	return img
}()

// Frame implements FrameSource.
func (m *Mock) Frame() (image.Image, error) {
	if m.FrameFunc != nil {
		return m.FrameFunc()
	}
	return mockFrame, nil
}

// Telemetry implements TelemetrySource.
func (m *Mock) Telemetry() Telemetry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.State
}

var _ SDK = (*Mock)(nil)
