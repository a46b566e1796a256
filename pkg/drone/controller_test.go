package drone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-tello/pkg/mjpeg"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestController(t *testing.T, mock *Mock, opts ...Option) (*Controller, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithStreamOptions(mjpeg.Options{MaxFPS: 100}),
	}
	c := NewController(mock, append(base, opts...)...)
	t.Cleanup(func() { c.Close() })
	return c, logs
}

func startController(t *testing.T, mock *Mock, opts ...Option) (*Controller, *syncBuffer) {
	t.Helper()
	c, logs := newTestController(t, mock, opts...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, logs
}

func TestExecuteString_KnownCommands(t *testing.T) {
	tests := []struct {
		input string
		want  MockCall
	}{
		{"take off", MockCall{Method: "TakeOff"}},
		{"land", MockCall{Method: "Land"}},
		{"forward", MockCall{Method: "Move", Arg: "forward", Amount: 30}},
		{"left", MockCall{Method: "Move", Arg: "left", Amount: 30}},
		{"right", MockCall{Method: "Move", Arg: "right", Amount: 30}},
		{"up", MockCall{Method: "Move", Arg: "up", Amount: 30}},
		{"down", MockCall{Method: "Move", Arg: "down", Amount: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mock := NewMock()
			c, _ := startController(t, mock)

			if err := c.ExecuteString(context.Background(), tt.input); err != nil {
				t.Fatalf("ExecuteString(%q): %v", tt.input, err)
			}

			calls := mock.MotionCalls()
			if len(calls) != 1 {
				t.Fatalf("expected exactly 1 motion call, got %v", calls)
			}
			if calls[0] != tt.want {
				t.Errorf("call = %v, want %v", calls[0], tt.want)
			}
		})
	}
}

func TestExecuteString_UnknownCommand(t *testing.T) {
	mock := NewMock()
	c, logs := startController(t, mock)

	err := c.ExecuteString(context.Background(), "fly sideways")
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("err = %v, want ErrUnsupportedCommand", err)
	}

	if calls := mock.MotionCalls(); len(calls) != 0 {
		t.Errorf("expected no motion calls, got %v", calls)
	}
	if n := strings.Count(logs.String(), "Unknown command"); n != 1 {
		t.Errorf("expected exactly one 'Unknown command' notice, got %d\n%s", n, logs.String())
	}
}

func TestExecuteString_CustomDistance(t *testing.T) {
	mock := NewMock()
	c, _ := startController(t, mock, WithDistance(80))

	if err := c.ExecuteString(context.Background(), "up"); err != nil {
		t.Fatal(err)
	}
	calls := mock.MotionCalls()
	if len(calls) != 1 || calls[0].Amount != 80 {
		t.Errorf("calls = %v, want one Move with 80", calls)
	}
}

func TestExecute_BeforeStart(t *testing.T) {
	mock := NewMock()
	c, _ := newTestController(t, mock)

	err := c.Execute(context.Background(), TakeOff())
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
	if len(mock.Calls()) != 0 {
		t.Errorf("expected no SDK calls, got %v", mock.Calls())
	}
	if c.History().Len() != 1 {
		t.Errorf("rejected command should still be recorded")
	}
}

func TestExecute_ExtendedCommands(t *testing.T) {
	mock := NewMock()
	c, _ := startController(t, mock)
	ctx := context.Background()

	cmds := []Command{Emergency(), Rotate(Clockwise, 90), Flip(FlipBack), Speed(50), Move(Back, 100)}
	for _, cmd := range cmds {
		if err := c.Execute(ctx, cmd); err != nil {
			t.Fatalf("Execute(%s): %v", cmd, err)
		}
	}

	want := []MockCall{
		{Method: "Emergency"},
		{Method: "Rotate", Arg: "cw", Amount: 90},
		{Method: "Flip", Arg: "b"},
		{Method: "SetSpeed", Amount: 50},
		{Method: "Move", Arg: "back", Amount: 100},
	}
	calls := mock.MotionCalls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestExecute_ErrorIsSurfaced(t *testing.T) {
	mock := NewMock()
	mock.CommandFunc = func(call MockCall) error {
		return ErrCommandRejected
	}
	c, _ := startController(t, mock)

	err := c.Execute(context.Background(), Land())
	if !errors.Is(err, ErrCommandRejected) {
		t.Fatalf("err = %v, want ErrCommandRejected", err)
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Command != Land() {
		t.Errorf("expected *CommandError for land, got %v", err)
	}

	recs := c.History().Records()
	if len(recs) != 1 || recs[0].Error == "" {
		t.Errorf("history = %+v, want one failed record", recs)
	}
}

func TestStart_Twice(t *testing.T) {
	mock := NewMock()
	c, _ := startController(t, mock)

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}

	connects := 0
	for _, call := range mock.Calls() {
		if call.Method == "Connect" {
			connects++
		}
	}
	if connects != 1 {
		t.Errorf("Connect called %d times, want 1", connects)
	}
}

func TestStart_ConnectFailure(t *testing.T) {
	mock := NewMock()
	mock.ConnectFunc = func(ctx context.Context) error {
		return ErrConnectionLost
	}
	c, _ := newTestController(t, mock)

	if err := c.Start(context.Background()); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("Start err = %v, want ErrConnectionLost", err)
	}
	if c.Status().Started {
		t.Error("controller should not be started after failed connect")
	}
	if err := c.Execute(context.Background(), TakeOff()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Execute err = %v, want ErrNotStarted", err)
	}
}

func TestStart_CommandsFailFastWhileConnecting(t *testing.T) {
	mock := NewMock()
	entered := make(chan struct{})
	release := make(chan struct{})
	mock.ConnectFunc = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}
	c, _ := newTestController(t, mock)

	started := make(chan error, 1)
	go func() { started <- c.Start(context.Background()) }()
	<-entered

	result := make(chan error, 1)
	go func() { result <- c.Execute(context.Background(), TakeOff()) }()
	select {
	case err := <-result:
		if !errors.Is(err, ErrNotStarted) {
			t.Errorf("Execute err = %v, want ErrNotStarted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute blocked while Start was connecting")
	}

	st := c.Status()
	if st.Started || !st.Starting {
		t.Errorf("status = %+v, want starting and not started", st)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("concurrent Start err = %v, want ErrAlreadyStarted", err)
	}

	close(release)
	if err := <-started; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := c.Status(); !st.Started || st.Starting {
		t.Errorf("status = %+v, want started", st)
	}
}

func TestConn_FrameKeepsBackendError(t *testing.T) {
	errStopped := errors.New("decoder stopped")
	mock := NewMock()
	mock.FrameFunc = func() (image.Image, error) {
		return nil, fmt.Errorf("read frame: %w", errStopped)
	}

	conn := NewConn(mock)
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	_, err := conn.Frame()
	if !errors.Is(err, ErrConnectionLost) {
		t.Errorf("err = %v, want ErrConnectionLost", err)
	}
	if !errors.Is(err, errStopped) {
		t.Errorf("err = %v, want the backend cause kept in the chain", err)
	}
}

func TestConn_CloseDuringOpen(t *testing.T) {
	mock := NewMock()
	entered := make(chan struct{})
	release := make(chan struct{})
	mock.ConnectFunc = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}

	conn := NewConn(mock)
	opened := make(chan error, 1)
	go func() { opened <- conn.Open(context.Background()) }()
	<-entered

	if conn.IsOpen() {
		t.Error("IsOpen during handshake")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(release)

	if err := <-opened; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Open err = %v, want ErrConnectionLost", err)
	}
	if !mock.Closed() {
		t.Error("SDK left open after Close during handshake")
	}
}

func TestStream_DeliversDecodableFrames(t *testing.T) {
	mock := NewMock()
	c, _ := startController(t, mock)

	frames, unsubscribe := c.Subscribe(4)
	defer unsubscribe()

	for i := 0; i < 3; i++ {
		select {
		case data := <-frames:
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("frame %d: invalid JPEG: %v", i, err)
			}
			if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
				t.Errorf("frame %d: size %v, want 320x240", i, img.Bounds())
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	snap, err := c.Snapshot()
	if err != nil || len(snap) == 0 {
		t.Errorf("Snapshot() = %d bytes, %v", len(snap), err)
	}
	if c.Status().Frames < 3 {
		t.Errorf("Frames = %d, want >= 3", c.Status().Frames)
	}
}

func TestSnapshot_BeforeFirstFrame(t *testing.T) {
	c, _ := newTestController(t, NewMock())
	if _, err := c.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("err = %v, want ErrNoFrame", err)
	}
}

func TestStream_RunsUntilClose(t *testing.T) {
	mock := NewMock()
	c, _ := startController(t, mock)
	done := c.Done()

	select {
	case <-done:
		t.Fatal("streamer stopped on its own")
	case <-time.After(50 * time.Millisecond):
	}
	if !c.Status().Streaming {
		t.Error("Status().Streaming should be true while running")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("Close returned before streamer exited")
	}
	if !mock.Closed() {
		t.Error("SDK connection should be released on Close")
	}
	if err := c.Execute(context.Background(), Land()); !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Execute after Close err = %v, want ErrConnectionLost", err)
	}
}

func TestStream_StopsOnContextCancel(t *testing.T) {
	mock := NewMock()
	c, _ := newTestController(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("streamer did not stop after context cancel")
	}
	if !errors.Is(c.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", c.Err())
	}
	if !mock.Closed() {
		t.Error("SDK connection should be released when the streamer is cancelled")
	}
}

func TestStream_FaultLeavesCommandsWorking(t *testing.T) {
	mock := NewMock()
	mock.FrameFunc = func() (image.Image, error) {
		return nil, errors.New("decoder died")
	}
	c, _ := startController(t, mock)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("streamer should stop on read fault")
	}

	if !errors.Is(c.Err(), ErrConnectionLost) {
		t.Errorf("Err() = %v, want ErrConnectionLost", c.Err())
	}
	if st := c.Status(); st.Streaming || st.LastError == "" {
		t.Errorf("Status = %+v, want stopped with error", st)
	}

	if err := c.ExecuteString(context.Background(), "land"); err != nil {
		t.Errorf("commands should still work after stream fault: %v", err)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c, _ := startController(t, NewMock())

	frames, unsubscribe := c.Subscribe(1)
	unsubscribe()
	unsubscribe() // idempotent

	// Drain until the channel reports closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after unsubscribe")
		}
	}
}

func TestController_ConcurrentCommandsAndStream(t *testing.T) {
	mock := NewMock()
	c, _ := startController(t, mock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c.ExecuteString(context.Background(), "up")
				c.Status()
				c.Snapshot()
			}
		}()
	}
	wg.Wait()

	if n := len(mock.MotionCalls()); n != 80 {
		t.Errorf("motion calls = %d, want 80", n)
	}
}

func TestStatus_Telemetry(t *testing.T) {
	mock := NewMock()
	mock.State = Telemetry{Battery: 87, Height: 120}
	c, _ := startController(t, mock)

	st := c.Status()
	if !st.Started || st.Telemetry.Battery != 87 || st.Telemetry.Height != 120 {
		t.Errorf("Status = %+v", st)
	}
}
