package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcstatus "github.com/oshokin/fire-sentinel/internal/api/grpc/status"
	"github.com/oshokin/fire-sentinel/internal/api/rest"
	"github.com/oshokin/fire-sentinel/internal/domain/fire"
	"github.com/oshokin/fire-sentinel/internal/metrics"
	"github.com/oshokin/fire-sentinel/internal/notify"
	"github.com/oshokin/fire-sentinel/internal/service/common"
	"github.com/oshokin/fire-sentinel/internal/service/sentinel"
)

// clock is advanced by the source, one frame interval per read.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type frame struct{ n int }

func (f frame) JPEG() ([]byte, error) { return fmt.Appendf(nil, "frame-%d", f.n), nil }
func (frame) Close() error            { return nil }

// feed yields fire frames and then blocks until cancelled, like a live camera
// pointed at a fire that keeps burning off-screen.
type feed struct {
	clock  *clock
	frames int
	read   int
}

func (f *feed) Read(ctx context.Context) (sentinel.Frame, error) {
	if f.read >= f.frames {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	f.read++
	f.clock.advance(100 * time.Millisecond)

	return frame{n: f.read}, nil
}

func (*feed) Close() error { return nil }

type fireDetector struct{}

func (fireDetector) Detect(context.Context, sentinel.Frame) ([]fire.Detection, error) {
	return []fire.Detection{{Label: "fire", Confidence: 0.9}}, nil
}

type link struct {
	mu       sync.Mutex
	commands []fire.Command
}

func (l *link) Send(_ context.Context, cmd fire.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.commands = append(l.commands, cmd)

	return nil
}

func (*link) Close() error { return nil }

func (l *link) sent() []fire.Command {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]fire.Command(nil), l.commands...)
}

// TestPipeline_AlarmVisibleToClients raises an alarm and reads it back over gRPC and HTTP.
func TestPipeline_AlarmVisibleToClients(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := &clock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	board := sentinel.NewBoard()
	m := metrics.New()
	actuator := new(link)

	alerts := make(chan notify.Alert, 1)
	dispatcher := notify.NewDispatcher(notify.NotifierFunc(func(_ context.Context, alert notify.Alert) error {
		alerts <- alert

		return nil
	}), notify.WithObserver(m.NotificationFinished))

	controller := sentinel.NewController(
		fire.NewMachine(fire.Windows{Confirmation: time.Second, Cooldown: time.Second}),
		actuator,
		dispatcher,
		sentinel.WithBoard(board),
		sentinel.WithMetrics(m),
		sentinel.WithClock(clk.Now),
		sentinel.WithAlert("FIRE", "@ops"),
	)

	loop := sentinel.NewLoop(&feed{clock: clk, frames: 15}, fireDetector{}, nil, controller, actuator, dispatcher,
		sentinel.LoopConfig{Threshold: 0.7, ShutdownGrace: time.Second})

	lis, err := (&net.ListenConfig{}).Listen(ctx, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup

	wg.Go(func() {
		_ = grpcstatus.ServeListener(ctx, lis, board) //nolint:errcheck // Stopped by cancel.
	})

	httpSrv := httptest.NewServer(rest.NewServer(ctx, board, m.Handler()).Handler())
	defer httpSrv.Close()

	loopDone := make(chan error, 1)

	go func() {
		loopDone <- loop.Run(ctx)
	}()

	select {
	case alert := <-alerts:
		require.Equal(t, "@ops", alert.Recipient)
		require.Equal(t, []byte("frame-11"), alert.Image)
	case <-time.After(5 * time.Second):
		t.Fatal("alert not delivered")
	}

	client, err := common.Dial(ctx, lis.Addr().String(), common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer client.Close()

	require.Eventually(t, func() bool {
		doc, getErr := client.GetStatus(ctx)
		if getErr != nil {
			return false
		}

		fields := doc.GetFields()

		return fields["phase"].GetStringValue() == "ALARMED" && fields["notified"].GetBoolValue()
	}, 5*time.Second, 20*time.Millisecond)

	serving, err := client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, serving)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/v1/status", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "ALARMED", status["phase"])

	cancel()

	require.NoError(t, <-loopDone)
	wg.Wait()

	require.Equal(t, []fire.Command{
		fire.CommandStop,
		fire.CommandFire,
		fire.CommandStop,
		fire.CommandReset,
	}, actuator.sent())
}
