package mockdevice

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jpalmerr/raypak/internal/poller"
)

func newTestDevice(t *testing.T) (*Device, *poller.Client) {
	t.Helper()
	d := New("tok", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(d.Handler())
	t.Cleanup(ts.Close)
	return d, poller.NewClient(ts.URL, "tok", 2*time.Second)
}

func TestDevice_ServesEveryPin(t *testing.T) {
	_, client := newTestDevice(t)

	values, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	for _, pin := range []string{"v52", "v111", "v53", "v13", "v160"} {
		if _, ok := values[pin]; !ok {
			t.Errorf("pin %s missing", pin)
		}
	}
	if values["v111"] != "84" {
		t.Errorf("v111 = %#v, want \"84\"", values["v111"])
	}
}

func TestDevice_Update(t *testing.T) {
	d, client := newTestDevice(t)
	ctx := context.Background()

	if err := client.Write(ctx, "v111", "90"); err != nil {
		t.Fatalf("Write(v111) error = %v", err)
	}
	if err := client.Write(ctx, "v53", "0"); err != nil {
		t.Fatalf("Write(v53) error = %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.setpoint != 90 {
		t.Errorf("setpoint = %d, want 90", d.setpoint)
	}
	if d.heating {
		t.Error("heating = true, want false")
	}
}

func TestDevice_UpdateRejected(t *testing.T) {
	_, client := newTestDevice(t)

	for _, tt := range []struct{ pin, value string }{{"v52", "80"}, {"v111", "hot"}} {
		if err := client.Write(context.Background(), tt.pin, tt.value); poller.Classify(err) != poller.KindTransient {
			t.Errorf("Write(%s=%s) error = %v, want transient", tt.pin, tt.value, err)
		}
	}
}

func TestDevice_RejectsToken(t *testing.T) {
	d := New("tok", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(d.Handler())
	defer ts.Close()

	client := poller.NewClient(ts.URL, "wrong", time.Second)
	if _, err := client.FetchConnected(context.Background()); poller.Classify(err) != poller.KindAuth {
		t.Errorf("FetchConnected() error = %v, want auth failure", err)
	}
}

func TestDevice_Advance(t *testing.T) {
	d := New("tok", nil)
	d.lastTick = time.Now().Add(-10 * time.Second)
	start := d.water

	d.advance()
	if d.water <= start {
		t.Errorf("water = %.1f, want warmer than %.1f while heating", d.water, start)
	}

	d.heating = false
	d.lastTick = time.Now().Add(-5 * time.Second)
	warm := d.water
	d.advance()
	if d.water >= warm {
		t.Errorf("water = %.1f, want cooler than %.1f when off", d.water, warm)
	}
}
