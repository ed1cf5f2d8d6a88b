// Package mockdevice simulates the cloud device API of a Raypak heater for
// demos and manual testing.
//
// The simulated water warms toward the setpoint while the heater is in heat
// mode and cools toward ambient otherwise. The hardware occasionally drops
// offline for a few polls.
package mockdevice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ambient     = 68.0
	heatPerTick = 0.6
	lossPerTick = 0.2
)

// Device is a simulated heater behind the device API.
type Device struct {
	token  string
	logger *slog.Logger

	mu          sync.Mutex
	water       float64
	setpoint    int
	heating     bool
	cycles      int
	offlineLeft int
	lastTick    time.Time
}

// New returns a Device accepting only token.
func New(token string, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		token:    token,
		logger:   logger,
		water:    74.0,
		setpoint: 84,
		heating:  true,
		lastTick: time.Now(),
	}
}

// Handler serves getAll, isHardwareConnected and update under /external/api/.
func (d *Device) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/external/api/getAll", d.authorized(d.handleGetAll))
	mux.HandleFunc("/external/api/isHardwareConnected", d.authorized(d.handleConnected))
	mux.HandleFunc("/external/api/update", d.authorized(d.handleUpdate))
	return mux
}

// ListenAndServe serves the device API on addr until the server fails.
func (d *Device) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (d *Device) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != d.token {
			http.Error(w, "Invalid token.", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (d *Device) handleGetAll(w http.ResponseWriter, r *http.Request) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	d.mu.Lock()
	d.advance()
	values := d.pins()
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(values); err != nil {
		d.logger.Error("failed to write response", "error", err)
	}
}

func (d *Device) handleConnected(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	connected := d.offlineLeft == 0
	if d.offlineLeft > 0 {
		d.offlineLeft--
	} else if rand.Intn(40) == 0 {
		d.offlineLeft = 2 + rand.Intn(3)
		d.logger.Info("hardware going offline", "polls", d.offlineLeft)
	}
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprint(w, connected)
}

func (d *Device) handleUpdate(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for pin, vs := range r.URL.Query() {
		if pin == "token" || len(vs) == 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(vs[0]))
		if err != nil {
			http.Error(w, "Wrong value.", http.StatusBadRequest)
			return
		}
		switch pin {
		case "v111":
			d.setpoint = n
		case "v53":
			d.heating = n != 0
		default:
			http.Error(w, "Pin is read-only.", http.StatusBadRequest)
			return
		}
		d.logger.Info("pin updated", "pin", pin, "value", n)
	}
}

// advance moves the simulation forward by the number of whole seconds
// since the last call. Caller holds mu.
func (d *Device) advance() {
	ticks := int(time.Since(d.lastTick) / time.Second)
	if ticks == 0 {
		return
	}
	d.lastTick = d.lastTick.Add(time.Duration(ticks) * time.Second)

	for range ticks {
		firing := d.heating && d.water < float64(d.setpoint)
		switch {
		case firing:
			if d.water < float64(d.setpoint)-heatPerTick {
				d.water += heatPerTick
			} else {
				d.water = float64(d.setpoint)
				d.cycles++
			}
		case d.water > ambient:
			d.water -= lossPerTick
		}
	}
}

// pins renders the state as the device reports it: numbers as strings,
// some text fields quoted.
func (d *Device) pins() map[string]string {
	firing := d.heating && d.water < float64(d.setpoint)
	firingRate, flame, flue, outlet := "0", "0.0", fmt.Sprintf("%.1f", d.water), fmt.Sprintf("%.1f", d.water)
	if firing {
		firingRate = "100"
		flame = fmt.Sprintf("%.1f", 4.5+rand.Float64())
		flue = fmt.Sprintf("%.1f", 180+rand.Float64()*20)
		outlet = fmt.Sprintf("%.1f", d.water+8+rand.Float64())
	}
	mode := "0"
	if d.heating {
		mode = "1"
	}

	return map[string]string{
		"v52":  fmt.Sprintf("%.2f", d.water+rand.Float64()*0.1),
		"v5":   outlet,
		"v6":   flue,
		"v53":  mode,
		"v55":  `"120 VAC"`,
		"v111": strconv.Itoa(d.setpoint),
		"v10":  flame,
		"v11":  "0",
		"v13":  `"No Error"`,
		"v105": "100",
		"v45":  strconv.Itoa(d.cycles),
		"v25":  "1234.5",
		"v27":  "87",
		"v29":  "12.34",
		"v7":   "45.0",
		"v14":  "75",
		"v162": "1",
		"v160": firingRate,
	}
}
