package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/internal/logging"
)

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Default()
	cfg.Server.MetricsAddr = ""
	cfg.Geocoder.Enabled = false

	log := logging.New(logging.Config{Level: "warn"})
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis, prometheus.NewRegistry())
	}()

	base := "http://" + lis.Addr().String()
	resp, err := http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(base+"/api/flyin", "application/json", strings.NewReader(`{"city":"Sydney","fps":5,"durationSeconds":2}`))
	if err != nil {
		t.Fatalf("POST /api/flyin: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("flyin status = %d, want 200", resp.StatusCode)
	}
	var plan struct {
		Frames []json.RawMessage `json:"frames"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.Frames) != 10 {
		t.Fatalf("frames = %d, want 10", len(plan.Frames))
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestRunStopsMetricsWhenServeFails(t *testing.T) {
	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	metricsAddr := reserved.Addr().String()
	reserved.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	lis.Close()

	cfg := config.Default()
	cfg.Server.MetricsAddr = metricsAddr
	cfg.Geocoder.Enabled = false

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, logging.Noop(), lis, prometheus.NewRegistry())
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("run returned nil for a closed listener")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after Serve failed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		again, err := net.Listen("tcp", metricsAddr)
		if err == nil {
			again.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics listener still bound after run returned: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
