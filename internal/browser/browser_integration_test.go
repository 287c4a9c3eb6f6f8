//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"webconcolic/internal/browser"
	"webconcolic/internal/driver"
	"webconcolic/internal/solver"
	"webconcolic/internal/tracebuild"
)

func TestBridge_Navigation_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "<html><body><h1>Hello World</h1></body></html>")
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.NavigationTimeoutMs = 10000
	cfg.PollIntervalMs = 20

	b := browser.New(cfg)
	defer func() {
		if err := b.Shutdown(); err != nil {
			t.Logf("shutdown error: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	events, err := b.Run(ctx, ts.URL, nil)
	require.NoError(t, err, "failed to start run")

	sawPageLoad := false
	for ev := range events {
		if ev.Kind == tracebuild.EventPageLoad && ev.URL == ts.URL {
			sawPageLoad = true
			cancel()
		}
	}
	require.True(t, sawPageLoad, "expected an EventPageLoad for %s", ts.URL)
}

func TestBridge_Injection_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, `
			<html>
			<body>
				<input id="inp1" name="inp1" type="text" />
			</body>
			</html>
		`)
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.NavigationTimeoutMs = 10000
	cfg.PollIntervalMs = 20

	b := browser.New(cfg)
	defer func() {
		if err := b.Shutdown(); err != nil {
			t.Logf("shutdown error: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	actions := []driver.InjectAction{
		{Variable: "inp1", Value: solver.Value{Kind: solver.KindString, Str: "hello"}},
	}
	events, err := b.Run(ctx, ts.URL, actions)
	require.NoError(t, err, "failed to start run")

	for ev := range events {
		if ev.Kind == tracebuild.EventPageLoad {
			cancel()
		}
	}
}
