package visualization

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/telemetry"
)

func newTestServer(t *testing.T, nodes int) (*driver.Driver, *httptest.Server) {
	t.Helper()
	d := newTestDriver(t, nodes)
	srv := NewServer(d, "", WithMetrics(telemetry.New()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return d, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_Index(t *testing.T) {
	_, ts := newTestServer(t, 5)

	resp := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "/api/snapshot")

	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/nope").StatusCode)
}

func TestServer_Snapshot(t *testing.T) {
	_, ts := newTestServer(t, 15)

	resp := get(t, ts.URL+"/api/snapshot")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	snap := decode[driver.Snapshot](t, resp)
	assert.Len(t, snap.Nodes, 15)
	assert.Equal(t, 15, snap.Statistics.Susceptible)
}

func TestServer_StartStepReset(t *testing.T) {
	d, ts := newTestServer(t, 20)

	resp := post(t, ts.URL+"/api/start?ids=2,4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[gossip.Statistics](t, resp)
	assert.Equal(t, 2, stats.Infected)
	assert.True(t, stats.Running)

	resp = post(t, ts.URL+"/api/step", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	step := decode[stepResponse](t, resp)
	assert.True(t, step.Report.Advanced)
	assert.Equal(t, 1, step.Statistics.Step)
	assert.Equal(t, 1, d.Statistics().Step)

	resp = post(t, ts.URL+"/api/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats = decode[gossip.Statistics](t, resp)
	assert.Equal(t, 20, stats.Susceptible)
	assert.False(t, stats.Running)
}

func TestServer_StartErrors(t *testing.T) {
	_, ts := newTestServer(t, 5)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/start?ids=9", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/start?ids=a", "").StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, ts.URL+"/api/start").StatusCode)
}

func TestServer_Parameters(t *testing.T) {
	d, ts := newTestServer(t, 5)

	resp := post(t, ts.URL+"/api/parameters", `{"fanout": 6, "recovery_probability": 0.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[gossip.Parameters](t, resp)
	assert.Equal(t, 6, p.Fanout)
	assert.Equal(t, 0.5, d.Parameters().RecoveryProbability)

	resp = get(t, ts.URL+"/api/parameters")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6, decode[gossip.Parameters](t, resp).Fanout)
}

func TestServer_ParametersRejected(t *testing.T) {
	d, ts := newTestServer(t, 5)
	before := d.Parameters()

	tests := []struct {
		name string
		body string
	}{
		{"out of range", `{"transmission_probability": 2}`},
		{"unknown field", `{"speed": 3}`},
		{"wrong type", `{"fanout": "many"}`},
		{"not json", `fanout=3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/parameters", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Equal(t, before, d.Parameters())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/parameters", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_History(t *testing.T) {
	d, ts := newTestServer(t, 2)
	require.NoError(t, d.UpdateParameterFields(map[string]any{
		"transmission_probability": 1.0,
		"infection_probability":    1.0,
		"recovery_probability":     0.0,
	}))
	require.NoError(t, d.Start([]int{0}))
	d.Step()

	resp := get(t, ts.URL+"/api/history?node=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]gossip.Message](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].Origin)
	assert.Equal(t, 1, history[0].HopCount)

	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/history?node=7").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/history").StatusCode)
}

func TestServer_Rebuild(t *testing.T) {
	d, ts := newTestServer(t, 5)

	resp := post(t, ts.URL+"/api/rebuild?nodes=30", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, d.Snapshot().Nodes, 30)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/rebuild?nodes=-1", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/rebuild", "").StatusCode)
	assert.Len(t, d.Snapshot().Nodes, 30)
}

func TestServer_DOTAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, 8)

	resp := get(t, ts.URL+"/graph.dot")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(body), "graph gossip {"))

	resp = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `gossipsim_requests_total{op="dot",status="2xx"} 1`)
}

func TestServer_MetricsFollowReset(t *testing.T) {
	params := gossip.DefaultParameters()
	params.TransmissionProbability = 1
	params.InfectionProbability = 1
	params.RecoveryProbability = 0
	e, err := gossip.NewEngine(20, 800, 600, 7, gossip.WithParameters(params))
	require.NoError(t, err)

	m := telemetry.New()
	d := driver.New(e, driver.WithObserver(driver.MetricsObserver{Metrics: m}))
	ts := httptest.NewServer(NewServer(d, "", WithMetrics(m)).Handler())
	t.Cleanup(ts.Close)

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/start", "").StatusCode)
	for i := 0; i < 5; i++ {
		post(t, ts.URL+"/api/step", "")
	}
	body, _ := io.ReadAll(get(t, ts.URL+"/metrics").Body)
	assert.Contains(t, string(body), "gossipsim_running 1")
	assert.Contains(t, string(body), "gossipsim_step 5")

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/reset", "").StatusCode)
	body, _ = io.ReadAll(get(t, ts.URL+"/metrics").Body)
	for _, want := range []string{
		"gossipsim_step 0",
		"gossipsim_running 0",
		`gossipsim_nodes{state="susceptible"} 20`,
		`gossipsim_nodes{state="infected"} 0`,
		"gossipsim_steps_total 5",
	} {
		assert.Contains(t, string(body), want)
	}
}

func TestServer_ListenAndServe(t *testing.T) {
	d := newTestDriver(t, 10)
	require.NoError(t, d.Start(nil))

	srv := NewServer(d, "", WithAutoStep(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	waitForServer(t, srv, 2*time.Second)

	// the auto-stepper advances the run started before serving
	require.Eventually(t, func() bool { return d.Statistics().Step > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down within 3 seconds")
	}
}

func TestServer_ListenError(t *testing.T) {
	srv := NewServer(newTestDriver(t, 1), "256.0.0.1:bad")
	err := srv.ListenAndServe(context.Background())
	assert.Error(t, err)
}

// waitForServer polls the server until it's ready or the timeout is reached.
func waitForServer(t *testing.T, srv *Server, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		addr := srv.Addr()
		if addr == "" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start within timeout")
}
