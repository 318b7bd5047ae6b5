package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServeCmdServesSnapshotAPI(t *testing.T) {
	isolateHome(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		root := newRootCmd()
		root.SetOut(pw)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"serve", "--addr", "localhost:0", "--interval", "0",
			"--nodes", "25", "--start", "--infected", "3"})
		err := root.ExecuteContext(ctx)
		pw.Close()
		done <- err
	}()

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(pr).ReadString('\n')
		lines <- line
		io.Copy(io.Discard, pr)
	}()

	var url string
	select {
	case line := <-lines:
		const prefix = "Snapshot server running at "
		if !strings.HasPrefix(line, prefix) {
			t.Fatalf("unexpected first line %q", line)
		}
		url = strings.TrimSpace(strings.TrimPrefix(line, prefix))
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for server output")
	}

	resp, err := http.Get(url + "/api/statistics")
	if err != nil {
		t.Fatalf("GET statistics: %v", err)
	}
	var stats struct {
		Infected int  `json:"infected"`
		Running  bool `json:"running"`
	}
	err = json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !stats.Running || stats.Infected != 1 {
		t.Errorf("statistics = %+v, want a started run with one infected node", stats)
	}

	resp, err = http.Get(url + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "gossipsim_running 1") {
		t.Errorf("metrics missing running gauge:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServeCmdRejectsInvalidConfig(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, "serve", "--nodes", "0")
	if err == nil || !strings.Contains(err.Error(), "topology.nodes") {
		t.Errorf("err = %v, want topology.nodes error", err)
	}
}

func TestMCPServerCmdRejectsInvalidConfig(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, "mcp-server", "--recovery", "-1")
	if err == nil || !strings.Contains(err.Error(), "recovery_probability") {
		t.Errorf("err = %v, want recovery_probability error", err)
	}
}
