package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  metrics.portal  ": "metrics.portal",
		"..foo..":            "foo",
		".":                  "",
		"":                   "",
	}

	for input, want := range tests {
		if got := sanitizePrefix(input); got != want {
			t.Fatalf("sanitizePrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" session/resolve ": "session_resolve",
		"guard..decision":   "guard.decision",
		"multi  space":      "multi__space",
	}

	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " portal "}
	local := map[string]string{"outcome": " committed ", "": "ignored", "env": "stage"}

	got := formatTags(global, local)
	want := "|#env:stage,outcome:committed,service:portal"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestClientWritesLineProtocol(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{prefix: "portal", conn: clientConn}

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peerConn.Read(buf)
		done <- string(buf[:n])
	}()

	client.Count("session.login", 1, map[string]string{"ok": "true"})

	select {
	case line := <-done:
		if line != "portal.session.login:1|c|#ok:true" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no metric written")
	}
}

func TestClientWritesTimingInMilliseconds(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{prefix: "portal", conn: clientConn}

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peerConn.Read(buf)
		done <- string(buf[:n])
	}()

	client.Timing("session.resolve.latency", 1500*time.Microsecond, nil)

	select {
	case line := <-done:
		if line != "portal.session.resolve.latency:1.5|ms" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no metric written")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	var nilClient *Client
	nilClient.Count("x", 1, nil)
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.Count("guard.decision", 1, map[string]string{"outcome": "render"})
	r.Count("guard.decision", 2, map[string]string{"outcome": "render"})
	r.Count("guard.decision", 1, map[string]string{"outcome": "loading"})

	if got := r.Counter("guard.decision", map[string]string{"outcome": "render"}); got != 3 {
		t.Fatalf("render counter = %d, want 3", got)
	}
	if got := r.Counter("guard.decision", nil); got != 0 {
		t.Fatalf("untagged counter = %d, want 0", got)
	}
}
