// Package metrics emits the portal's standard session and guard metrics.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/publicvoice/portal/internal/observability/errors"
	"github.com/publicvoice/portal/internal/observability/statsd"
)

// Resolution outcomes for session.resolve.
const (
	ResolveCommitted = "committed"
	ResolveFailed    = "failed"
	ResolveStale     = "stale"
)

// EmitResolve counts one identity resolution by outcome. err is classified for failed outcomes.
func EmitResolve(sink statsd.Sink, outcome string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"outcome": outcome}
	if err != nil && outcome == ResolveFailed {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("session.resolve", 1, tags)
}

// EmitResolveLatency records how long the backend took to answer one identity request,
// whatever the outcome.
func EmitResolveLatency(sink statsd.Sink, d time.Duration) {
	if sink == nil {
		return
	}
	sink.Timing("session.resolve.latency", d, nil)
}

// EmitLogin counts a login attempt.
func EmitLogin(sink statsd.Sink, ok bool) {
	if sink == nil {
		return
	}
	sink.Count("session.login", 1, map[string]string{"ok": strconv.FormatBool(ok)})
}

// EmitLogout counts a logout.
func EmitLogout(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("session.logout", 1, nil)
}

// EmitGuardDecision counts a route guard evaluation by outcome.
func EmitGuardDecision(sink statsd.Sink, outcome string) {
	if sink == nil {
		return
	}
	sink.Count("guard.decision", 1, map[string]string{"outcome": outcome})
}
