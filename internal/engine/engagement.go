package engine

import (
	"time"

	"airpost/internal/store"
)

// Route is the dispatch decision for one due episode.
type Route int

const (
	// RouteStandalone posts a dedicated discussion thread.
	RouteStandalone Route = iota
	// RouteMegathread nests the discussion as a comment in the show's
	// rolling megathread.
	RouteMegathread
	// RouteDisable stops automatic posting for the show entirely. The
	// episode is left due and ages out through retention.
	RouteDisable
)

func (r Route) String() string {
	switch r {
	case RouteStandalone:
		return "standalone"
	case RouteMegathread:
		return "megathread"
	case RouteDisable:
		return "disable"
	default:
		return "unknown"
	}
}

// Thresholds are the engagement gate settings.
type Thresholds struct {
	MinUpvotes      int
	MinComments     int
	Lag             time.Duration
	DisableInactive bool
}

// ThreadSnapshot is the freshly observed state of the preceding episode's
// thread.
type ThreadSnapshot struct {
	Kind      store.ThreadKind
	Votes     int
	Comments  int
	CreatedAt time.Time
}

// Evaluate decides how the next episode of a show is routed, derived every
// run from the preceding thread's latest engagement rather than a stored
// flag. A nil snapshot (first episode, or a show newly enabled) defaults to
// a standalone post. Within the lag window the preceding episode's routing
// is reused since the counts are not yet trustworthy.
func Evaluate(prev *ThreadSnapshot, th Thresholds, now time.Time) Route {
	if prev == nil {
		return RouteStandalone
	}

	if now.Sub(prev.CreatedAt) < th.Lag {
		if prev.Kind == store.ThreadMegathreadComment {
			return RouteMegathread
		}
		return RouteStandalone
	}

	if prev.Votes >= th.MinUpvotes && prev.Comments >= th.MinComments {
		return RouteStandalone
	}

	if th.DisableInactive {
		return RouteDisable
	}
	return RouteMegathread
}

// ThresholdsFromOptions builds evaluator settings from the config section.
func ThresholdsFromOptions(minUpvotes, minComments, lagHours int, disableInactive bool) Thresholds {
	return Thresholds{
		MinUpvotes:      minUpvotes,
		MinComments:     minComments,
		Lag:             time.Duration(lagHours) * time.Hour,
		DisableInactive: disableInactive,
	}
}
