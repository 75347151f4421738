// Package engine implements the posting pipeline: discovery of new shows,
// schedule classification, engagement-based routing, megathread allocation,
// dispatch, stale-thread refresh, and retention. One Runner.Run call is one
// complete pass; an external scheduler provides repetition.
package engine
