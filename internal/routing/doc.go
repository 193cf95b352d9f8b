// Package routing turns an inbound request target into the pair the dispatcher
// needs: the workflow endpoint ID and the routing mode. It also owns the static
// strategy table that maps each mode to an ordered list of hook candidates.
//
// Everything here is pure. Classify and Plan hold no state and never fail; an
// unknown mode token degrades to production-only and an empty endpoint ID is
// left for the caller to reject.
package routing
