package routing

import "strings"

// HookKind names the backend sub-path a candidate is sent to.
type HookKind string

const (
	HookTest       HookKind = "webhook-test"
	HookProduction HookKind = "webhook"
)

// EndpointID is the opaque workflow identifier taken from the request path.
type EndpointID string

// Candidate is one backend attempt: the hook kind and its full backend path.
type Candidate struct {
	Kind HookKind
	Path string
}

// NewCandidate builds the "/{hook}/{id}" backend path for the given endpoint.
func NewCandidate(kind HookKind, id EndpointID) Candidate {
	return Candidate{
		Kind: kind,
		Path: "/" + string(kind) + "/" + strings.TrimPrefix(string(id), "/"),
	}
}

// Strategy is an ordered primary/fallback pair. Fallback is empty when the
// mode allows a single attempt only.
type Strategy struct {
	Primary  HookKind
	Fallback HookKind
}

// HasFallback reports whether a second attempt is allowed.
func (s Strategy) HasFallback() bool {
	return s.Fallback != ""
}

var strategies = map[Mode]Strategy{
	ModeTestThenProd: {Primary: HookTest, Fallback: HookProduction},
	ModeProdThenTest: {Primary: HookProduction, Fallback: HookTest},
	ModeTestOnly:     {Primary: HookTest},
	ModeProdOnly:     {Primary: HookProduction},
}

// StrategyFor returns the strategy of a mode; unknown values behave like
// ModeProdOnly.
func StrategyFor(mode Mode) Strategy {
	if s, ok := strategies[mode]; ok {
		return s
	}
	return strategies[ModeProdOnly]
}

// Plan resolves a mode to the ordered candidates for an endpoint. The result
// always holds one or two entries and is fixed before any network call.
func Plan(mode Mode, id EndpointID) []Candidate {
	s := StrategyFor(mode)
	plan := make([]Candidate, 0, 2)
	plan = append(plan, NewCandidate(s.Primary, id))
	if s.HasFallback() {
		plan = append(plan, NewCandidate(s.Fallback, id))
	}
	return plan
}
