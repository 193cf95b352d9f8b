package routing

import "strings"

// Mode selects the attempt order and whether a fallback candidate exists.
type Mode int

const (
	// ModeProdOnly is the zero value so unknown tokens fail open to production.
	ModeProdOnly Mode = iota
	ModeTestOnly
	ModeTestThenProd
	ModeProdThenTest
)

// Mode tokens accepted in the first path segment.
const (
	TokenTestThenProd = "test-then-prod"
	TokenProdThenTest = "prod-then-test"
	TokenTestOnly     = "test-only"
	TokenProdOnly     = "prod-only"
)

var modeTokens = map[string]Mode{
	TokenTestThenProd: ModeTestThenProd,
	TokenProdThenTest: ModeProdThenTest,
	TokenTestOnly:     ModeTestOnly,
	TokenProdOnly:     ModeProdOnly,
}

// ParseMode maps a path token to a Mode. Tokens are matched case-insensitively;
// anything unrecognized yields ModeProdOnly.
func ParseMode(token string) Mode {
	if mode, ok := modeTokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return mode
	}
	return ModeProdOnly
}

// String returns the canonical path token of the mode.
func (m Mode) String() string {
	switch m {
	case ModeTestOnly:
		return TokenTestOnly
	case ModeTestThenProd:
		return TokenTestThenProd
	case ModeProdThenTest:
		return TokenProdThenTest
	default:
		return TokenProdOnly
	}
}

// Modes lists every mode in a stable order, mainly for diagnostics.
func Modes() []Mode {
	return []Mode{ModeTestThenProd, ModeProdThenTest, ModeTestOnly, ModeProdOnly}
}
