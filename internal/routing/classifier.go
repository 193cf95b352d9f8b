package routing

import (
	"fmt"
	"net/url"
	"strings"
)

// Variant selects how the routing mode is read from the request.
type Variant string

const (
	// VariantModeSegment reads "/{mode}/{endpointId}".
	VariantModeSegment Variant = "mode-segment"
	// VariantQueryFlag reads "/{endpointId}" plus the presence of the "t" query flag.
	VariantQueryFlag Variant = "query-flag"
)

// TestFlag is the reserved query parameter of VariantQueryFlag.
const TestFlag = "t"

// ParseVariant normalizes a configured variant name. An empty value selects
// VariantModeSegment.
func ParseVariant(raw string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(raw))); v {
	case "":
		return VariantModeSegment, nil
	case VariantModeSegment, VariantQueryFlag:
		return v, nil
	default:
		return "", fmt.Errorf("unsupported routing variant: %s", raw)
	}
}

// Classification is the classifier output.
type Classification struct {
	EndpointID EndpointID
	Mode       Mode
	// ModeToken is the raw token the mode was read from, kept for logs.
	ModeToken string
}

// Classify extracts the endpoint ID and routing mode from a request path and
// raw query string. It never fails: an absent endpoint ID is returned empty.
func Classify(variant Variant, path, rawQuery string) Classification {
	segments := splitSegments(path)
	if variant == VariantQueryFlag {
		return classifyQueryFlag(segments, rawQuery)
	}
	return classifyModeSegment(segments)
}

func classifyModeSegment(segments []string) Classification {
	switch len(segments) {
	case 0:
		return Classification{Mode: ModeProdOnly}
	case 1:
		return Classification{Mode: ParseMode(segments[0]), ModeToken: segments[0]}
	default:
		return Classification{
			EndpointID: EndpointID(segments[1]),
			Mode:       ParseMode(segments[0]),
			ModeToken:  segments[0],
		}
	}
}

func classifyQueryFlag(segments []string, rawQuery string) Classification {
	result := Classification{Mode: ModeProdThenTest}
	if hasQueryFlag(rawQuery, TestFlag) {
		result.Mode = ModeTestThenProd
		result.ModeToken = TestFlag
	}
	if len(segments) > 0 {
		result.EndpointID = EndpointID(segments[0])
	}
	return result
}

func splitSegments(path string) []string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// hasQueryFlag checks for the presence of a key and ignores its value, so
// "t", "t=" and "t=0" all count.
func hasQueryFlag(rawQuery, key string) bool {
	for _, pair := range strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' }) {
		name := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			name = pair[:idx]
		}
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		if name == key {
			return true
		}
	}
	return false
}
