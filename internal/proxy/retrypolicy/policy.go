package retrypolicy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// Policy decides whether a rejected response should trigger the fallback
// candidate. ShouldRetry is only consulted when a fallback exists and must
// leave resp.Body readable when it returns false.
type Policy struct {
	Name        string
	Description string
	ShouldRetry func(resp *http.Response) bool
}

// Built-in policy names.
const (
	NameStatus       = "status"
	NameJSONNotFound = "json-not-found"
)

// maxInspectBytes bounds how much of a body the JSON policy reads.
const maxInspectBytes = 64 * 1024

// Status retries on any status other than 200.
func Status() Policy {
	return Policy{
		Name:        NameStatus,
		Description: "fall back on any status other than 200",
		ShouldRetry: func(resp *http.Response) bool {
			return resp != nil && resp.StatusCode != http.StatusOK
		},
	}
}

// JSONNotFound retries only on a 404 whose JSON body carries "code": 404.
// Bodies that are not JSON, or not an object with a numeric code, never retry.
func JSONNotFound() Policy {
	return Policy{
		Name:        NameJSONNotFound,
		Description: `fall back only on 404 with JSON body {"code":404}`,
		ShouldRetry: isJSONNotFound,
	}
}

func isJSONNotFound(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusNotFound || resp.Body == nil {
		return false
	}
	head, err := io.ReadAll(io.LimitReader(resp.Body, maxInspectBytes))
	resp.Body = restoreBody(head, resp.Body)
	if err != nil {
		return false
	}

	var payload struct {
		Code *float64 `json:"code"`
	}
	if err := json.Unmarshal(head, &payload); err != nil {
		return false
	}
	return payload.Code != nil && *payload.Code == http.StatusNotFound
}

// restoreBody stitches the inspected prefix back in front of the unread rest.
func restoreBody(head []byte, rest io.ReadCloser) io.ReadCloser {
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.MultiReader(bytes.NewReader(head), rest),
		Closer: rest,
	}
}
