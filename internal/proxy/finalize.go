package proxy

import "net/http"

// Cache-defeating header values forced onto every relayed response.
const (
	CacheControlNoStore = "no-store, no-cache, must-revalidate, proxy-revalidate"
	PragmaNoCache       = "no-cache"
	ExpiresImmediately  = "0"
)

// Finalize returns a copy of resp whose header map is cloned and carries the
// fixed no-cache headers. Status, body and every other header are untouched;
// resp itself is not modified.
func Finalize(resp *http.Response) *http.Response {
	if resp == nil {
		return nil
	}
	out := *resp
	out.Header = resp.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	ApplyNoCache(out.Header)
	return &out
}

// ApplyNoCache overwrites Cache-Control, Pragma and Expires in h.
func ApplyNoCache(h http.Header) {
	h.Set("Cache-Control", CacheControlNoStore)
	h.Set("Pragma", PragmaNoCache)
	h.Set("Expires", ExpiresImmediately)
}
