// Package server hosts the Fiber HTTP service: the recover and request-ID
// middleware chain, the catch-all route that hands every non-diagnostics
// request to the proxy handler, and the shared upstream http.Client.
// Diagnostics live under the reserved "/-/" prefix and are registered by the
// routes subpackage. Keep exports narrow and accept explicit dependencies.
package server
