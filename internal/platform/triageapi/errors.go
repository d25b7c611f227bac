package triageapi

import "fmt"

// TransportError wraps a network-level failure (connection refused, DNS,
// timeout). Distinguished from StatusError and MalformedResponseError so
// operators can tell "server down" from "server misrouted".
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("triage api request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a transport-level success with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("triage api request to %s failed (%d): %s", e.URL, e.StatusCode, e.Body)
}

// MalformedResponseError is a 2xx response whose body is not valid JSON.
// LooksLikeHTML flags the common misconfiguration where a frontend dev
// server or proxy handled the route instead of the triage backend.
type MalformedResponseError struct {
	URL           string
	ContentType   string
	Snippet       string
	LooksLikeHTML bool
}

func (e *MalformedResponseError) Error() string {
	if e.LooksLikeHTML {
		return fmt.Sprintf("triage api request to %s returned HTML instead of JSON; the route was likely handled by a proxy or dev server instead of the backend", e.URL)
	}
	ct := e.ContentType
	if ct == "" {
		ct = "unknown"
	}
	return fmt.Sprintf("triage api request to %s returned invalid JSON (content-type: %s); response starts with: %s", e.URL, ct, e.Snippet)
}
