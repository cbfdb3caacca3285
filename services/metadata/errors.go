package metadata

import "fmt"

// TransportErrorKind classifies how a TMDB request failed.
type TransportErrorKind string

const (
	// TransportErrHTTPStatus means TMDB answered with a non-2xx status.
	TransportErrHTTPStatus TransportErrorKind = "http_status"
	// TransportErrNetworkOrParse covers connection failures and malformed
	// response bodies.
	TransportErrNetworkOrParse TransportErrorKind = "network_or_parse"
)

// TransportError is returned by every TMDB call that reaches the network.
// Callers decide user messaging; nothing here is retried beyond the bounded
// in-call GET retry.
type TransportError struct {
	Kind     TransportErrorKind
	Status   int // HTTP status code, set for TransportErrHTTPStatus
	Endpoint string
	Err      error

	// retryable marks failures worth one more GET attempt (429/5xx and
	// connection errors). 4xx and parse failures are final.
	retryable bool
}

func (e *TransportError) Error() string {
	if e.Kind == TransportErrHTTPStatus {
		return fmt.Sprintf("tmdb %s failed: status %d", e.Endpoint, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("tmdb %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("tmdb %s failed", e.Endpoint)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
