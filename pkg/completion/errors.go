package completion

import "errors"

var (
	// ErrNotConfigured is returned when a provider is missing its credential
	ErrNotConfigured = errors.New("completion provider not configured")

	// ErrTransport is returned when the request could not be delivered or the
	// response could not be read (network error, timeout, cancellation)
	ErrTransport = errors.New("completion transport failure")

	// ErrAPIError is returned when the provider answers with a non-2xx status
	ErrAPIError = errors.New("completion provider API error")

	// ErrMalformedResponse is returned when a 2xx response does not expose
	// choices[0].message.content as a string
	ErrMalformedResponse = errors.New("malformed completion response")
)
