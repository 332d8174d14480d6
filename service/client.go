package service

import (
	"context"
	"net/url"

	"github.com/michalshavit1/salto/schema"
)

// Response is one decoded service answer. Data holds the normalized value
// shape from element.FromJSON.
type Response struct {
	Status int
	Data   any
}

// Client is the narrow contract the mapping engine consumes. Retries, auth
// headers, and rate limiting live behind this boundary; the engine only
// supplies request shape and consumes response bodies.
type Client interface {
	Request(ctx context.Context, method, path string, query url.Values, body any) (*Response, error)
	Paginate(kind string, list *schema.ListConfig) *Pager
	// APIVersion reports the remote service's API version, or "" when the
	// service does not expose one.
	APIVersion(ctx context.Context) string
}
