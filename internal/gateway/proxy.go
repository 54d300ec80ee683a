package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// forwardedRequestHeaders are copied from the client request upstream.
var forwardedRequestHeaders = []string{"Content-Type", "Accept", subjectHeader}

// forwardedResponseHeaders are copied from the upstream response back to the client.
var forwardedResponseHeaders = []string{"Content-Type", "Content-Disposition", "Cache-Control", "X-Cache"}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays r against path on the upstream service, keeping
// the query string.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedRequestHeaders {
		if value := r.Header.Get(name); value != "" {
			req.Header.Set(name, value)
		}
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	return p.client.Do(req)
}
