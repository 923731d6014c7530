// Package transport builds the HTTP client shared by the outbound provider clients.
package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewDoer returns a traced client that makes exactly one attempt per request
// and gives up after timeout.
func NewDoer(timeout time.Duration) heimdall.Doer {
	return httpclient.NewClient(
		httpclient.WithHTTPTimeout(timeout),
		httpclient.WithRetryCount(0),
		httpclient.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)
}

// RawJSON returns body as a JSON value. Non-JSON bodies become a JSON string.
func RawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}
