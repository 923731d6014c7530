package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestHandlerProbe(t *testing.T) {
	t.Setenv("CATALOG_FILE", "")
	t.Setenv("WHATSAPP_TEMPLATE_PARAMS", "selection,total")
	t.Setenv("TRACING_EXPORTER", "stdout")

	for _, path := range []string{"/api/lead", "/lead"} {
		rec := httptest.NewRecorder()
		Handler(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, true, out["ok"])
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}

	// tracing configuration applies to the serverless path too
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
}
