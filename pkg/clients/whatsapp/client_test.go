package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake/pkg/clients/transport"
	"lead-intake/pkg/config"
)

func newTestClient(url string) Client {
	return NewClient(config.WhatsAppConfig{
		Token:         "wa-token",
		PhoneNumberID: "10203040",
		BaseURL:       url + "/",
		APIVersion:    "v22.0",
	}, transport.NewDoer(2*time.Second))
}

func TestNewTemplateMessage(t *testing.T) {
	msg := NewTemplateMessage("905321234567", "lead_summary", "tr", []string{"Sessions: A", "$65"})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messaging_product": "whatsapp",
		"to": "905321234567",
		"type": "template",
		"template": {
			"name": "lead_summary",
			"language": {"code": "tr"},
			"components": [{
				"type": "body",
				"parameters": [
					{"type": "text", "text": "Sessions: A"},
					{"type": "text", "text": "$65"}
				]
			}]
		}
	}`, string(raw))
}

func TestNewTemplateMessageWithoutParams(t *testing.T) {
	raw, err := json.Marshal(NewTemplateMessage("1555", "hello_world", "en_US", nil))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "components")
}

func TestSendTemplate(t *testing.T) {
	var got TemplateMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v22.0/10203040/messages", r.URL.Path)
		assert.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).SendTemplate(context.Background(),
		NewTemplateMessage("905321234567", "hello_world", "en_US", []string{"x"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"wamid.ABC"}, resp.MessageIDs)
	assert.Equal(t, "905321234567", got.To)
	assert.Equal(t, "x", got.Template.Components[0].Parameters[0].Text)
}

func TestSendTemplateAPIError(t *testing.T) {
	providerBody := `{"error":{"message":"(#132000) Number of parameters does not match the expected number of params","type":"OAuthException","code":132000}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(providerBody))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendTemplate(context.Background(),
		NewTemplateMessage("905321234567", "hello_world", "en_US", nil))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 132000, apiErr.Code)
	assert.Contains(t, apiErr.Message, "Number of parameters does not match")
	assert.JSONEq(t, providerBody, string(apiErr.Body))
	assert.Contains(t, apiErr.Error(), "status 400")
}

func TestSendTemplateNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendTemplate(context.Background(),
		NewTemplateMessage("905321234567", "hello_world", "en_US", nil))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, `"upstream down"`, string(apiErr.Body))
	assert.Empty(t, apiErr.Message)
}

func TestSendTemplateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).SendTemplate(context.Background(),
		NewTemplateMessage("905321234567", "hello_world", "en_US", nil))
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
