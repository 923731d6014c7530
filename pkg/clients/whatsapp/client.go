package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gojektech/heimdall/v6"

	"lead-intake/pkg/clients/transport"
	"lead-intake/pkg/config"
)

// Client defines the interface for sending WhatsApp Cloud API template messages
type Client interface {
	SendTemplate(ctx context.Context, msg TemplateMessage) (*SendResponse, error)
}

type TemplateMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         Template `json:"template"`
}

type Template struct {
	Name       string      `json:"name"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type Language struct {
	Code string `json:"code"`
}

type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTemplateMessage builds the envelope for a template send. The body
// component is left out when params is empty; the provider rejects a
// parameter count that differs from the registered template.
func NewTemplateMessage(to, name, lang string, params []string) TemplateMessage {
	msg := TemplateMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: Template{
			Name:     name,
			Language: Language{Code: lang},
		},
	}
	if len(params) > 0 {
		body := Component{Type: "body", Parameters: make([]Parameter, 0, len(params))}
		for _, p := range params {
			body.Parameters = append(body.Parameters, Parameter{Type: "text", Text: p})
		}
		msg.Template.Components = []Component{body}
	}
	return msg
}

// SendResponse is a 2xx reply from the Cloud API.
type SendResponse struct {
	StatusCode int
	Body       json.RawMessage
	MessageIDs []string
}

// APIError is a non-2xx reply. Body holds the provider payload verbatim.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
	Message    string
	Code       int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("error from WhatsApp API: status %d", e.StatusCode)
	}
	return fmt.Sprintf("error from WhatsApp API: status %d: %s", e.StatusCode, e.Message)
}

type clientImpl struct {
	token         string
	phoneNumberID string
	baseURL       string
	apiVersion    string
	doer          heimdall.Doer
}

// NewClient creates a new WhatsApp Cloud API client
func NewClient(cfg config.WhatsAppConfig, doer heimdall.Doer) Client {
	return &clientImpl{
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion:    cfg.APIVersion,
		doer:          doer,
	}
}

func (c *clientImpl) SendTemplate(ctx context.Context, msg TemplateMessage) (*SendResponse, error) {
	sendURL := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)

	jsonPayload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending template message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: transport.RawJSON(body)}
		var errorResponse struct {
			Error struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &errorResponse) == nil {
			apiErr.Message = errorResponse.Error.Message
			apiErr.Code = errorResponse.Error.Code
		}
		return nil, apiErr
	}

	var sendResponse struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	out := &SendResponse{StatusCode: resp.StatusCode, Body: transport.RawJSON(body)}
	if json.Unmarshal(body, &sendResponse) == nil {
		for _, m := range sendResponse.Messages {
			out.MessageIDs = append(out.MessageIDs, m.ID)
		}
	}
	return out, nil
}
