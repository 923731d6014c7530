package resend

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

// Client defines the interface for interacting with the Resend email API
type Client interface {
	SendEmail(ctx context.Context, email Email) (*SendResponse, error)
}

type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type SendResponse struct {
	StatusCode int
	ID         string
	Body       json.RawMessage
}

// APIError is a non-2xx reply from Resend.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("error from Resend API: status %d", e.StatusCode)
	}
	return fmt.Sprintf("error from Resend API: status %d: %s", e.StatusCode, e.Message)
}

type clientImpl struct {
	apiKey  string
	baseURL string
	doer    heimdall.Doer
}

// NewClient creates a new Resend client
func NewClient(cfg config.EmailConfig, doer heimdall.Doer) Client {
	return &clientImpl{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		doer:    doer,
	}
}

func (c *clientImpl) SendEmail(ctx context.Context, email Email) (*SendResponse, error) {
	jsonPayload, err := json.Marshal(email)
	if err != nil {
		return nil, fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: transport.RawJSON(body)}
		var errorResponse struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &errorResponse) == nil {
			apiErr.Name = errorResponse.Name
			apiErr.Message = errorResponse.Message
		}
		return nil, apiErr
	}

	// the email was accepted; the id is informational
	var response struct {
		ID string `json:"id"`
	}
	out := &SendResponse{StatusCode: resp.StatusCode, Body: transport.RawJSON(body)}
	if json.Unmarshal(body, &response) == nil {
		out.ID = response.ID
	}
	return out, nil
}
