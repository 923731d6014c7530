package models

import (
	"encoding/json"

	"lead-intake/pkg/catalog"
)

// LeadSubmission is a normalized contact-form submission. The validate tags
// name the fields every lead must carry; Country is dropped from the check when
// the deployment does not ask for it.
type LeadSubmission struct {
	FirstName     string   `json:"firstName" validate:"required"`
	LastName      string   `json:"lastName" validate:"required"`
	Email         string   `json:"email" validate:"required"`
	Country       string   `json:"country" validate:"required"`
	PhonePrefix   string   `json:"countryCode"`
	PhoneLocal    string   `json:"phone" validate:"required"`
	Message       string   `json:"message"`
	Sessions      []string `json:"sessions"`
	Packages      []string `json:"packages"`
	OptInWhatsApp bool     `json:"optinWhatsapp"`
	OptInStop     bool     `json:"optinStop"`

	// Phone is the digits-only destination derived from prefix and local part.
	Phone string `json:"-"`
}

func (l LeadSubmission) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// Error kinds carried by a failed DeliveryResult.
const (
	KindUpstream  = "upstream"
	KindTransport = "transport"
)

// DeliveryResult is the outcome of one outbound channel.
type DeliveryResult struct {
	OK      bool            `json:"ok"`
	Skipped bool            `json:"skipped,omitempty"`
	Status  int             `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    string          `json:"kind,omitempty"`
}

// LeadResult aggregates both channels for one submission.
type LeadResult struct {
	RequestID string
	Summary   catalog.Summary
	Messaging DeliveryResult
	Email     DeliveryResult
}

// LeadResponse is the single JSON schema returned by the lead endpoint.
type LeadResponse struct {
	OK        bool            `json:"ok"`
	RequestID string          `json:"request_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	Need      []string        `json:"need,omitempty"`
	Status    int             `json:"status,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`

	Summary  *catalog.Summary `json:"summary,omitempty"`
	WhatsApp *DeliveryResult  `json:"whatsapp,omitempty"`

	EmailOK      *bool           `json:"email_ok,omitempty"`
	EmailSkipped bool            `json:"email_skipped,omitempty"`
	EmailError   string          `json:"email_error,omitempty"`
	Email        *DeliveryResult `json:"email,omitempty"`
}
