package api

import (
	"net/http"

	"lead-intake/pkg/models"
)

// leadResponse maps a processed lead to the HTTP reply. A provider rejection
// passes the provider's status through; a provider that could not be reached
// yields 502. The email outcome is reported but never changes the status.
func leadResponse(res models.LeadResult) (int, models.LeadResponse) {
	messaging, email := res.Messaging, res.Email
	emailOK := email.OK

	resp := models.LeadResponse{
		OK:           messaging.OK,
		RequestID:    res.RequestID,
		Status:       messaging.Status,
		Summary:      &res.Summary,
		WhatsApp:     &messaging,
		EmailOK:      &emailOK,
		EmailSkipped: email.Skipped,
		EmailError:   email.Error,
		Email:        &email,
	}

	if messaging.OK {
		resp.Data = messaging.Data
		return http.StatusOK, resp
	}

	resp.Message = messaging.Error
	resp.Details = messaging.Data
	if messaging.Kind == models.KindUpstream && messaging.Status >= http.StatusBadRequest {
		resp.Error = "WhatsApp API error"
		return messaging.Status, resp
	}
	resp.Error = "WhatsApp API unreachable"
	return http.StatusBadGateway, resp
}
