// Package templates renders the owner notification email.
package templates

import (
	_ "embed"
	"fmt"
	"time"

	pongo2 "github.com/flosch/pongo2/v6"

	"lead-intake/pkg/catalog"
	"lead-intake/pkg/models"
)

//go:embed lead_email.html
var leadEmailSource string

const subjectSource = `{% autoescape off %}New lead: {{ name }} · {{ summary }} · {{ total }}{% endautoescape %}`

var (
	leadEmailTpl = pongo2.Must(pongo2.FromString(leadEmailSource))
	subjectTpl   = pongo2.Must(pongo2.FromString(subjectSource))
)

// LeadEmail is everything the owner email reports on.
type LeadEmail struct {
	RequestID  string
	ReceivedAt time.Time
	Lead       models.LeadSubmission
	Summary    catalog.Summary
	Messaging  models.DeliveryResult
	FormatFunc func(float64) string
}

// Render returns the subject line and the HTML body. Lead supplied values are
// HTML escaped in the body.
func Render(data LeadEmail) (subject, html string, err error) {
	ctx := templateContext(data)

	subject, err = subjectTpl.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("error rendering subject: %w", err)
	}
	html, err = leadEmailTpl.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("error rendering email: %w", err)
	}
	return subject, html, nil
}

func templateContext(data LeadEmail) pongo2.Context {
	format := data.FormatFunc
	if format == nil {
		format = func(v float64) string { return fmt.Sprintf("%g", v) }
	}

	items := make([]map[string]any, 0, len(data.Summary.Items))
	for _, it := range data.Summary.Items {
		items = append(items, map[string]any{
			"name":  it.Name,
			"known": it.Known,
			"price": format(it.Price),
		})
	}

	receivedAt := data.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return pongo2.Context{
		"request_id":      data.RequestID,
		"received_at":     receivedAt.UTC().Format(time.RFC1123),
		"name":            data.Lead.FullName(),
		"email":           data.Lead.Email,
		"country":         data.Lead.Country,
		"phone":           data.Lead.Phone,
		"message":         data.Lead.Message,
		"optin_whatsapp":  data.Lead.OptInWhatsApp,
		"optin_stop":      data.Lead.OptInStop,
		"items":           items,
		"summary":         data.Summary.Text,
		"total":           data.Summary.TotalText,
		"placeholder":     catalog.Placeholder,
		"whatsapp_ok":     data.Messaging.OK,
		"whatsapp_status": data.Messaging.Status,
		"whatsapp_error":  data.Messaging.Error,
	}
}
