package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lead-intake/pkg/catalog"
	"lead-intake/pkg/clients/resend"
	"lead-intake/pkg/clients/whatsapp"
	"lead-intake/pkg/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/models"
	"lead-intake/pkg/telemetry"
	"lead-intake/pkg/templates"
	"lead-intake/pkg/utils"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

var tracer = otel.Tracer("lead-intake/services")

// templateValues maps a configurable parameter name to its value for a lead.
var templateValues = map[string]func(models.LeadSubmission, catalog.Summary) string{
	"firstName": func(l models.LeadSubmission, _ catalog.Summary) string { return l.FirstName },
	"lastName":  func(l models.LeadSubmission, _ catalog.Summary) string { return l.LastName },
	"fullName":  func(l models.LeadSubmission, _ catalog.Summary) string { return l.FullName() },
	"email":     func(l models.LeadSubmission, _ catalog.Summary) string { return l.Email },
	"country":   func(l models.LeadSubmission, _ catalog.Summary) string { return l.Country },
	"phone":     func(l models.LeadSubmission, _ catalog.Summary) string { return l.Phone },
	"message":   func(l models.LeadSubmission, _ catalog.Summary) string { return l.Message },
	"selection": func(_ models.LeadSubmission, s catalog.Summary) string { return s.Text },
	"total":     func(_ models.LeadSubmission, s catalog.Summary) string { return s.TotalText },
}

// CheckTemplateParams rejects parameter names the service cannot fill.
func CheckTemplateParams(names []string) error {
	var unknown []string
	for _, n := range names {
		if _, ok := templateValues[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown WHATSAPP_TEMPLATE_PARAMS: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// LeadService sends a validated lead to the messaging and email providers
type LeadService interface {
	ProcessLead(ctx context.Context, lead models.LeadSubmission) models.LeadResult
	Preview(lead models.LeadSubmission) (Preview, error)
}

// Preview is what ProcessLead would send, without sending it.
type Preview struct {
	Summary      catalog.Summary          `json:"summary"`
	Message      whatsapp.TemplateMessage `json:"whatsapp"`
	EmailEnabled bool                     `json:"email_enabled"`
	EmailSubject string                   `json:"email_subject"`
	EmailHTML    string                   `json:"email_html"`
}

type leadServiceImpl struct {
	whatsappClient whatsapp.Client
	resendClient   resend.Client
	catalog        *catalog.Catalog
	config         *config.Config
	now            func() time.Time
}

// NewLeadService creates a new lead service. resendClient may be nil, in which
// case every email step is reported as skipped.
func NewLeadService(
	whatsappClient whatsapp.Client,
	resendClient resend.Client,
	catalog *catalog.Catalog,
	config *config.Config,
) LeadService {
	return &leadServiceImpl{
		whatsappClient: whatsappClient,
		resendClient:   resendClient,
		catalog:        catalog,
		config:         config,
		now:            time.Now,
	}
}

// ProcessLead makes one messaging attempt and then one email attempt. The email
// reports the messaging outcome and never changes it.
func (s *leadServiceImpl) ProcessLead(ctx context.Context, lead models.LeadSubmission) models.LeadResult {
	ctx, span := tracer.Start(ctx, "lead.process")
	defer span.End()

	requestID, _ := logger.RequestIDFromContext(ctx)
	summary := s.catalog.Summarize(lead.Sessions, lead.Packages)

	logger.InfoCtx(ctx, "processing lead",
		"phone_key", utils.PhoneKey(lead.Phone),
		"items", len(summary.Items),
		"total", summary.Total,
	)

	res := models.LeadResult{RequestID: requestID, Summary: summary}
	res.Messaging = s.sendMessage(ctx, lead, summary)
	res.Email = s.sendEmail(ctx, requestID, lead, summary, res.Messaging)

	span.SetAttributes(
		attribute.Bool("lead.whatsapp.ok", res.Messaging.OK),
		attribute.Int("lead.whatsapp.status", res.Messaging.Status),
		attribute.Bool("lead.email.ok", res.Email.OK),
		attribute.Bool("lead.email.skipped", res.Email.Skipped),
	)
	if res.Messaging.OK {
		telemetry.RecordSubmission(telemetry.OutcomeDelivered)
	} else {
		span.SetStatus(codes.Error, res.Messaging.Error)
		telemetry.RecordSubmission(telemetry.OutcomeFailed)
	}
	return res
}

func (s *leadServiceImpl) timeout() time.Duration {
	if s.config.Delivery.Timeout <= 0 {
		return 10 * time.Second
	}
	return s.config.Delivery.Timeout
}

func (s *leadServiceImpl) Preview(lead models.LeadSubmission) (Preview, error) {
	summary := s.catalog.Summarize(lead.Sessions, lead.Packages)
	p := Preview{
		Summary:      summary,
		Message:      s.templateMessage(lead, summary),
		EmailEnabled: s.resendClient != nil,
	}
	var err error
	p.EmailSubject, p.EmailHTML, err = templates.Render(templates.LeadEmail{
		RequestID:  "preview",
		ReceivedAt: s.now(),
		Lead:       lead,
		Summary:    summary,
		Messaging:  models.DeliveryResult{Error: "not sent (preview)"},
		FormatFunc: s.catalog.FormatPrice,
	})
	return p, err
}

func (s *leadServiceImpl) templateMessage(lead models.LeadSubmission, summary catalog.Summary) whatsapp.TemplateMessage {
	wa := s.config.WhatsApp

	to := lead.Phone
	if wa.TestRecipient != "" {
		to = NormalizePhone("", wa.TestRecipient)
	}

	params := make([]string, 0, len(wa.TemplateParams))
	for _, name := range wa.TemplateParams {
		v := ""
		if fn, ok := templateValues[name]; ok {
			v = strings.TrimSpace(fn(lead, summary))
		}
		if v == "" {
			v = catalog.Placeholder
		}
		params = append(params, v)
	}

	return whatsapp.NewTemplateMessage(to, wa.TemplateName, wa.TemplateLang, params)
}

func (s *leadServiceImpl) sendMessage(ctx context.Context, lead models.LeadSubmission, summary catalog.Summary) models.DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	msg := s.templateMessage(lead, summary)
	start := time.Now()
	resp, err := s.whatsappClient.SendTemplate(ctx, msg)
	took := time.Since(start)

	var res models.DeliveryResult
	if err != nil {
		res = s.failedDelivery(err)
		logger.WarnCtx(ctx, "whatsapp template send failed",
			"phone_key", utils.PhoneKey(msg.To),
			"template", msg.Template.Name,
			"params", len(s.config.WhatsApp.TemplateParams),
			"status", res.Status,
			"kind", res.Kind,
			"error", res.Error,
		)
	} else {
		res = models.DeliveryResult{OK: true, Status: resp.StatusCode, Data: resp.Body}
		logger.InfoCtx(ctx, "whatsapp template sent",
			"phone_key", utils.PhoneKey(msg.To),
			"message_ids", resp.MessageIDs,
		)
	}
	telemetry.RecordDelivery(ChannelWhatsApp, res, took)
	return res
}

func (s *leadServiceImpl) sendEmail(
	ctx context.Context,
	requestID string,
	lead models.LeadSubmission,
	summary catalog.Summary,
	messaging models.DeliveryResult,
) models.DeliveryResult {
	if s.resendClient == nil {
		res := models.DeliveryResult{Skipped: true}
		telemetry.RecordDelivery(ChannelEmail, res, 0)
		return res
	}

	subject, html, err := templates.Render(templates.LeadEmail{
		RequestID:  requestID,
		ReceivedAt: s.now(),
		Lead:       lead,
		Summary:    summary,
		Messaging:  messaging,
		FormatFunc: s.catalog.FormatPrice,
	})
	if err != nil {
		logger.ErrorCtx(ctx, "email render failed", "error", err.Error())
		res := models.DeliveryResult{Error: err.Error()}
		telemetry.RecordDelivery(ChannelEmail, res, 0)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	resp, err := s.resendClient.SendEmail(ctx, resend.Email{
		From:    s.config.Email.From,
		To:      s.config.Email.To,
		Subject: subject,
		HTML:    html,
		ReplyTo: lead.Email,
	})
	took := time.Since(start)

	var res models.DeliveryResult
	if err != nil {
		res = s.failedDelivery(err)
		logger.WarnCtx(ctx, "owner email failed", "status", res.Status, "kind", res.Kind, "error", res.Error)
	} else {
		res = models.DeliveryResult{OK: true, Status: resp.StatusCode, Data: resp.Body}
		logger.InfoCtx(ctx, "owner email sent", "email_id", resp.ID)
	}
	telemetry.RecordDelivery(ChannelEmail, res, took)
	return res
}

// failedDelivery converts a client error into a DeliveryResult. Provider bodies
// are kept verbatim apart from credential scrubbing.
func (s *leadServiceImpl) failedDelivery(err error) models.DeliveryResult {
	secrets := s.config.Secrets()

	var waErr *whatsapp.APIError
	var reErr *resend.APIError
	switch {
	case errors.As(err, &waErr):
		msg := waErr.Message
		if msg == "" {
			msg = "WhatsApp API error"
		}
		return models.DeliveryResult{
			Status: waErr.StatusCode,
			Data:   redactJSON(waErr.Body, secrets),
			Error:  utils.Redact(msg, secrets...),
			Kind:   models.KindUpstream,
		}
	case errors.As(err, &reErr):
		msg := reErr.Message
		if msg == "" {
			msg = "Resend API error"
		}
		return models.DeliveryResult{
			Status: reErr.StatusCode,
			Data:   redactJSON(reErr.Body, secrets),
			Error:  utils.Redact(msg, secrets...),
			Kind:   models.KindUpstream,
		}
	}
	return models.DeliveryResult{
		Error: utils.Redact(err.Error(), secrets...),
		Kind:  models.KindTransport,
	}
}

func redactJSON(body []byte, secrets []string) []byte {
	if len(body) == 0 {
		return nil
	}
	return []byte(utils.Redact(string(body), secrets...))
}
