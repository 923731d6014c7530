package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake/pkg/catalog"
	"lead-intake/pkg/clients/resend"
	"lead-intake/pkg/clients/whatsapp"
	"lead-intake/pkg/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/models"
)

type fakeWhatsApp struct {
	mu    sync.Mutex
	sent  []whatsapp.TemplateMessage
	resp  *whatsapp.SendResponse
	err   error
	block bool
}

func (f *fakeWhatsApp) SendTemplate(ctx context.Context, msg whatsapp.TemplateMessage) (*whatsapp.SendResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("error sending template message: %w", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &whatsapp.SendResponse{StatusCode: 200, Body: json.RawMessage(`{"messages":[{"id":"wamid.1"}]}`)}, nil
}

type fakeResend struct {
	sent []resend.Email
	err  error
}

func (f *fakeResend) SendEmail(ctx context.Context, email resend.Email) (*resend.SendResponse, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendResponse{StatusCode: 200, ID: "email-1", Body: json.RawMessage(`{"id":"email-1"}`)}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		WhatsApp: config.WhatsAppConfig{
			Token:          "wa-secret-token",
			PhoneNumberID:  "10203040",
			TemplateName:   "lead_summary",
			TemplateLang:   "tr",
			TemplateParams: []string{"selection", "total"},
		},
		Email: config.EmailConfig{
			APIKey: "re_secret",
			From:   "Studio <noreply@example.com>",
			To:     []string{"owner@example.com"},
		},
		Delivery: config.DeliveryConfig{Timeout: time.Second},
	}
}

func testLeadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("$", catalog.Labels{}, []catalog.Entry{
		{ID: "s1", Name: "Single session", Price: 65},
		{ID: "p1", Name: "Plus package", Price: 110},
	})
	require.NoError(t, err)
	return c
}

func testLead() models.LeadSubmission {
	return models.LeadSubmission{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.com",
		Country:       "UK",
		Phone:         "447700900123",
		Sessions:      []string{"s1"},
		Packages:      []string{"p1"},
		OptInWhatsApp: true,
	}
}

func TestProcessLeadSuccess(t *testing.T) {
	wa, re := &fakeWhatsApp{}, &fakeResend{}
	svc := NewLeadService(wa, re, testLeadCatalog(t), testConfig())

	ctx := logger.WithRequestID(context.Background(), "req-1")
	res := svc.ProcessLead(ctx, testLead())

	assert.Equal(t, "req-1", res.RequestID)
	assert.True(t, res.Messaging.OK)
	assert.Equal(t, 200, res.Messaging.Status)
	assert.True(t, res.Email.OK)
	assert.Equal(t, float64(175), res.Summary.Total)

	require.Len(t, wa.sent, 1)
	msg := wa.sent[0]
	assert.Equal(t, "447700900123", msg.To)
	assert.Equal(t, "lead_summary", msg.Template.Name)
	assert.Equal(t, "tr", msg.Template.Language.Code)
	require.Len(t, msg.Template.Components, 1)
	params := msg.Template.Components[0].Parameters
	require.Len(t, params, 2)
	assert.Equal(t, "Sessions: Single session | Packages: Plus package", params[0].Text)
	assert.Equal(t, "$175", params[1].Text)

	require.Len(t, re.sent, 1)
	assert.Equal(t, []string{"owner@example.com"}, re.sent[0].To)
	assert.Equal(t, "ada@example.com", re.sent[0].ReplyTo)
	assert.Contains(t, re.sent[0].Subject, "Ada Lovelace")
	assert.Contains(t, re.sent[0].HTML, "Template message sent")
}

func TestProcessLeadIsNotDeduplicated(t *testing.T) {
	wa := &fakeWhatsApp{}
	svc := NewLeadService(wa, nil, testLeadCatalog(t), testConfig())

	svc.ProcessLead(context.Background(), testLead())
	svc.ProcessLead(context.Background(), testLead())

	require.Len(t, wa.sent, 2)
	assert.Equal(t, wa.sent[0], wa.sent[1])
}

func TestProcessLeadEmailFailureDoesNotFailMessaging(t *testing.T) {
	wa := &fakeWhatsApp{}
	re := &fakeResend{err: errors.New(`error sending email: Post "https://api.resend.com/emails": dial tcp: no such host`)}
	svc := NewLeadService(wa, re, testLeadCatalog(t), testConfig())

	res := svc.ProcessLead(context.Background(), testLead())

	assert.True(t, res.Messaging.OK)
	assert.False(t, res.Email.OK)
	assert.False(t, res.Email.Skipped)
	assert.Equal(t, models.KindTransport, res.Email.Kind)
	assert.Contains(t, res.Email.Error, "no such host")
}

func TestProcessLeadTemplateMismatchSurfacedVerbatim(t *testing.T) {
	body := json.RawMessage(`{"error":{"message":"(#132000) Number of parameters does not match the expected number of params","code":132000}}`)
	wa := &fakeWhatsApp{err: &whatsapp.APIError{StatusCode: 400, Body: body, Message: "(#132000) Number of parameters does not match the expected number of params", Code: 132000}}
	re := &fakeResend{}
	svc := NewLeadService(wa, re, testLeadCatalog(t), testConfig())

	res := svc.ProcessLead(context.Background(), testLead())

	assert.False(t, res.Messaging.OK)
	assert.Equal(t, 400, res.Messaging.Status)
	assert.Equal(t, models.KindUpstream, res.Messaging.Kind)
	assert.JSONEq(t, string(body), string(res.Messaging.Data))
	assert.Contains(t, res.Messaging.Error, "Number of parameters does not match")

	// the owner still hears about the lead, including the failure
	require.Len(t, re.sent, 1)
	assert.Contains(t, re.sent[0].HTML, "Template message failed (status 400)")
	assert.True(t, res.Email.OK)
}

func TestProcessLeadEmailSkippedWithoutClient(t *testing.T) {
	svc := NewLeadService(&fakeWhatsApp{}, nil, testLeadCatalog(t), testConfig())

	res := svc.ProcessLead(context.Background(), testLead())

	assert.True(t, res.Messaging.OK)
	assert.True(t, res.Email.Skipped)
	assert.False(t, res.Email.OK)
}

func TestProcessLeadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Delivery.Timeout = 20 * time.Millisecond
	re := &fakeResend{}
	svc := NewLeadService(&fakeWhatsApp{block: true}, re, testLeadCatalog(t), cfg)

	start := time.Now()
	res := svc.ProcessLead(context.Background(), testLead())

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Messaging.OK)
	assert.Equal(t, models.KindTransport, res.Messaging.Kind)
	assert.Contains(t, res.Messaging.Error, context.DeadlineExceeded.Error())
	assert.True(t, res.Email.OK, "email still attempted after a messaging timeout")
}

func TestProcessLeadRedactsSecrets(t *testing.T) {
	wa := &fakeWhatsApp{err: errors.New("error sending template message: bad header Bearer wa-secret-token")}
	svc := NewLeadService(wa, nil, testLeadCatalog(t), testConfig())

	res := svc.ProcessLead(context.Background(), testLead())

	assert.NotContains(t, res.Messaging.Error, "wa-secret-token")
	assert.Contains(t, res.Messaging.Error, "[REDACTED]")
}

func TestTemplateMessageParams(t *testing.T) {
	cfg := testConfig()
	cfg.WhatsApp.TemplateParams = []string{"firstName", "message", "selection", "total"}
	cfg.WhatsApp.TestRecipient = "+1 555 010 9999"
	wa := &fakeWhatsApp{}
	svc := NewLeadService(wa, nil, testLeadCatalog(t), cfg)

	lead := testLead()
	lead.Sessions, lead.Packages = nil, nil
	svc.ProcessLead(context.Background(), lead)

	require.Len(t, wa.sent, 1)
	assert.Equal(t, "15550109999", wa.sent[0].To)
	var texts []string
	for _, p := range wa.sent[0].Template.Components[0].Parameters {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"Ada", catalog.Placeholder, catalog.Placeholder, catalog.Placeholder}, texts)
}

func TestTemplateMessageWithoutParams(t *testing.T) {
	cfg := testConfig()
	cfg.WhatsApp.TemplateParams = nil
	wa := &fakeWhatsApp{}
	svc := NewLeadService(wa, nil, testLeadCatalog(t), cfg)

	svc.ProcessLead(context.Background(), testLead())

	require.Len(t, wa.sent, 1)
	assert.Empty(t, wa.sent[0].Template.Components)
}

func TestCheckTemplateParams(t *testing.T) {
	assert.NoError(t, CheckTemplateParams([]string{"firstName", "selection", "total"}))
	assert.NoError(t, CheckTemplateParams(nil))

	err := CheckTemplateParams([]string{"firstName", "price", "nickname"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price, nickname")
}

func TestPreview(t *testing.T) {
	wa := &fakeWhatsApp{}
	svc := NewLeadService(wa, nil, testLeadCatalog(t), testConfig())

	p, err := svc.Preview(testLead())
	require.NoError(t, err)

	assert.Empty(t, wa.sent)
	assert.False(t, p.EmailEnabled)
	assert.Equal(t, "447700900123", p.Message.To)
	assert.Equal(t, "$175", p.Summary.TotalText)
	assert.Contains(t, p.EmailHTML, "not sent (preview)")
}
