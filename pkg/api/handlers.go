package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lead-intake/pkg/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/models"
	"lead-intake/pkg/services"
	"lead-intake/pkg/telemetry"
)

const maxBodyBytes = 2 << 20

var errTrailingData = errors.New("unexpected data after JSON object")

// LeadPaths are the routes the lead endpoint answers on.
var LeadPaths = []string{"/lead", "/api/lead"}

var allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	leadService services.LeadService
	normalizer  *services.Normalizer
	configErr   *services.ConfigurationError
}

// NewHandlers creates a new Handlers instance
func NewHandlers(leadService services.LeadService, normalizer *services.Normalizer, cfg *config.Config) *Handlers {
	h := &Handlers{
		leadService: leadService,
		normalizer:  normalizer,
	}
	var cerr *services.ConfigurationError
	if errors.As(services.CheckConfiguration(cfg), &cerr) {
		h.configErr = cerr
	}
	return h
}

// Register mounts the lead endpoint on every path in LeadPaths.
func (h *Handlers) Register(r gin.IRouter) {
	for _, p := range LeadPaths {
		r.GET(p, h.LeadProbe)
		r.POST(p, h.HandleLeadSubmission)
		r.OPTIONS(p, h.LeadPreflight)
		for _, m := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead} {
			r.Handle(m, p, h.MethodNotAllowed)
		}
	}
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// LeadProbe lets a browser open the endpoint without sending anything.
func (h *Handlers) LeadProbe(c *gin.Context) {
	c.JSON(http.StatusOK, models.LeadResponse{OK: true, Message: "lead ok (POST JSON to send template)"})
}

func (h *Handlers) LeadPreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// NoRoute answers unmatched requests. Any method on a lead path that is not
// explicitly routed gets the same 405 as the registered ones.
func (h *Handlers) NoRoute(c *gin.Context) {
	for _, p := range LeadPaths {
		if c.Request.URL.Path == p {
			h.MethodNotAllowed(c)
			return
		}
	}
	c.JSON(http.StatusNotFound, models.LeadResponse{Error: "Not found"})
}

func (h *Handlers) MethodNotAllowed(c *gin.Context) {
	c.Header("Allow", strings.Join(allowedMethods, ", "))
	c.JSON(http.StatusMethodNotAllowed, models.LeadResponse{Error: "Method not allowed. Use POST."})
}

// HandleLeadSubmission validates a contact form post and hands it to the lead service.
func (h *Handlers) HandleLeadSubmission(c *gin.Context) {
	ctx := c.Request.Context()
	requestID, _ := logger.RequestIDFromContext(ctx)

	if h.configErr != nil {
		logger.ErrorCtx(ctx, "lead rejected, messaging not configured", "need", h.configErr.Need)
		telemetry.RecordSubmission(telemetry.OutcomeConfigError)
		c.JSON(http.StatusInternalServerError, models.LeadResponse{
			RequestID: requestID,
			Error:     "Missing env vars",
			Need:      h.configErr.Need,
		})
		return
	}

	raw, err := readJSONObject(c)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		logger.WarnCtx(ctx, "lead rejected, unreadable body", "error", err.Error())
		telemetry.RecordSubmission(telemetry.OutcomeRejected)
		c.JSON(status, models.LeadResponse{
			RequestID: requestID,
			Error:     "Invalid JSON",
			Code:      services.CodeInvalidJSON,
		})
		return
	}

	lead, err := h.normalizer.Normalize(raw)
	if err != nil {
		var verr *services.ValidationError
		if !errors.As(err, &verr) {
			verr = &services.ValidationError{Message: err.Error()}
		}
		logger.InfoCtx(ctx, "lead rejected", "code", verr.Code, "need", verr.Need)
		telemetry.RecordSubmission(telemetry.OutcomeRejected)
		c.JSON(http.StatusBadRequest, models.LeadResponse{
			RequestID: requestID,
			Error:     verr.Message,
			Code:      verr.Code,
			Need:      verr.Need,
		})
		return
	}

	result := h.leadService.ProcessLead(ctx, lead)
	status, resp := leadResponse(result)
	c.JSON(status, resp)
}

// readJSONObject decodes the body as a JSON object. An empty body is an empty object.
func readJSONObject(c *gin.Context) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return raw, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	if raw == nil {
		// a literal null
		raw = map[string]any{}
	}
	return raw, nil
}
