// Package server wires configuration, providers and routes into one http.Handler.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"lead-intake/pkg/api"
	"lead-intake/pkg/catalog"
	"lead-intake/pkg/clients/resend"
	"lead-intake/pkg/clients/transport"
	"lead-intake/pkg/clients/whatsapp"
	"lead-intake/pkg/config"
	"lead-intake/pkg/logger"
	"lead-intake/pkg/middleware"
	"lead-intake/pkg/services"
	"lead-intake/pkg/telemetry"
)

// NewLeadService builds the lead service and its provider clients from cfg.
func NewLeadService(cfg *config.Config) (services.LeadService, error) {
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	if err := services.CheckTemplateParams(cfg.WhatsApp.TemplateParams); err != nil {
		return nil, err
	}

	doer := transport.NewDoer(cfg.Delivery.Timeout)
	whatsappClient := whatsapp.NewClient(cfg.WhatsApp, doer)

	var resendClient resend.Client
	if cfg.EmailEnabled() {
		resendClient = resend.NewClient(cfg.Email, doer)
	} else {
		logger.Warn("Owner email disabled, set RESEND_API_KEY, EMAIL_FROM and EMAIL_TO to enable it")
	}
	if missing := cfg.MissingMessaging(); len(missing) > 0 {
		logger.Warn("WhatsApp not configured, lead submissions will fail until %v are set", missing)
	}

	return services.NewLeadService(whatsappClient, resendClient, cat, cfg), nil
}

// New builds the full HTTP handler for cfg.
func New(cfg *config.Config) (http.Handler, error) {
	svc, err := NewLeadService(cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing lead service: %w", err)
	}
	return NewRouter(cfg, svc), nil
}

// NewRouter mounts the lead, health and metrics routes around svc.
func NewRouter(cfg *config.Config, svc services.LeadService) http.Handler {
	switch cfg.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.GinMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSOrigin),
	)

	handlers := api.NewHandlers(svc, services.NewNormalizer(cfg.Validation), cfg)
	handlers.Register(router)
	router.NoRoute(handlers.NoRoute)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	return telemetry.WrapHandler("lead-intake", router)
}
