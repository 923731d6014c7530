package config

import (
	"errors"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConsentMode controls which opt-in flags a lead has to tick.
type ConsentMode string

const (
	ConsentNone ConsentMode = "none"
	ConsentAny  ConsentMode = "any"
	ConsentAll  ConsentMode = "all"
)

// Config holds all application configuration values
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	CORSOrigin  string
	CatalogFile string

	WhatsApp   WhatsAppConfig
	Email      EmailConfig
	Validation ValidationConfig
	Delivery   DeliveryConfig
	Tracing    TracingConfig
}

// WhatsAppConfig configures the Cloud API template sender.
// TemplateParams must list exactly the parameters the template was registered with.
type WhatsAppConfig struct {
	Token          string `env:"WHATSAPP_TOKEN" validate:"required"`
	PhoneNumberID  string `env:"WHATSAPP_PHONE_NUMBER_ID" validate:"required"`
	TemplateName   string `env:"WHATSAPP_TEMPLATE_NAME" validate:"required"`
	TemplateLang   string `env:"WHATSAPP_TEMPLATE_LANG" validate:"required"`
	TemplateParams []string
	APIVersion     string
	BaseURL        string
	TestRecipient  string
}

// EmailConfig configures the Resend owner notification. Email is skipped unless
// every tagged field is present.
type EmailConfig struct {
	APIKey  string   `env:"RESEND_API_KEY" validate:"required"`
	From    string   `env:"EMAIL_FROM" validate:"required"`
	To      []string `env:"EMAIL_TO" validate:"min=1,dive,required"`
	BaseURL string
}

type ValidationConfig struct {
	RequireCountry   bool
	RequireSelection bool
	ConsentMode      ConsentMode
	MinPhoneDigits   int
}

type DeliveryConfig struct {
	Timeout time.Duration
}

type TracingConfig struct {
	Exporter    string
	Endpoint    string
	ServiceName string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigin:  getEnv("CORS_ALLOW_ORIGIN", "*"),
		CatalogFile: os.Getenv("CATALOG_FILE"),
		WhatsApp: WhatsAppConfig{
			Token:          os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			TemplateName:   getEnv("WHATSAPP_TEMPLATE_NAME", "hello_world"),
			TemplateLang:   getEnv("WHATSAPP_TEMPLATE_LANG", "en_US"),
			TemplateParams: splitList(lookupEnv("WHATSAPP_TEMPLATE_PARAMS", "selection,total")),
			APIVersion:     getEnv("WHATSAPP_API_VERSION", "v22.0"),
			BaseURL:        getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			TestRecipient:  os.Getenv("WHATSAPP_TEST_TO"),
		},
		Email: EmailConfig{
			APIKey:  os.Getenv("RESEND_API_KEY"),
			From:    os.Getenv("EMAIL_FROM"),
			To:      splitList(os.Getenv("EMAIL_TO")),
			BaseURL: getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		},
		Validation: ValidationConfig{
			RequireCountry:   getBool("REQUIRE_COUNTRY", true),
			RequireSelection: getBool("REQUIRE_SELECTION", true),
			ConsentMode:      parseConsentMode(os.Getenv("CONSENT_MODE")),
			MinPhoneDigits:   getInt("MIN_PHONE_DIGITS", 8),
		},
		Delivery: DeliveryConfig{
			Timeout: getDuration("DELIVERY_TIMEOUT", 10*time.Second),
		},
		Tracing: TracingConfig{
			Exporter:    strings.ToLower(os.Getenv("TRACING_EXPORTER")),
			Endpoint:    os.Getenv("TRACING_ENDPOINT"),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "lead-intake"),
		},
	}
}

// MissingMessaging returns the names of required WhatsApp variables that are
// unset. Values are never included.
func (c *Config) MissingMessaging() []string {
	return missingEnv(c.WhatsApp)
}

// EmailEnabled reports whether every variable needed for the owner email is set.
func (c *Config) EmailEnabled() bool {
	return len(missingEnv(c.Email)) == 0
}

// Secrets lists the configured credential values that must never leave the process.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{c.WhatsApp.Token, c.Email.APIKey} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var envValidator = newEnvValidator()

func newEnvValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	return v
}

func missingEnv(s any) []string {
	err := envValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	var names []string
	seen := map[string]bool{}
	for _, fe := range verrs {
		// dive errors report the slice element, e.g. EMAIL_TO[0]
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func parseConsentMode(v string) ConsentMode {
	switch ConsentMode(strings.ToLower(strings.TrimSpace(v))) {
	case ConsentNone:
		return ConsentNone
	case ConsentAll:
		return ConsentAll
	default:
		return ConsentAny
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// lookupEnv is getEnv but an explicitly empty variable wins over the default.
func lookupEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
