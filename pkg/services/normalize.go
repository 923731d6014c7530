package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"lead-intake/pkg/config"
	"lead-intake/pkg/models"
)

// Maximum accepted lengths, in runes. Longer values are cut, not rejected.
const (
	maxNameLen      = 80
	maxEmailLen     = 160
	maxCountryLen   = 80
	maxPrefixLen    = 8
	maxPhoneLen     = 32
	maxMessageLen   = 500
	maxSelectionLen = 40
)

// Normalizer turns an untrusted JSON object into a LeadSubmission.
type Normalizer struct {
	cfg      config.ValidationConfig
	validate *validator.Validate
}

func NewNormalizer(cfg config.ValidationConfig) *Normalizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if cfg.MinPhoneDigits <= 0 {
		cfg.MinPhoneDigits = 8
	}
	if cfg.ConsentMode == "" {
		cfg.ConsentMode = config.ConsentAny
	}
	return &Normalizer{cfg: cfg, validate: v}
}

// Normalize extracts and checks a lead. Checks run in order: required fields,
// consent, selection, phone. The returned error is always a *ValidationError.
func (n *Normalizer) Normalize(raw map[string]any) (models.LeadSubmission, error) {
	lead := models.LeadSubmission{
		FirstName:     str(raw, maxNameLen, "firstName"),
		LastName:      str(raw, maxNameLen, "lastName"),
		Email:         str(raw, maxEmailLen, "email"),
		Country:       str(raw, maxCountryLen, "country"),
		PhonePrefix:   str(raw, maxPrefixLen, "countryCode", "cc", "phone_prefix"),
		PhoneLocal:    str(raw, maxPhoneLen, "phone", "to"),
		Message:       str(raw, maxMessageLen, "message", "notes"),
		Sessions:      strSlice(raw["sessions"]),
		Packages:      strSlice(raw["packages"]),
		OptInWhatsApp: truthy(raw["optinWhatsapp"]) || truthy(raw["consent_whatsapp"]),
		OptInStop:     truthy(raw["optinStop"]),
	}

	if need := n.missingFields(lead); len(need) > 0 {
		return lead, &ValidationError{Code: CodeMissingFields, Message: "Missing required fields", Need: need}
	}

	if !n.consented(lead) {
		return lead, &ValidationError{Code: CodeConsentRequired, Message: "Consent required"}
	}

	if n.cfg.RequireSelection && len(lead.Sessions) == 0 && len(lead.Packages) == 0 {
		return lead, &ValidationError{Code: CodeNoSelection, Message: "Select at least one session or package"}
	}

	lead.Phone = NormalizePhone(lead.PhonePrefix, lead.PhoneLocal)
	if len(lead.Phone) < n.cfg.MinPhoneDigits {
		return lead, &ValidationError{Code: CodeInvalidPhone, Message: "Invalid phone number"}
	}

	return lead, nil
}

func (n *Normalizer) missingFields(lead models.LeadSubmission) []string {
	var err error
	if n.cfg.RequireCountry {
		err = n.validate.Struct(lead)
	} else {
		err = n.validate.StructExcept(lead, "Country")
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	need := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		need = append(need, fe.Field())
	}
	return need
}

func (n *Normalizer) consented(lead models.LeadSubmission) bool {
	switch n.cfg.ConsentMode {
	case config.ConsentNone:
		return true
	case config.ConsentAll:
		return lead.OptInWhatsApp && lead.OptInStop
	default:
		return lead.OptInWhatsApp || lead.OptInStop
	}
}

// NormalizePhone joins a calling code and a local number into the digits-only
// form the messaging API expects. Without a prefix the local part is taken as a
// full international number.
func NormalizePhone(prefix, local string) string {
	l := digits(local)
	if l == "" {
		return ""
	}
	return strings.TrimLeft(digits(prefix)+l, "0")
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// str returns the first non-empty value among keys, trimmed and cut to limit runes.
func str(raw map[string]any, limit int, keys ...string) string {
	for _, k := range keys {
		if s := truncate(coerce(raw[k]), limit); s != "" {
			return s
		}
	}
	return ""
}

func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(r[:limit]), unicode.IsSpace)
}

func strSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := truncate(coerce(item), maxSelectionLen); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	return false
}
