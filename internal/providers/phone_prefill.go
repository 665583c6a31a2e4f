package providers

import (
	"context"
	"fmt"
	"strings"
)

// PhonePrefillAdapter resolves a mobile number to the identity details the
// provider holds for it.
type PhonePrefillAdapter struct {
	client *jsonClient
}

// NewPhonePrefillAdapter creates the Phone Prefill V2 adapter
func NewPhonePrefillAdapter(cfg ClientConfig) *PhonePrefillAdapter {
	return &PhonePrefillAdapter{client: newJSONClient(cfg, "Authorization")}
}

func (a *PhonePrefillAdapter) Name() ServiceName { return PhonePrefillV2 }

type phonePrefillRequest struct {
	MobileNumber string `json:"mobile_number"`
	Consent      string `json:"consent"`
}

func (a *PhonePrefillAdapter) Lookup(ctx context.Context, input string, cred Credential) (*Result, error) {
	mobile, err := normalizeMobile(input)
	if err != nil {
		return nil, err
	}

	env, err := a.client.post(ctx, phonePrefillRequest{MobileNumber: mobile, Consent: "Y"}, cred)
	if err != nil {
		return nil, err
	}
	if env.failed() {
		return &Result{Success: false, ResultSummary: failureSummary(env, "No prefill record found for "+maskTail(mobile))}, nil
	}

	summary := "Phone prefill completed for " + maskTail(mobile)
	if name := env.field("name", "full_name"); name != "" {
		summary += ": " + name
	}
	return &Result{Success: true, Data: env.Data, ResultSummary: summary}, nil
}

// normalizeMobile keeps the ten national digits of an Indian mobile number
func normalizeMobile(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	if digits == "" {
		return "", errEmptyInput
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("invalid mobile number: expected 10 digits, got %d", len(digits))
	}
	return digits, nil
}

// maskTail hides all but the last four characters
func maskTail(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return s
	}
	return strings.Repeat("X", len(runes)-4) + string(runes[len(runes)-4:])
}

func failureSummary(env *envelope, fallback string) string {
	if env.Message != "" {
		return env.Message
	}
	return fallback
}
