package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var rcPattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// RCAdapter looks up a vehicle registration certificate
type RCAdapter struct {
	client *jsonClient
}

// NewRCAdapter creates the RC Verification adapter
func NewRCAdapter(cfg ClientConfig) *RCAdapter {
	return &RCAdapter{client: newJSONClient(cfg, "x-api-key")}
}

func (a *RCAdapter) Name() ServiceName { return RCVerification }

type rcRequest struct {
	RCNumber string `json:"rc_number"`
}

func (a *RCAdapter) Lookup(ctx context.Context, input string, cred Credential) (*Result, error) {
	rc := normalizeRC(input)
	if rc == "" {
		return nil, errEmptyInput
	}
	if !rcPattern.MatchString(rc) {
		return nil, fmt.Errorf("invalid registration number format")
	}

	env, err := a.client.post(ctx, rcRequest{RCNumber: rc}, cred)
	if err != nil {
		return nil, err
	}
	if env.failed() {
		return &Result{Success: false, ResultSummary: failureSummary(env, "No registration found for "+rc)}, nil
	}

	summary := "RC " + rc + " found"
	if owner := env.field("owner_name", "owner"); owner != "" {
		summary += ": registered to " + owner
	}
	if model := env.field("maker_model", "model"); model != "" {
		summary += ", " + model
	}
	return &Result{Success: true, Data: env.Data, ResultSummary: summary}, nil
}

// normalizeRC uppercases and drops spaces and dashes ("ka-01 ab 1234" -> "KA01AB1234")
func normalizeRC(input string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(input))
}
