package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// PANAdapter verifies a Permanent Account Number
type PANAdapter struct {
	client *jsonClient
}

// NewPANAdapter creates the PAN Verification adapter
func NewPANAdapter(cfg ClientConfig) *PANAdapter {
	return &PANAdapter{client: newJSONClient(cfg, "x-api-key")}
}

func (a *PANAdapter) Name() ServiceName { return PANVerification }

type panRequest struct {
	PAN string `json:"pan"`
}

func (a *PANAdapter) Lookup(ctx context.Context, input string, cred Credential) (*Result, error) {
	pan := strings.ToUpper(strings.Join(strings.Fields(input), ""))
	if pan == "" {
		return nil, errEmptyInput
	}
	if !panPattern.MatchString(pan) {
		return nil, fmt.Errorf("invalid PAN format")
	}

	env, err := a.client.post(ctx, panRequest{PAN: pan}, cred)
	if err != nil {
		return nil, err
	}
	if env.failed() {
		return &Result{Success: false, ResultSummary: failureSummary(env, "PAN "+pan+" could not be verified")}, nil
	}

	summary := "PAN " + pan + " verified"
	if name := env.field("full_name", "name"); name != "" {
		summary += ": " + name
	}
	if status := env.field("status", "pan_status"); status != "" {
		summary += " (" + status + ")"
	}
	return &Result{Success: true, Data: env.Data, ResultSummary: summary}, nil
}
