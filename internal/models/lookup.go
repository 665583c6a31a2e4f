package models

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// LookupRequest is the inbound body of a brokered lookup
type LookupRequest struct {
	ServiceID string `json:"api_id" validate:"required,uuid"`
	InputData string `json:"input_data" validate:"required"`
	Category  string `json:"category" validate:"required"`
	OfficerID string `json:"officer_id" validate:"required,uuid"`
}

// Validate trims the request fields and checks that all of them are present
// and that the ids are UUIDs.
func (r *LookupRequest) Validate() error {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.InputData = strings.TrimSpace(r.InputData)
	r.Category = strings.TrimSpace(r.Category)
	r.OfficerID = strings.TrimSpace(r.OfficerID)

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return NewInvalidRequestError(jsonFieldName(fe.Field()), "Missing required fields")
			}
			return NewInvalidRequestError(jsonFieldName(fe.Field()), "Malformed identifier")
		}
		return NewInvalidRequestError("", err.Error())
	}
	return nil
}

// IDs returns the parsed service and officer ids. Validate must have succeeded.
func (r *LookupRequest) IDs() (serviceID, officerID uuid.UUID) {
	return uuid.MustParse(r.ServiceID), uuid.MustParse(r.OfficerID)
}

func jsonFieldName(field string) string {
	switch field {
	case "ServiceID":
		return "api_id"
	case "InputData":
		return "input_data"
	case "Category":
		return "category"
	case "OfficerID":
		return "officer_id"
	}
	return strings.ToLower(field)
}

// LookupResponse is the only thing a caller ever sees of a lookup.
type LookupResponse struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data,omitempty"`
	ResultSummary string          `json:"result_summary"`
	CreditsUsed   int             `json:"credits_used"`
	Error         string          `json:"error,omitempty"`
}

// ValidateStruct runs tag validation on admin payloads
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return NewInvalidRequestError(verrs[0].Field(), verrs[0].Error())
		}
		return NewInvalidRequestError("", err.Error())
	}
	return nil
}
