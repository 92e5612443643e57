// internal/common/validation/loan.go
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"loan-checker/internal/models"
)

// Form field names that differ from the LoanApplication field names.
var fieldAliases = map[string]string{
	"loanPurpose":      "purpose",
	"employmentStatus": "employment",
}

var numericFields = []string{"amount", "income"}

var loanApplicationSchema = mustSchema("loan_application", map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":       map[string]interface{}{"type": "string", "minLength": 1, "description": "Full name"},
		"email":      map[string]interface{}{"type": "string", "format": "email", "description": "Email address"},
		"phone":      map[string]interface{}{"type": "string", "minLength": 1, "description": "Phone number"},
		"amount":     map[string]interface{}{"type": "number", "minimum": 0, "description": "Loan amount"},
		"purpose":    map[string]interface{}{"type": "string", "enum": models.LoanPurposes, "description": "Loan purpose"},
		"employment": map[string]interface{}{"type": "string", "enum": models.EmploymentStatuses, "description": "Employment status"},
		"income":     map[string]interface{}{"type": "number", "minimum": 0, "description": "Annual income"},
	},
	"required": []string{"name", "email", "phone", "amount", "purpose", "employment", "income"},
})

var riskResponseSchema = mustSchema("loan_application_response", map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"response": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"risk": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(models.RiskLow), string(models.RiskMedium), string(models.RiskHigh)},
					"description": "Risk of the loan application",
				},
				"eligible": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether the applicant is eligible for the loan",
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Why the applicant is or is not eligible",
				},
			},
			"required": []string{"risk", "eligible"},
		},
	},
	"required": []string{"response"},
})

// RiskResponseSchema is the {"response": RiskAssessment} envelope requested from the model.
func RiskResponseSchema() *Schema { return riskResponseSchema }

// NormalizeApplication renames form aliases, trims strings and converts numeric strings.
// Values that cannot be converted are left as they are so validation can report them.
func NormalizeApplication(input map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		key := k
		if alias, ok := fieldAliases[k]; ok {
			key = alias
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[key] = v
	}

	for _, field := range numericFields {
		switch v := out[field].(type) {
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				out[field] = f
			}
		case int:
			out[field] = float64(v)
		case int64:
			out[field] = float64(v)
		case json.Number:
			if f, err := v.Float64(); err == nil {
				out[field] = f
			}
		}
	}
	return out
}

// ValidateApplication normalizes input and checks it against the loan application schema.
// The decoded application is returned only when the input is valid.
func ValidateApplication(input map[string]interface{}) (*models.LoanApplication, *ValidationResult) {
	normalized := NormalizeApplication(input)
	result := loanApplicationSchema.Validate(normalized)
	if !result.Valid {
		return nil, result
	}

	var app models.LoanApplication
	if err := decode(normalized, &app); err != nil {
		return nil, &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "INVALID_DOCUMENT"}},
		}
	}
	return &app, result
}

// ValidateAssessment checks a fully generated object against the response envelope schema.
func ValidateAssessment(value interface{}) (*models.RiskEnvelope, *ValidationResult) {
	result := riskResponseSchema.Validate(value)
	if !result.Valid {
		return nil, result
	}

	var env models.RiskEnvelope
	if err := decode(value, &env); err != nil {
		return nil, &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "INVALID_DOCUMENT"}},
		}
	}
	return &env, result
}

func decode(value interface{}, target interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
