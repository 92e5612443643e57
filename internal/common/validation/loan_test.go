// internal/common/validation/loan_test.go
package validation

import (
	"encoding/json"
	"testing"

	"loan-checker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() map[string]interface{} {
	return map[string]interface{}{
		"name":             "Ana",
		"email":            "a@x.com",
		"phone":            "555",
		"amount":           1000.0,
		"loanPurpose":      "personal",
		"employmentStatus": "employed",
		"income":           50000.0,
	}
}

func TestNormalizeApplication(t *testing.T) {
	out := NormalizeApplication(map[string]interface{}{
		"name":             "  Ana ",
		"loanPurpose":      "school fees",
		"employmentStatus": "student",
		"amount":           "1000",
		"income":           "abc",
	})

	assert.Equal(t, "Ana", out["name"])
	assert.Equal(t, "school fees", out["purpose"])
	assert.Equal(t, "student", out["employment"])
	assert.Equal(t, 1000.0, out["amount"])
	assert.Equal(t, "abc", out["income"])
	assert.NotContains(t, out, "loanPurpose")
	assert.NotContains(t, out, "employmentStatus")
}

func TestNormalizeApplication_RejectsNonFiniteNumbers(t *testing.T) {
	out := NormalizeApplication(map[string]interface{}{"amount": "NaN", "income": "Inf"})
	assert.Equal(t, "NaN", out["amount"])
	assert.Equal(t, "Inf", out["income"])
}

func TestValidateApplication_Valid(t *testing.T) {
	app, result := ValidateApplication(validInput())

	require.True(t, result.Valid, result.GetErrorMessages())
	require.NotNil(t, app)
	assert.Equal(t, models.LoanApplication{
		Name:       "Ana",
		Email:      "a@x.com",
		Phone:      "555",
		Amount:     1000,
		Purpose:    "personal",
		Employment: "employed",
		Income:     50000,
	}, *app)
}

func TestValidateApplication_AllPurposesAccepted(t *testing.T) {
	for _, purpose := range models.LoanPurposes {
		t.Run(purpose, func(t *testing.T) {
			in := validInput()
			in["loanPurpose"] = purpose
			_, result := ValidateApplication(in)
			assert.True(t, result.Valid, result.GetErrorMessages())
		})
	}
}

func TestValidateApplication_Violations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]interface{})
		wantField string
		wantCode  string
	}{
		{"missing name", func(m map[string]interface{}) { delete(m, "name") }, "name", "REQUIRED_FIELD_MISSING"},
		{"empty phone", func(m map[string]interface{}) { m["phone"] = "  " }, "phone", "MIN_LENGTH_VIOLATION"},
		{"bad email", func(m map[string]interface{}) { m["email"] = "not-an-email" }, "email", "INVALID_FORMAT"},
		{"negative amount", func(m map[string]interface{}) { m["amount"] = -5.0 }, "amount", "MINIMUM_VIOLATION"},
		{"non-numeric income", func(m map[string]interface{}) { m["income"] = "lots" }, "income", "INVALID_TYPE"},
		{"unknown purpose", func(m map[string]interface{}) { m["loanPurpose"] = "yacht" }, "purpose", "INVALID_ENUM_VALUE"},
		{"unknown employment", func(m map[string]interface{}) { m["employmentStatus"] = "pirate" }, "employment", "INVALID_ENUM_VALUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)

			app, result := ValidateApplication(in)

			assert.Nil(t, app)
			assert.False(t, result.Valid)
			require.True(t, result.HasErrors(tt.wantField), result.GetErrorMessages())
			errs := result.GetErrorsForField(tt.wantField)
			assert.Equal(t, tt.wantCode, errs[0].Code)
		})
	}
}

func TestValidateApplication_ReportsEveryViolation(t *testing.T) {
	_, result := ValidateApplication(map[string]interface{}{
		"email":  "nope",
		"amount": -1.0,
	})

	assert.False(t, result.Valid)
	for _, field := range []string{"name", "email", "phone", "amount", "purpose", "employment", "income"} {
		assert.True(t, result.HasErrors(field), "expected a violation for %s", field)
	}
	assert.Contains(t, result.Codes(), "REQUIRED_FIELD_MISSING")
	assert.Contains(t, result.Codes(), "INVALID_FORMAT")
	assert.Contains(t, result.Codes(), "MINIMUM_VIOLATION")
}

func TestValidateAssessment_RoundTrip(t *testing.T) {
	envelopes := []models.RiskEnvelope{
		{Response: models.RiskAssessment{Risk: models.RiskLow, Eligible: true, Reason: "Stable income"}},
		{Response: models.RiskAssessment{Risk: models.RiskMedium, Eligible: true}},
		{Response: models.RiskAssessment{Risk: models.RiskHigh, Eligible: false, Reason: "Debt <high>"}},
	}

	for _, env := range envelopes {
		b, err := json.Marshal(env)
		require.NoError(t, err)

		var doc interface{}
		require.NoError(t, json.Unmarshal(b, &doc))

		got, result := ValidateAssessment(doc)
		require.True(t, result.Valid, result.GetErrorMessages())
		assert.Equal(t, env, *got)
	}
}

func TestValidateAssessment_Violations(t *testing.T) {
	tests := []struct {
		name      string
		doc       interface{}
		wantField string
		wantCode  string
	}{
		{"missing response", map[string]interface{}{}, "response", "REQUIRED_FIELD_MISSING"},
		{"missing eligible", map[string]interface{}{"response": map[string]interface{}{"risk": "low"}}, "response.eligible", "REQUIRED_FIELD_MISSING"},
		{"bad risk", map[string]interface{}{"response": map[string]interface{}{"risk": "extreme", "eligible": true}}, "response.risk", "INVALID_ENUM_VALUE"},
		{"eligible as string", map[string]interface{}{"response": map[string]interface{}{"risk": "low", "eligible": "yes"}}, "response.eligible", "INVALID_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, result := ValidateAssessment(tt.doc)
			assert.Nil(t, env)
			assert.False(t, result.Valid)
			require.True(t, result.HasErrors(tt.wantField), result.GetErrorMessages())
			assert.Equal(t, tt.wantCode, result.GetErrorsForField(tt.wantField)[0].Code)
		})
	}
}

func TestRiskResponseSchema_RawIsJSON(t *testing.T) {
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(RiskResponseSchema().Raw(), &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []interface{}{"response"}, doc["required"])
}
