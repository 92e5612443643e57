// internal/models/loan.go
package models

// Risk is the model's categorical assessment of loan risk.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Valid reports whether r is one of low, medium, high.
func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Loan purposes offered by the form.
const (
	PurposeSchoolFees = "school fees"
	PurposeRent       = "rent"
	PurposeHome       = "home"
	PurposeAuto       = "auto"
	PurposePersonal   = "personal"
	PurposeBusiness   = "business"
)

var LoanPurposes = []string{
	PurposeSchoolFees, PurposeRent, PurposeHome, PurposeAuto, PurposePersonal, PurposeBusiness,
}

const (
	EmploymentEmployed     = "employed"
	EmploymentSelfEmployed = "self-employed"
	EmploymentRetired      = "retired"
	EmploymentStudent      = "student"
)

var EmploymentStatuses = []string{
	EmploymentEmployed, EmploymentSelfEmployed, EmploymentRetired, EmploymentStudent,
}

type LoanApplication struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Amount     float64 `json:"amount"`
	Purpose    string  `json:"purpose"`
	Employment string  `json:"employment"`
	Income     float64 `json:"income"`
}

type RiskAssessment struct {
	Risk     Risk   `json:"risk"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// RiskEnvelope is the complete object the model is asked to produce.
type RiskEnvelope struct {
	Response RiskAssessment `json:"response"`
}

// PartialAssessment is a RiskAssessment still being generated; any field may be absent.
type PartialAssessment struct {
	Risk     *string `json:"risk,omitempty"`
	Eligible *bool   `json:"eligible,omitempty"`
	Reason   *string `json:"reason,omitempty"`
}

// PartialObject is one streamed snapshot of the RiskEnvelope.
type PartialObject struct {
	Response *PartialAssessment `json:"response,omitempty"`
}

// PartialFromMap builds a PartialObject out of a loosely parsed JSON value.
// Fields of the wrong type are treated as absent.
func PartialFromMap(v interface{}) PartialObject {
	root, ok := v.(map[string]interface{})
	if !ok {
		return PartialObject{}
	}
	resp, ok := root["response"].(map[string]interface{})
	if !ok {
		return PartialObject{}
	}

	pa := &PartialAssessment{}
	if s, ok := resp["risk"].(string); ok {
		pa.Risk = &s
	}
	if b, ok := resp["eligible"].(bool); ok {
		pa.Eligible = &b
	}
	if s, ok := resp["reason"].(string); ok {
		pa.Reason = &s
	}
	return PartialObject{Response: pa}
}
