// internal/generation/prompt.go
package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const systemInstruction = "You are a loan officer at a bank. Review the loan application a customer submitted. " +
	"Analyze the application and provide feedback to the customer on the risk of the loan application, " +
	"whether they are eligible for the loan, and why they are or are not eligible."

const promptTemplate = "Process the loan application form and provide feedback to the customer on the risk of the loan application, " +
	"whether they are eligible for the loan, or why they are not eligible for the loan. " +
	"The loan application form contains the following details: %s"

// SerializeInput renders the submitted fields as compact JSON with sorted keys.
// HTML characters are left unescaped so values appear in the prompt as typed.
func SerializeInput(input map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(input); err != nil {
		return "", fmt.Errorf("serialize input: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func BuildPrompt(input map[string]interface{}) (string, error) {
	serialized, err := SerializeInput(input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(promptTemplate, serialized), nil
}

// FieldsFromForm flattens submitted form values, keeping the last value of repeated keys.
func FieldsFromForm(values url.Values) map[string]interface{} {
	fields := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		fields[k] = vs[len(vs)-1]
	}
	return fields
}
