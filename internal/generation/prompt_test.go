// internal/generation/prompt_test.go
package generation

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_ContainsEveryFieldValue(t *testing.T) {
	input := map[string]interface{}{
		"name":             "Ana",
		"email":            "a@x.com",
		"phone":            "555",
		"amount":           1000.0,
		"loanPurpose":      "school fees",
		"employmentStatus": "self-employed",
		"income":           "50000.50",
		"note":             "<b>R&D</b>",
	}

	prompt, err := BuildPrompt(input)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Process the loan application form"))
	for _, literal := range []string{"Ana", "a@x.com", "555", "1000", "school fees", "self-employed", "50000.50", "<b>R&D</b>"} {
		assert.Contains(t, prompt, literal)
	}
	for key := range input {
		assert.Contains(t, prompt, fmt.Sprintf("%q", key))
	}
}

func TestBuildPrompt_RandomFieldSetsDropNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyz ABC0123456789-@.&<>éü")

	randomText := func() string {
		n := 1 + rng.Intn(12)
		out := make([]rune, n)
		for i := range out {
			out[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(out)
	}

	for i := 0; i < 200; i++ {
		input := map[string]interface{}{}
		for j := 0; j < 1+rng.Intn(8); j++ {
			input[fmt.Sprintf("field%d", j)] = randomText()
		}

		prompt, err := BuildPrompt(input)
		require.NoError(t, err)
		for k, v := range input {
			assert.Contains(t, prompt, k)
			assert.Contains(t, prompt, v.(string))
		}
	}
}

func TestSerializeInput_SortedCompact(t *testing.T) {
	out, err := SerializeInput(map[string]interface{}{"b": 2.0, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2}`, out)
}

func TestSerializeInput_Unserializable(t *testing.T) {
	_, err := SerializeInput(map[string]interface{}{"f": func() {}})
	assert.Error(t, err)
}

func TestFieldsFromForm(t *testing.T) {
	values := url.Values{
		"name":   {"Ana"},
		"amount": {"10", "1000"},
		"empty":  {},
	}

	fields := FieldsFromForm(values)
	assert.Equal(t, map[string]interface{}{"name": "Ana", "amount": "1000"}, fields)
}
