// test/e2e/e2e_test.go
package e2e

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-checker/internal/common/config"
	"loan-checker/internal/common/database"
	apphttp "loan-checker/internal/common/http"
	"loan-checker/internal/common/llm"
	"loan-checker/internal/common/logger"
	"loan-checker/internal/generation"
	"loan-checker/internal/presentation"
	"loan-checker/internal/server"
)

const modelName = "gemini-1.5-pro-latest"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeModel serves an OpenAI-compatible streaming chat endpoint that replies
// with reply split into pieces of chunkSize bytes.
type fakeModel struct {
	reply     string
	chunkSize int
	status    int

	prompts chan string
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &req)
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			select {
			case m.prompts <- msg.Content:
			default:
			}
		}
	}

	if m.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.status)
		_, _ = io.WriteString(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for i := 0; i < len(m.reply); i += m.chunkSize {
		end := i + m.chunkSize
		if end > len(m.reply) {
			end = len(m.reply)
		}
		chunk, _ := json.Marshal(map[string]interface{}{
			"id":      "chatcmpl-e2e",
			"object":  "chat.completion.chunk",
			"created": 1,
			"model":   modelName,
			"choices": []map[string]interface{}{
				{"index": 0, "delta": map[string]interface{}{"content": m.reply[i:end]}},
			},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

type stack struct {
	app   *httptest.Server
	model *fakeModel
	redis *miniredis.Miniredis
}

func newStack(t *testing.T, model *fakeModel, rateLimit int) *stack {
	t.Helper()
	model.prompts = make(chan string, 8)

	modelSrv := httptest.NewServer(model)
	t.Cleanup(modelSrv.Close)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{
		App:        config.AppConfig{Name: "loan-checker", Version: "e2e"},
		Server:     config.ServerConfig{AllowedOrigins: "*", ShutdownTimeout: 1000},
		Model:      config.ModelConfig{BaseURL: modelSrv.URL + "/v1/", APIKey: "e2e-key", Name: modelName},
		Generation: config.GenerationConfig{MaxDuration: 5000, Buffer: 4},
		Forms:      config.FormsConfig{IdleTTL: 60000},
		RateLimit:  config.RateLimitConfig{Enabled: true, Requests: rateLimit, Window: 60000},
		Database:   config.DatabaseConfig{Redis: config.RedisConfig{Address: mr.Addr()}},
	}

	log := logger.NewTestLogger(t)

	provider, err := llm.NewOpenAICompatible(llm.OpenAIConfig{
		APIKey:     cfg.Model.APIKey,
		BaseURL:    cfg.Model.BaseURL,
		HTTPClient: apphttp.NewClient(10 * time.Second),
	})
	require.NoError(t, err)

	redisClient, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	srv, err := server.New(cfg, server.Deps{
		Generator: generation.NewService(generation.LoadConfig(cfg), provider, log, nil),
		Forms:     presentation.NewRegistry(config.GetDuration(cfg.Forms.IdleTTL), log),
		Redis:     redisClient,
		Logger:    log,
	})
	require.NoError(t, err)

	app := httptest.NewServer(srv.Handler())
	t.Cleanup(app.Close)

	return &stack{app: app, model: model, redis: mr}
}

var formIDPattern = regexp.MustCompile(`data-form-id="([^"]+)"`)

// openPage loads the page and returns the id of the form it rendered.
func (s *stack) openPage(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(s.app.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	m := formIDPattern.FindSubmatch(body)
	require.Len(t, m, 2, "page renders the form id")
	return string(m[1])
}

type event struct {
	name string
	data string
}

func (s *stack) submit(t *testing.T, formID string, fields url.Values) (*http.Response, []event) {
	t.Helper()
	resp, err := http.PostForm(s.app.URL+"/api/forms/"+formID+"/submit", fields)
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []event
	var cur event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.name != "" || cur.data != "" {
				events = append(events, cur)
			}
			cur = event{}
		case strings.HasPrefix(line, "event:"):
			cur.name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			cur.data += strings.TrimPrefix(line, "data:")
		}
	}
	require.NoError(t, scanner.Err())
	return resp, events
}

func viewOf(t *testing.T, data string) presentation.View {
	t.Helper()
	var v presentation.View
	require.NoError(t, json.Unmarshal([]byte(data), &v))
	return v
}

func anaApplication() url.Values {
	return url.Values{
		"name":             {"Ana"},
		"email":            {"a@x.com"},
		"phone":            {"555"},
		"amount":           {"1000"},
		"loanPurpose":      {"personal"},
		"employmentStatus": {"employed"},
		"income":           {"50000"},
	}
}

func TestE2E_SubmitStreamsAssessment(t *testing.T) {
	model := &fakeModel{
		reply:     `{"response": {"risk": "medium", "eligible": true, "reason": "Stable <b>income</b> covers the loan"}}`,
		chunkSize: 5,
	}
	s := newStack(t, model, 10)

	formID := s.openPage(t)
	resp, events := s.submit(t, formID, anaApplication())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, events)

	prompt := <-model.prompts
	for _, v := range anaApplication() {
		assert.Contains(t, prompt, v[0])
	}

	var sawDisplay bool
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, "view", ev.name)
		if v := viewOf(t, ev.data); v.Display != nil {
			sawDisplay = true
			assert.Contains(t, []presentation.Tone{
				presentation.ToneSuccess, presentation.ToneWarning, presentation.ToneDanger, presentation.ToneNeutral,
			}, v.Display.Tone)
		}
	}
	assert.True(t, sawDisplay)

	last := events[len(events)-1]
	require.Equal(t, "done", last.name)
	final := viewOf(t, last.data)
	assert.True(t, final.DialogOpen)
	assert.Empty(t, final.Fields)
	assert.Equal(t, presentation.PhaseIdle, final.Phase)
	assert.False(t, final.SubmitDisabled)
	require.NotNil(t, final.Display)
	assert.Equal(t, "medium", final.Display.Risk)
	assert.Equal(t, "bg-yellow-500", final.Display.Color)
	assert.Equal(t, "true", final.Display.EligibleText)
	assert.Equal(t, "Stable <b>income</b> covers the loan", final.Display.Reason)

	dismiss, err := http.Post(s.app.URL+"/api/forms/"+formID+"/dismiss", "application/json", strings.NewReader(`{"action":"continue"}`))
	require.NoError(t, err)
	defer dismiss.Body.Close()
	require.Equal(t, http.StatusOK, dismiss.StatusCode)

	var afterDismiss presentation.View
	require.NoError(t, json.NewDecoder(dismiss.Body).Decode(&afterDismiss))
	assert.False(t, afterDismiss.DialogOpen)
	assert.Equal(t, "medium", afterDismiss.Display.Risk)
}

func TestE2E_ModelFailureSurfacesOnForm(t *testing.T) {
	s := newStack(t, &fakeModel{status: http.StatusServiceUnavailable}, 10)

	formID := s.openPage(t)
	_, events := s.submit(t, formID, anaApplication())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, "error", last.name)
	assert.Contains(t, last.data, "MODEL_REQUEST_FAILED")

	resp, err := http.Get(s.app.URL + "/api/forms/" + formID)
	require.NoError(t, err)
	defer resp.Body.Close()

	var view presentation.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, presentation.PhaseIdle, view.Phase)
	require.NotNil(t, view.Error)
	assert.Equal(t, "MODEL_REQUEST_FAILED", view.Error.Code)
	assert.Contains(t, view.Error.Details, "model overloaded")
}

func TestE2E_MalformedAssessment(t *testing.T) {
	model := &fakeModel{reply: `{"response": {"risk": "extreme"}}`, chunkSize: 4}
	s := newStack(t, model, 10)

	formID := s.openPage(t)
	_, events := s.submit(t, formID, anaApplication())
	require.NotEmpty(t, events)

	var neutral bool
	for _, ev := range events {
		if ev.name != "view" {
			continue
		}
		if v := viewOf(t, ev.data); v.Display != nil && v.Display.Risk == "extreme" {
			neutral = v.Display.Tone == presentation.ToneNeutral
		}
	}
	assert.True(t, neutral, "an unknown risk is shown with the neutral tone")

	last := events[len(events)-1]
	require.Equal(t, "error", last.name)
	assert.Contains(t, last.data, "MALFORMED_MODEL_OUTPUT")
}

func TestE2E_RateLimit(t *testing.T) {
	model := &fakeModel{reply: `{"response": {"risk": "low", "eligible": true}}`, chunkSize: 8}
	s := newStack(t, model, 1)

	formID := s.openPage(t)
	first, _ := s.submit(t, formID, anaApplication())
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, _ := s.submit(t, formID, anaApplication())
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.NotEmpty(t, second.Header.Get("Retry-After"))

	s.redis.FastForward(61 * time.Second)

	third, _ := s.submit(t, formID, anaApplication())
	assert.Equal(t, http.StatusOK, third.StatusCode)
}
