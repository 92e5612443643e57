// internal/presentation/form.go
package presentation

import (
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "loan-checker/internal/common/errors"
	"loan-checker/internal/common/logger"
	"loan-checker/internal/common/metrics"
	"loan-checker/internal/generation"
	"loan-checker/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// Phase is the submission state of a form instance.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseStreaming  Phase = "streaming"
)

const (
	labelIdle     = "Check Application"
	labelChecking = "Checking..."
)

// Dialog dismissal actions. Both close the dialog.
const (
	ActionCancel   = "cancel"
	ActionContinue = "continue"
)

// Display is the assessment shown in the confirmation dialog.
type Display struct {
	Risk         string `json:"risk"`
	Tone         Tone   `json:"tone"`
	Color        string `json:"color"`
	Eligible     *bool  `json:"eligible,omitempty"`
	EligibleText string `json:"eligibleText"`
	Reason       string `json:"reason,omitempty"`
}

type ErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// View is a snapshot of a form instance.
type View struct {
	FormID         string            `json:"formId"`
	Phase          Phase             `json:"phase"`
	Sequence       uint64            `json:"sequence"`
	Applied        uint64            `json:"applied"`
	SubmitLabel    string            `json:"submitLabel"`
	SubmitDisabled bool              `json:"submitDisabled"`
	DialogOpen     bool              `json:"dialogOpen"`
	Display        *Display          `json:"display"`
	Fields         map[string]string `json:"fields"`
	Error          *ErrorView        `json:"error,omitempty"`
}

// Form holds the state of one form instance. Every request gets a sequence
// number from Submit; chunks of a request older than the newest applied one
// never reach the display.
type Form struct {
	mu sync.Mutex

	id         string
	phase      Phase
	latest     uint64
	applied    uint64
	display    *Display
	dialogOpen bool
	fields     map[string]string
	lastErr    *ErrorView
	touched    time.Time

	logger    logger.Logger
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

func NewForm(id string, log logger.Logger) *Form {
	return newForm(id, log, time.Now)
}

func newForm(id string, log logger.Logger, now func() time.Time) *Form {
	return &Form{
		id:        id,
		phase:     PhaseIdle,
		fields:    map[string]string{},
		logger:    log.WithFields(map[string]interface{}{"formId": id}),
		sanitizer: bluemonday.StrictPolicy(),
		now:       now,
		touched:   now(),
	}
}

func (f *Form) ID() string { return f.id }

// Submit records the submitted fields and starts a new request.
func (f *Form) Submit(fields map[string]string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest++
	f.phase = PhaseSubmitting
	f.lastErr = nil
	f.fields = make(map[string]string, len(fields))
	for k, v := range fields {
		f.fields[k] = v
	}
	f.touched = f.now()
	return f.latest
}

// Apply shows partial as the current assessment of request seq. It reports
// whether the display changed.
func (f *Form) Apply(seq uint64, partial models.PartialObject) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = f.now()
	if seq == 0 || seq > f.latest {
		return false
	}
	if seq < f.applied {
		f.logger.Debug("stale partial discarded", map[string]interface{}{
			"sequence": seq,
			"applied":  f.applied,
		})
		return false
	}
	if partial.Response == nil {
		f.logger.Error("invalid partial object structure", map[string]interface{}{
			"sequence": seq,
			"response": nil,
		})
		metrics.MalformedPartials.Inc()
		return false
	}

	f.display = f.render(partial.Response)
	f.dialogOpen = true
	f.fields = map[string]string{}
	f.applied = seq
	if seq == f.latest {
		f.phase = PhaseStreaming
	}
	return true
}

func (f *Form) render(resp *models.PartialAssessment) *Display {
	d := &Display{}
	if resp.Risk != nil {
		d.Risk = *resp.Risk
	}
	d.Tone = ToneFor(d.Risk)
	d.Color = d.Tone.Class()
	if resp.Eligible != nil {
		eligible := *resp.Eligible
		d.Eligible = &eligible
		d.EligibleText = strconv.FormatBool(eligible)
	}
	if resp.Reason != nil {
		d.Reason = *resp.Reason
	}
	return d
}

// Complete ends request seq. The form returns to Idle when seq is the latest request.
func (f *Form) Complete(seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = f.now()
	if seq != f.latest || f.phase == PhaseIdle {
		return false
	}
	f.phase = PhaseIdle
	return true
}

// Fail ends request seq with err, which is kept on the view.
func (f *Form) Fail(seq uint64, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = f.now()
	if seq != f.latest || f.phase == PhaseIdle {
		return false
	}
	stdErr := generation.AsStandardError(err)
	f.lastErr = &ErrorView{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		// provider error bodies can be whole HTML pages
		Details: strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(stdErr.Details))),
	}
	f.phase = PhaseIdle
	f.logger.Warn("assessment stream failed", map[string]interface{}{
		"sequence":  seq,
		"errorCode": string(stdErr.Code),
		"error":     err,
	})
	return true
}

// Dismiss closes the dialog.
func (f *Form) Dismiss(action string) error {
	switch action {
	case ActionCancel, ActionContinue:
	default:
		return apperrors.NewInvalidRequestError("unknown dialog action: " + action)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogOpen = false
	f.touched = f.now()
	return nil
}

func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		FormID:         f.id,
		Phase:          f.phase,
		Sequence:       f.latest,
		Applied:        f.applied,
		SubmitLabel:    labelIdle,
		SubmitDisabled: f.phase != PhaseIdle,
		DialogOpen:     f.dialogOpen,
		Fields:         make(map[string]string, len(f.fields)),
	}
	if v.SubmitDisabled {
		v.SubmitLabel = labelChecking
	}
	if f.display != nil {
		d := *f.display
		if d.Eligible != nil {
			e := *d.Eligible
			d.Eligible = &e
		}
		v.Display = &d
	}
	for k, val := range f.fields {
		v.Fields[k] = val
	}
	if f.lastErr != nil {
		e := *f.lastErr
		v.Error = &e
	}
	return v
}

// idleSince reports when the form was last used, and whether a request is in flight.
func (f *Form) idleSince() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched, f.phase != PhaseIdle
}
