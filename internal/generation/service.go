// internal/generation/service.go
package generation

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "loan-checker/internal/common/errors"
	"loan-checker/internal/common/llm"
	"loan-checker/internal/common/logger"
	"loan-checker/internal/common/metrics"
	"loan-checker/internal/common/observability"
	"loan-checker/internal/common/stream"
	"loan-checker/internal/common/validation"
	"loan-checker/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Service turns submitted loan applications into streamed risk assessments.
type Service struct {
	config   *Config
	provider llm.Provider
	logger   logger.Logger
	obs      *observability.Observability
}

func NewService(cfg *Config, provider llm.Provider, log logger.Logger, obs *observability.Observability) *Service {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Service{
		config:   cfg,
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "generation"}),
		obs:      obs,
	}
}

// Generate starts an assessment of input and returns its handle without waiting
// for the model. Partial objects, then exactly one Done or Err event, arrive on
// the handle. The stream is bounded by ctx and the configured maximum duration.
func (s *Service) Generate(ctx context.Context, input map[string]interface{}) (*stream.Handle[models.PartialObject], error) {
	requestID := uuid.NewString()
	log := s.logger.WithFields(map[string]interface{}{"requestId": requestID})

	if err := s.checkApplication(input, log); err != nil {
		return nil, err
	}

	prompt, err := BuildPrompt(input)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}

	handle := stream.NewHandle[models.PartialObject](s.config.Buffer)
	metrics.AssessmentsStarted.Inc()
	log.Info("assessment started", map[string]interface{}{"fields": len(input)})

	go s.run(ctx, requestID, prompt, handle, log)
	return handle, nil
}

// checkApplication validates input. Violations reject the request only when
// enforcement is on; otherwise they are logged and the raw input is still used.
func (s *Service) checkApplication(input map[string]interface{}, log logger.Logger) error {
	_, result := validation.ValidateApplication(input)
	if result.Valid {
		return nil
	}

	for _, e := range result.Errors {
		metrics.ApplicationViolations.WithLabelValues(e.Code).Inc()
	}

	if s.config.EnforceRequest {
		log.Info("loan application rejected", map[string]interface{}{"violations": result.GetErrorMessages()})
		return apperrors.NewInvalidApplicationError(result.GetErrorMessages())
	}

	log.Warn("loan application failed validation, forwarding as submitted", map[string]interface{}{
		"violations": result.GetErrorMessages(),
	})
	return nil
}

func (s *Service) run(ctx context.Context, requestID, prompt string, handle *stream.Handle[models.PartialObject], log logger.Logger) {
	start := time.Now()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(ctx, s.config.maxDuration())
	defer cancel()

	ctx, span := s.obs.StartSpan(ctx, "generation.stream",
		attribute.String("request.id", requestID),
		attribute.String("model", s.config.Model),
	)
	defer span.End()

	partials := 0
	final, err := llm.StreamObject(ctx, s.provider, llm.ObjectRequest{
		Model:  s.config.Model,
		System: systemInstruction,
		Prompt: prompt,
		Schema: validation.RiskResponseSchema(),
	}, func(v interface{}) error {
		if err := handle.Update(ctx, models.PartialFromMap(v)); err != nil {
			return err
		}
		partials++
		metrics.PartialObjects.Inc()
		return nil
	})

	var outcome *models.RiskEnvelope
	if err == nil {
		outcome, err = decodeOutcome(final)
	}

	duration := time.Since(start)
	span.SetAttributes(attribute.Int("partials", partials))

	if err != nil {
		if stderrors.Is(err, stream.ErrClosed) || stderrors.Is(err, context.Canceled) {
			log.Info("assessment abandoned by consumer", map[string]interface{}{
				"partials":   partials,
				"durationMs": duration.Milliseconds(),
			})
			span.SetAttributes(attribute.Bool("abandoned", true))
			metrics.AssessmentDuration.WithLabelValues("abandoned").Observe(duration.Seconds())
			s.obs.RecordStream(ctx, duration, "abandoned", partials)
			handle.Fail(err)
			return
		}

		stdErr := AsStandardError(err)
		log.Error("assessment failed", map[string]interface{}{
			"error":      err,
			"errorCode":  string(stdErr.Code),
			"partials":   partials,
			"durationMs": duration.Milliseconds(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.AssessmentsFailed.WithLabelValues(string(stdErr.Code)).Inc()
		metrics.AssessmentDuration.WithLabelValues("failed").Observe(duration.Seconds())
		s.obs.RecordStream(ctx, duration, "failed", partials)
		handle.Fail(err)
		return
	}

	risk := string(outcome.Response.Risk)
	log.Info("assessment completed", map[string]interface{}{
		"risk":       risk,
		"eligible":   outcome.Response.Eligible,
		"partials":   partials,
		"durationMs": duration.Milliseconds(),
	})
	span.SetAttributes(
		attribute.String("assessment.risk", risk),
		attribute.Bool("assessment.eligible", outcome.Response.Eligible),
	)
	span.SetStatus(codes.Ok, "")
	metrics.AssessmentsCompleted.Inc()
	metrics.AssessmentOutcomes.WithLabelValues(risk, strconv.FormatBool(outcome.Response.Eligible)).Inc()
	metrics.AssessmentDuration.WithLabelValues("completed").Observe(duration.Seconds())
	s.obs.RecordStream(ctx, duration, "completed", partials)
	handle.Done()
}

// decodeOutcome turns the validated final object into a RiskEnvelope.
func decodeOutcome(final interface{}) (*models.RiskEnvelope, error) {
	env, result := validation.ValidateAssessment(final)
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", llm.ErrMalformedOutput, strings.Join(result.GetErrorMessages(), "; "))
	}
	return env, nil
}
