// internal/generation/errors.go
package generation

import (
	"context"
	stderrors "errors"

	apperrors "loan-checker/internal/common/errors"
	"loan-checker/internal/common/llm"
)

// AsStandardError maps a generation failure onto the service error taxonomy.
func AsStandardError(err error) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &stdErr):
		return stdErr
	case stderrors.Is(err, llm.ErrModelTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return apperrors.NewModelTimeoutError(err)
	case stderrors.Is(err, llm.ErrMalformedOutput):
		return apperrors.NewMalformedModelOutputError(err.Error())
	case stderrors.Is(err, llm.ErrModelRequestFailed):
		return apperrors.NewModelRequestFailedError(err)
	default:
		return apperrors.NewInternalError(err)
	}
}
