// internal/server/handlers.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "loan-checker/internal/common/errors"
	"loan-checker/internal/generation"
	"loan-checker/internal/presentation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const maxFormMemory = 1 << 20

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.cfg.App.Name,
		"version": s.cfg.App.Version,
	})
}

func (s *Server) ready(c *gin.Context) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "forms": s.forms.Len()})
}

func (s *Server) index(c *gin.Context) {
	form := s.forms.Create()
	c.HTML(http.StatusOK, indexTemplate, newPageData(form.View()))
}

func (s *Server) createForm(c *gin.Context) {
	form := s.forms.Create()
	c.JSON(http.StatusCreated, form.View())
}

func (s *Server) getForm(c *gin.Context) {
	form, ok := s.lookupForm(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, form.View())
}

type dismissRequest struct {
	Action string `json:"action" binding:"required"`
}

func (s *Server) dismissForm(c *gin.Context) {
	form, ok := s.lookupForm(c)
	if !ok {
		return
	}

	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errors.Respond(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	if err := form.Dismiss(req.Action); err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, form.View())
}

// submitForm starts an assessment for the submitted fields and streams the
// form's view as it changes: "view" events, then "done" or "error".
func (s *Server) submitForm(c *gin.Context) {
	form, ok := s.lookupForm(c)
	if !ok {
		return
	}

	input, err := readFields(c)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	ctx := c.Request.Context()
	seq := form.Submit(displayFields(input))

	handle, err := s.generator.Generate(ctx, input)
	if err != nil {
		form.Fail(seq, err)
		s.errors.Respond(c, err)
		return
	}

	startEventStream(c)
	writeEvent(c, "view", form.View())

	err = presentation.Consume(ctx, form, seq, handle, func(v presentation.View) error {
		writeEvent(c, "view", v)
		return ctx.Err()
	})
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("client disconnected during assessment", map[string]interface{}{
				"formId":   form.ID(),
				"sequence": seq,
			})
			return
		}
		writeEvent(c, "error", generation.AsStandardError(err))
		return
	}
	writeEvent(c, "done", form.View())
}

// generate streams the raw partial objects of one assessment: "partial"
// events, then "done" or "error".
func (s *Server) generate(c *gin.Context) {
	var input map[string]interface{}
	if err := c.ShouldBindJSON(&input); err != nil {
		s.errors.Respond(c, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	ctx := c.Request.Context()
	handle, err := s.generator.Generate(ctx, input)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	startEventStream(c)
	for {
		ev := handle.Next(ctx)
		switch {
		case ev.Err != nil:
			handle.Cancel()
			if ctx.Err() != nil {
				return
			}
			writeEvent(c, "error", generation.AsStandardError(ev.Err))
			return
		case ev.Done:
			writeEvent(c, "done", gin.H{})
			return
		default:
			writeEvent(c, "partial", ev.Value)
		}
	}
}

func (s *Server) lookupForm(c *gin.Context) (*presentation.Form, bool) {
	id := c.Param("id")
	form, ok := s.forms.Get(id)
	if !ok {
		s.errors.Respond(c, apperrors.NewFormNotFoundError(id))
		return nil, false
	}
	return form, true
}

// readFields accepts a JSON object or a url-encoded/multipart form body.
func readFields(c *gin.Context) (map[string]interface{}, error) {
	switch c.ContentType() {
	case binding.MIMEJSON:
		var input map[string]interface{}
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
		if input == nil {
			input = map[string]interface{}{}
		}
		return input, nil
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
	}
	return generation.FieldsFromForm(c.Request.PostForm), nil
}

func displayFields(input map[string]interface{}) map[string]string {
	out := make(map[string]string, len(input))
	for k, v := range input {
		if str, ok := v.(string); ok {
			out[k] = str
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func startEventStream(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

func writeEvent(c *gin.Context, name string, data interface{}) {
	c.SSEvent(name, data)
	c.Writer.Flush()
}
