// internal/presentation/consume.go
package presentation

import (
	"context"

	"loan-checker/internal/common/stream"
	"loan-checker/internal/models"
)

// Consume drains handle into form as request seq, calling onView with a fresh
// snapshot after every change. It returns the stream error, the error of
// onView, or ctx.Err() if ctx ends first; in each case the producer is
// released and the request is marked failed on the form.
func Consume(ctx context.Context, form *Form, seq uint64, handle *stream.Handle[models.PartialObject], onView func(View) error) error {
	fail := func(err error) error {
		handle.Cancel()
		if form.Fail(seq, err) {
			// best effort; the consumer may already be gone
			_ = onView(form.View())
		}
		return err
	}

	for {
		ev := handle.Next(ctx)
		switch {
		case ev.Err != nil:
			return fail(ev.Err)
		case ev.Done:
			if form.Complete(seq) {
				if err := onView(form.View()); err != nil {
					return err
				}
			}
			return nil
		default:
			if !form.Apply(seq, ev.Value) {
				continue
			}
			if err := onView(form.View()); err != nil {
				return fail(err)
			}
		}
	}
}
