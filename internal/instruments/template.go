package instruments

import (
	"context"
	"io"

	"github.com/databill86/scout-apm-go/internal/tracked"
)

// OpRender is the span operation for template rendering.
const OpRender = "Template/Render"

// NameTag is the span tag carrying the template name.
const NameTag = "name"

// Template is the executable surface shared by text/template and
// html/template.
type Template interface {
	Name() string
	Execute(w io.Writer, data any) error
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// WrapTemplate instruments t: every render runs under a Template/Render
// span tagged with the template's name.
func WrapTemplate(t Template) *TrackedTemplate {
	return &TrackedTemplate{wrapped: t}
}

// TrackedTemplate renders through the wrapped template, timing each call
// against the tracked request carried in ctx. Untracked contexts render
// normally without a span.
type TrackedTemplate struct {
	wrapped Template
}

func (t *TrackedTemplate) Execute(ctx context.Context, w io.Writer, data any) error {
	finish := observeRender(ctx, t.wrapped.Name())
	defer finish()
	return t.wrapped.Execute(w, data)
}

func (t *TrackedTemplate) ExecuteTemplate(ctx context.Context, w io.Writer, name string, data any) error {
	finish := observeRender(ctx, name)
	defer finish()
	return t.wrapped.ExecuteTemplate(w, name, data)
}

// observeRender opens a render span when ctx carries a tracked request.
func observeRender(ctx context.Context, name string) func() {
	r, ok := tracked.FromContext(ctx)
	if !ok {
		return func() {}
	}
	span := r.StartSpan(OpRender)
	span.Tag(NameTag, name)

	return func() {
		if r.CurrentSpan() == span {
			r.StopSpan()
		}
	}
}
