// Package formsheet is the top-level entry point for embedding the
// multi-step form flow: the built-in section catalogue, the draft
// controller and the submission flattener.
package formsheet

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/draft"
	"github.com/goliatone/go-formsheet/pkg/prompt"
	"github.com/goliatone/go-formsheet/pkg/section"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

// Row aliases submission.Row, one flattened submission.
type Row = submission.Row

// Target aliases submission.Target.
type Target = submission.Target

// Catalogue aliases section.Catalogue.
type Catalogue = section.Catalogue

// Session aliases draft.Session.
type Session = draft.Session

// DefaultCatalogue returns the built-in investor profile sections.
func DefaultCatalogue() (*Catalogue, error) {
	return section.Default()
}

// NewController builds a draft controller over the default catalogue.
func NewController(store draft.Store, submitter draft.Submitter, options ...draft.Option) (*draft.Controller, error) {
	catalogue, err := section.Default()
	if err != nil {
		return nil, err
	}
	return draft.NewController(catalogue, store, submitter, options...)
}

// FlattenJSON parses an accumulated answers document and returns the row
// that would be appended for it.
func FlattenJSON(raw []byte) (Row, error) {
	value, err := answers.Parse(raw)
	if err != nil {
		return nil, submission.Wrap(submission.CodeMalformedInput, "parse answers", err)
	}
	return submission.BuildRow(value)
}

// Submit flattens raw and appends it through appender in one call. It is the
// simplest entry point for callers that already hold a complete document.
func Submit(ctx context.Context, appender submission.Appender, target Target, raw []byte, options ...submission.PipelineOption) error {
	pipeline, err := submission.NewPipeline(appender, target, options...)
	if err != nil {
		return err
	}
	return pipeline.Submit(ctx, raw)
}

// EmbeddedScreens exposes the built-in terminal screen templates so callers
// can reuse or override them without importing the prompt package.
func EmbeddedScreens() (fs.FS, error) {
	return prompt.ScreensFS()
}
