package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formsheet/pkg/submission"
)

//go:embed openapi.yaml
var contractYAML []byte

const (
	submitPath      = "/api/submit"
	submitMediaType = "application/json"
)

// Contract is the OpenAPI description of the endpoint, also used to check
// submission bodies before they reach the pipeline.
type Contract struct {
	doc    *openapi3.T
	schema *openapi3.Schema
	json   []byte
}

// LoadContract parses and validates the embedded OpenAPI document.
func LoadContract(ctx context.Context) (*Contract, error) {
	return parseContract(ctx, contractYAML)
}

func parseContract(ctx context.Context, raw []byte) (*Contract, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("server: load contract: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("server: validate contract: %w", err)
	}

	item := doc.Paths.Find(submitPath)
	if item == nil || item.Post == nil || item.Post.RequestBody == nil || item.Post.RequestBody.Value == nil {
		return nil, errors.New("server: contract does not describe POST " + submitPath)
	}
	media := item.Post.RequestBody.Value.Content.Get(submitMediaType)
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil, errors.New("server: contract has no JSON request schema")
	}

	encoded, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("server: encode contract: %w", err)
	}
	return &Contract{doc: doc, schema: media.Schema.Value, json: encoded}, nil
}

// JSON returns the document in JSON form.
func (c *Contract) JSON() []byte { return c.json }

// ValidateSubmission checks body against the request schema. Failures are
// MalformedInput submission errors.
func (c *Contract) ValidateSubmission(body []byte) error {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return submission.Wrap(submission.CodeMalformedInput, "request body is not valid JSON", err)
	}
	if err := c.schema.VisitJSON(decoded); err != nil {
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			return submission.NewError(submission.CodeMalformedInput, "request body "+schemaErr.Reason)
		}
		return submission.Wrap(submission.CodeMalformedInput, "request body does not match the contract", err)
	}
	return nil
}
