package notes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/aarangop/note-rags-web-ui/internal/apperror"
)

// metadataSchemaURL is the resource name the schema is registered under.
const metadataSchemaURL = "notes-metadata.json"

// metadataSchema constrains the free-form metadata object attached to a note.
const metadataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"maxProperties": 64,
	"propertyNames": {"minLength": 1, "maxLength": 64},
	"additionalProperties": {
		"type": ["string", "number", "boolean", "null", "array", "object"]
	}
}`

// MetadataValidator checks note metadata against the metadata schema.
type MetadataValidator struct {
	schema *jsonschema.Schema
}

// NewMetadataValidator compiles the metadata schema.
func NewMetadataValidator() (*MetadataValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(metadataSchema))
	if err != nil {
		return nil, fmt.Errorf("parsing metadata schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(metadataSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding metadata schema: %w", err)
	}
	schema, err := c.Compile(metadataSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling metadata schema: %w", err)
	}
	return &MetadataValidator{schema: schema}, nil
}

// Validate returns a 422 AppError when metadata violates the schema. A nil
// map is valid.
func (v *MetadataValidator) Validate(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}
	if err := v.schema.Validate(metadata); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return apperror.NewInternal(fmt.Errorf("validating metadata: %w", err))
		}
		return apperror.NewValidation(metadataRules)
	}
	return nil
}

// metadataRules is the client-facing summary of metadataSchema.
const metadataRules = "metadata must be an object with at most 64 properties named with 1 to 64 characters"
