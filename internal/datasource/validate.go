package datasource

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
)

// ValidateFields checks each field carrying an optional jsonSchema
// attribute against the supplied value. Fields with no jsonSchema, or
// absent from values, are skipped.
func (b *Base) ValidateFields(values map[string]any) error {
	if values == nil {
		return nil
	}
	fieldErrors := make(map[string]string)
	for _, f := range b.Desc.Fields {
		if f.JSONSchema == "" {
			continue
		}
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		schemaLoader := gojsonschema.NewStringLoader(f.JSONSchema)
		docLoader := gojsonschema.NewGoLoader(v)
		result, err := gojsonschema.Validate(schemaLoader, docLoader)
		if err != nil {
			fieldErrors[f.Name] = err.Error()
			continue
		}
		if !result.Valid() {
			fieldErrors[f.Name] = fmt.Sprintf("%v", result.Errors())
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return &fieldValidationError{fields: fieldErrors}
}

// fieldValidationError carries per-field messages so the caller can
// surface them as the DataSource Response's errors map.
type fieldValidationError struct {
	fields map[string]string
}

func (e *fieldValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.fields)
}

func (e *fieldValidationError) Fields() map[string]string {
	return e.fields
}

// fieldErrorsOf extracts a *fieldValidationError's per-field map, for
// callers that want to populate Response.Errors directly.
func fieldErrorsOf(err error) (map[string]string, bool) {
	fe, ok := err.(*fieldValidationError)
	if !ok {
		return nil, false
	}
	return fe.fields, true
}

// validationResponse converts a ValidateFields failure into a Response
// carrying status ValidationFailed and the per-field messages, rather
// than aborting the transaction outright — the caller's operation
// still gets a well-formed DS response to show the user.
func validationResponse(err error) *Response {
	fields, _ := fieldErrorsOf(err)
	return &Response{
		Status: apperrors.ValidationFailed.Status(),
		Errors: fields,
	}
}
