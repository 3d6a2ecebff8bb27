package bmson

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// SchemaError reports a bmson document that does not have the expected
// shape. Field is a dotted path into the document, empty when the document
// is not JSON at all.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "bmson: " + e.Reason
	}
	return fmt.Sprintf("bmson: %s: %s", e.Field, e.Reason)
}

// required lists paths that must be present, with the JSON type they need.
var required = []struct {
	path string
	typ  gjson.Type
	obj  bool
}{
	{path: "info", typ: gjson.JSON, obj: true},
	{path: "info.init_bpm", typ: gjson.Number},
}

// validate checks the fields decode cannot work without before the document
// is unmarshalled.
func validate(data []byte) error {
	if !gjson.ValidBytes(data) {
		return &SchemaError{Reason: "document is not valid JSON"}
	}
	if !gjson.ParseBytes(data).IsObject() {
		return &SchemaError{Reason: "document root is not an object"}
	}
	for _, r := range required {
		res := gjson.GetBytes(data, r.path)
		if !res.Exists() {
			return &SchemaError{Field: r.path, Reason: "missing required field"}
		}
		if res.Type != r.typ || (r.obj && !res.IsObject()) {
			return &SchemaError{Field: r.path, Reason: "unexpected type " + res.Type.String()}
		}
	}
	return nil
}

// schemaErr converts encoding/json failures into SchemaErrors.
func schemaErr(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &SchemaError{
			Field:  typeErr.Field,
			Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &SchemaError{Reason: fmt.Sprintf("syntax error at offset %d", syntaxErr.Offset)}
	}
	return errors.Wrap(err, "bmson")
}
