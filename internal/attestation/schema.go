package attestation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	apperrors "revattest/internal/errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaVersion is the document version this package builds.
const SchemaVersion = "1.0.0"

const schemaURL = "https://revattest.local/schemas/attestation-v1.schema.json"

//go:embed attestation-v1.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the raw JSON Schema for version 1 documents.
func Schema() []byte {
	return schemaJSON
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("attestation schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("attestation schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks doc against the version 1 schema. doc may be an
// *models.AttestationV1 or any value that marshals to the same JSON.
func Validate(doc interface{}) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	generic, err := toGeneric(doc)
	if err != nil {
		return err
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSchema, err)
	}
	return nil
}

// toGeneric round-trips v through JSON into maps, slices, and json.Number.
func toGeneric(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrNonFinite, err)
		}
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return generic, nil
}
