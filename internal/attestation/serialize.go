package attestation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "revattest/internal/errors"

	"github.com/gowebpki/jcs"
)

const indent = "  "

// Serialize returns the canonical text of doc: object keys sorted at every
// level, arrays in order, two-space indentation, ": " after keys, no HTML
// escaping, and no trailing newline. Only integer numbers are allowed;
// anything else fails with errors.ErrNonFinite.
func Serialize(doc interface{}) (string, error) {
	generic, err := toGeneric(doc)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := writeValue(&buf, generic, 0); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SerializeCompact returns the RFC 8785 (JCS) form of doc, for verifiers
// that prefer compact bytes. It applies the same number check as Serialize.
func SerializeCompact(doc interface{}) ([]byte, error) {
	generic, err := toGeneric(doc)
	if err != nil {
		return nil, err
	}
	if err := checkNumbers(generic); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jcs transform: %w", err)
	}
	return out, nil
}

func writeValue(buf *bytes.Buffer, v interface{}, depth int) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		if err := checkNumber(t); err != nil {
			return err
		}
		buf.WriteString(t.String())
	case string:
		writeString(buf, t)
	case []interface{}:
		if len(t) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, elem := range t {
			buf.WriteString(strings.Repeat(indent, depth+1))
			if err := writeValue(buf, elem, depth+1); err != nil {
				return err
			}
			if i < len(t)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Repeat(indent, depth))
		buf.WriteByte(']')
	case map[string]interface{}:
		if len(t) == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(strings.Repeat(indent, depth+1))
			writeString(buf, k)
			buf.WriteString(": ")
			if err := writeValue(buf, t[k], depth+1); err != nil {
				return err
			}
			if i < len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Repeat(indent, depth))
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type %T in document", v)
	}
	return nil
}

// writeString writes s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
}

// checkNumber rejects fractional and exponent forms. Documents carry money
// and rates as strings, so a non-integer number means a float leaked in.
func checkNumber(n json.Number) error {
	if strings.ContainsAny(n.String(), ".eE") {
		return apperrors.Wrap(apperrors.ErrNonFinite, "number %s", n)
	}
	return nil
}

func checkNumbers(v interface{}) error {
	switch t := v.(type) {
	case json.Number:
		return checkNumber(t)
	case []interface{}:
		for _, elem := range t {
			if err := checkNumbers(elem); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		for _, elem := range t {
			if err := checkNumbers(elem); err != nil {
				return err
			}
		}
	}
	return nil
}
