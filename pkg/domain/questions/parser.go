package questions

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const recordSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["question", "explanation"],
    "properties": {
      "question": { "type": "string" },
      "explanation": { "type": "string" }
    }
  }
}`

var recordSchemaLoader = gojsonschema.NewStringLoader(recordSchemaJSON)

// Parse extracts records from a raw model reply. The reply is normalized
// first; decode failures yield *MalformedResponseError and shape failures
// yield *SchemaError. Record order follows the reply.
func Parse(raw string) ([]Record, error) {
	text := Normalize(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error(), Text: text}
	}

	result, err := gojsonschema.Validate(recordSchemaLoader, gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, &MalformedResponseError{Reason: err.Error(), Text: text}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &SchemaError{Issues: issues}
	}

	records := []Record{}
	if err := json.Unmarshal([]byte(text), &records); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error(), Text: text}
	}
	return records, nil
}

// Normalize strips every surrounding markdown code fence and removes every comma
// that directly precedes a closing ']' or '}' (ignoring whitespace). Commas
// inside JSON strings are left alone. Normalize is idempotent.
func Normalize(raw string) string {
	return removeTrailingCommas(stripCodeFence(strings.TrimSpace(raw)))
}

func stripCodeFence(s string) string {
	for {
		stripped := stripOneFence(s)
		if stripped == s {
			return s
		}
		s = stripped
	}
}

func stripOneFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	body := s[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func removeTrailingCommas(s string) string {
	var (
		out      = make([]byte, 0, len(s))
		inString bool
		escaped  bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}

		switch c {
		case '"':
			inString = true
		case ']', '}':
			out = dropDanglingCommas(out)
		}
		out = append(out, c)
	}
	return string(out)
}

// dropDanglingCommas removes commas that end out, looking past whitespace.
// A comma inside a string is always followed by the closing quote, so the
// last non-space byte can only be a comma that sits outside any string.
func dropDanglingCommas(out []byte) []byte {
	for {
		j := len(out) - 1
		for j >= 0 && isSpace(out[j]) {
			j--
		}
		if j < 0 || out[j] != ',' {
			return out
		}
		out = append(out[:j], out[j+1:]...)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
