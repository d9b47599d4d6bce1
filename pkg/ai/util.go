package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("empty model response")

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// StripCodeFence returns the interior of the first fenced code block in s,
// or s itself when there is none.
func StripCodeFence(s string) string {
	m := codeFenceRe.FindStringSubmatch(s)
	if len(m) < 2 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(m[1])
}

// GenerateSchema creates a JSON Schema from the given Go type.
// It uses reflection to inspect the type structure and generates
// a schema suitable for use with AI structured output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible attempts to unmarshal JSON into the target with multiple fallback strategies.
// It first tries standard JSON unmarshaling, then handles double-encoded JSON strings,
// and finally attempts to repair malformed JSON before parsing.
//
// Example:
//
//	var result MyStruct
//	UnmarshalFlexible(`{"name": "test"}`, &result)           // standard JSON
//	UnmarshalFlexible(`"{\"name\": \"test\"}"`, &result)     // double-encoded
//	UnmarshalFlexible(`{name: "test"}`, &result)             // malformed (repaired)
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		input, repaired,
	)
}

// DecodeJSON is the single decoding path for model responses. A fenced
// ```json block is preferred over the surrounding text.
func DecodeJSON(raw string, out any) error {
	body := StripCodeFence(raw)
	if body == "" {
		return ErrEmptyResponse
	}
	return UnmarshalFlexible(body, out)
}

// ParseJSONOr decodes a model response into T. When nothing can be decoded
// the fallback is returned together with the cause, so call sites can log
// it and carry on with the default.
func ParseJSONOr[T any](raw string, fallback T) (T, error) {
	var out T
	if err := DecodeJSON(raw, &out); err != nil {
		return fallback, err
	}
	return out, nil
}
