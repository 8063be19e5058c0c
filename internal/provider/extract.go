package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	excerptLength = 200
	rawLength     = 500
)

// Request parameters the provider echoes back as list-valued error fields,
// e.g. {"api_key": ["Invalid or inactive API keys."]}.
var offendingParams = []string{
	"api_key",
	"api_key_public",
	"api_key_secret",
	"recipients",
	"sender_id",
}

type errorExtractor func(doc map[string]json.RawMessage, raw []byte) string

// errorExtractors are tried in order; the first non-empty result wins.
var errorExtractors = []errorExtractor{
	fieldExtractor("detail"),
	paramListExtractor(offendingParams),
	fieldExtractor("message"),
	fieldExtractor("error"),
	firstKeyExtractor,
}

func fieldExtractor(name string) errorExtractor {
	return func(doc map[string]json.RawMessage, _ []byte) string {
		v, ok := doc[name]
		if !ok {
			return ""
		}
		return jsonText(v)
	}
}

func paramListExtractor(params []string) errorExtractor {
	return func(doc map[string]json.RawMessage, _ []byte) string {
		for _, p := range params {
			v, ok := doc[p]
			if !ok {
				continue
			}
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err != nil || len(list) == 0 {
				continue
			}
			if msg := jsonText(list[0]); msg != "" {
				return msg
			}
		}
		return ""
	}
}

// firstKeyExtractor returns the value of the first key in document order,
// which a map lookup cannot recover.
func firstKeyExtractor(_ map[string]json.RawMessage, raw []byte) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	if _, err := dec.Token(); err != nil {
		return ""
	}
	var v json.RawMessage
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	return jsonText(v)
}

type responseError struct {
	message string
	// structured is false when the body was not JSON at all.
	structured bool
}

// extractError derives a human readable message from an error response body.
func extractError(statusCode int, raw []byte) responseError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return responseError{message: fmt.Sprintf("API returned status %d", statusCode), structured: true}
	}
	if !json.Valid(trimmed) {
		return responseError{
			message: fmt.Sprintf("API returned non-JSON response (Status %d). Response: %s", statusCode, truncate(string(trimmed), excerptLength)),
		}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		if msg := jsonText(trimmed); msg != "" {
			return responseError{message: msg, structured: true}
		}
		return responseError{message: fmt.Sprintf("API returned status %d", statusCode), structured: true}
	}

	for _, extract := range errorExtractors {
		if msg := extract(doc, trimmed); msg != "" {
			return responseError{message: msg, structured: true}
		}
	}
	return responseError{message: fmt.Sprintf("API returned status %d", statusCode), structured: true}
}

// jsonText renders a JSON value as plain text. Lists yield their first
// element; null and empty values yield "".
func jsonText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return valueText(v)
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		if len(t) == 0 {
			return ""
		}
		return valueText(t[0])
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// jsonFloat reads numbers that may be encoded as JSON numbers or strings.
// Carriers report prices as negative amounts; the magnitude is returned.
func jsonFloat(raw json.RawMessage) float64 {
	s := jsonText(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimPrefix(s, "-"), 64)
	if err != nil {
		return 0
	}
	return f
}

// truncate cuts s to n runes. Invalid UTF-8 from provider bodies is
// replaced so the text can be stored in a TEXT column.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
