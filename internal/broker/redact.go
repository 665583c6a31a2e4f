package broker

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sentinel-ops/lookup-broker/internal/providers"
)

const redacted = "[REDACTED]"

// sanitize strips the credential secret from everything a caller or the
// audit log can see.
func sanitize(r *providers.Result, secret string) *providers.Result {
	if r == nil {
		return &providers.Result{Success: false, ResultSummary: "API call failed: empty provider result"}
	}
	if secret == "" {
		return r
	}
	out := *r
	out.ResultSummary = redactString(out.ResultSummary, secret)
	if len(out.Data) > 0 {
		out.Data = redactJSON(out.Data, secret)
	}
	return &out
}

// redactString replaces the secret as written and in its JSON-escaped forms
func redactString(s, secret string) string {
	s = strings.ReplaceAll(s, secret, redacted)
	for _, escaped := range jsonEscaped(secret) {
		if escaped != secret {
			s = strings.ReplaceAll(s, escaped, redacted)
		}
	}
	return s
}

// redactJSON matches the secret against decoded string values and keys, so
// escape sequences in the payload cannot hide it. Payloads that are not
// JSON fall back to a byte-level replace.
func redactJSON(data json.RawMessage, secret string) json.RawMessage {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return json.RawMessage(redactString(string(data), secret))
	}

	cleaned, changed := redactValue(v, secret)
	if !changed {
		return data
	}
	out, err := json.Marshal(cleaned)
	if err != nil {
		return json.RawMessage(redactString(string(data), secret))
	}
	return out
}

func redactValue(v interface{}, secret string) (interface{}, bool) {
	switch t := v.(type) {
	case string:
		if strings.Contains(t, secret) {
			return strings.ReplaceAll(t, secret, redacted), true
		}
		return t, false
	case []interface{}:
		changed := false
		for i, e := range t {
			var c bool
			t[i], c = redactValue(e, secret)
			changed = changed || c
		}
		return t, changed
	case map[string]interface{}:
		changed := false
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			if strings.Contains(k, secret) {
				k = strings.ReplaceAll(k, secret, redacted)
				changed = true
			}
			var c bool
			out[k], c = redactValue(e, secret)
			changed = changed || c
		}
		return out, changed
	default:
		return v, false
	}
}

// jsonEscaped returns the secret as a JSON encoder writes it, with and
// without HTML escaping.
func jsonEscaped(s string) []string {
	forms := make([]string, 0, 2)
	for _, escapeHTML := range []bool{true, false} {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(escapeHTML)
		if err := enc.Encode(s); err != nil {
			continue
		}
		b := bytes.TrimSpace(buf.Bytes())
		if len(b) >= 2 {
			forms = append(forms, string(b[1:len(b)-1]))
		}
	}
	return forms
}
