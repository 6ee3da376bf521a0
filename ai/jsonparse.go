package ai

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a completion contains nothing that decodes as a
// JSON object.
var ErrNoJSON = errors.New("no JSON object in completion")

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
)

// ParseJSONObject decodes the JSON object embedded in a model completion.
// Leading and trailing prose and code fences are dropped, raw control
// characters inside strings are escaped, and as a last attempt smart quotes
// are replaced by ASCII quotes. out is left zeroed when every attempt fails,
// so a partial decode never leaks to the caller.
func ParseJSONObject(raw string, out any) error {
	body := outerObject(raw)
	if body == "" {
		return ErrNoJSON
	}
	candidates := []string{
		body,
		escapeControlInStrings(body),
		escapeControlInStrings(smartQuotes.Replace(body)),
	}
	var lastErr error
	for _, c := range candidates {
		reset(out)
		if err := json.Unmarshal([]byte(c), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	reset(out)
	return lastErr
}

func reset(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}

var (
	flatObjectRe = regexp.MustCompile(`\{[^{}]*\}`)
	fieldReCache = map[string]*regexp.Regexp{}
)

// ExtractFields is the fallback for completions that are not valid JSON. It
// scans every flat {...} fragment and pulls out the named string fields.
// Fragments with none of the fields are skipped.
func ExtractFields(raw string, fields ...string) []map[string]string {
	var out []map[string]string
	for _, frag := range Fragments(raw) {
		obj := map[string]string{}
		for _, f := range fields {
			if m := fieldRe(f).FindStringSubmatch(frag); m != nil {
				obj[f] = unescapeJSONString(m[1])
			}
		}
		if len(obj) > 0 {
			out = append(out, obj)
		}
	}
	return out
}

// Fragments returns every flat {...} fragment of a completion, with smart
// quotes replaced.
func Fragments(raw string) []string {
	return flatObjectRe.FindAllString(smartQuotes.Replace(raw), -1)
}

func fieldRe(name string) *regexp.Regexp {
	if re, ok := fieldReCache[name]; ok {
		return re
	}
	return regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
}

func init() {
	for _, f := range []string{"category", "title", "content", "body", "url", "image", "term", "definition", "question", "correct"} {
		fieldReCache[f] = regexp.MustCompile(`"` + regexp.QuoteMeta(f) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	}
}

func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

// outerObject returns the text between the first '{' and the last '}'.
func outerObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// escapeControlInStrings escapes raw control characters that appear inside
// JSON string literals and drops the ones outside them.
func escapeControlInStrings(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			sb.WriteRune(r)
			continue
		case inString && r == '\\':
			escaped = true
			sb.WriteRune(r)
			continue
		case r == '"':
			inString = !inString
			sb.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			if !inString {
				if r == '\n' || r == '\r' || r == '\t' {
					sb.WriteRune(r)
				}
				continue
			}
			switch r {
			case '\n':
				sb.WriteString(`\n`)
			case '\r':
				sb.WriteString(`\r`)
			case '\t':
				sb.WriteString(`\t`)
			default:
				sb.WriteRune(' ')
			}
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
