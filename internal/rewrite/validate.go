package rewrite

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/p-shah256/resume-optimizer/internal/cleaner"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// LineGuard rejects rewritten values whose line count differs from the
// original value's.
type LineGuard bool

const (
	LineGuardOff LineGuard = false
	LineGuardOn  LineGuard = true
)

// Fallback reasons.
const (
	ReasonMissing   = "missing from response"
	ReasonNotText   = "value is not text"
	ReasonEmpty     = "rewritten value is empty"
	ReasonLineCount = "line count changed"
)

var clean = cleaner.NewCleaner()

// Validate parses a model reply against the original map. The result has
// exactly the original keys in the original order; any key the reply does not
// answer acceptably keeps its original value and is reported as a fallback.
// Extra keys in the reply are ignored.
func Validate(original *types.SectionMap, raw string, guard LineGuard) (*types.SectionMap, []types.Fallback, error) {
	const op = "rewrite.validate"

	body := clean.CleanLlmResponse(raw)
	if body == "" {
		return nil, nil, errors.E(errors.MalformedResponse, op, nil).WithDetail("empty response")
	}
	if !gjson.Valid(body) {
		return nil, nil, errors.E(errors.MalformedResponse, op, nil).WithDetail("response is not valid JSON")
	}
	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		return nil, nil, errors.E(errors.MalformedResponse, op, nil).
			WithDetail(fmt.Sprintf("expected a JSON object, got %s", describe(parsed)))
	}

	// iterate instead of using Get so keys containing path characters work
	values := make(map[string]gjson.Result)
	parsed.ForEach(func(k, v gjson.Result) bool {
		values[k.String()] = v
		return true
	})

	out := types.NewSectionMap()
	var fallbacks []types.Fallback
	for _, key := range original.Keys() {
		orig, _ := original.Get(key)

		v, ok := values[key]
		if !ok {
			out.Set(key, orig)
			fallbacks = append(fallbacks, types.Fallback{Key: key, Reason: ReasonMissing})
			continue
		}

		text, ok := asText(v)
		if !ok {
			out.Set(key, orig)
			fallbacks = append(fallbacks, types.Fallback{Key: key, Reason: ReasonNotText})
			continue
		}

		if text == "" && orig != "" {
			out.Set(key, orig)
			fallbacks = append(fallbacks, types.Fallback{Key: key, Reason: ReasonEmpty})
			continue
		}

		if guard && LineCount(text) != LineCount(orig) {
			out.Set(key, orig)
			fallbacks = append(fallbacks, types.Fallback{Key: key, Reason: ReasonLineCount})
			continue
		}

		out.Set(key, text)
	}
	return out, fallbacks, nil
}

// asText accepts a string or an array of strings (joined with newlines).
func asText(v gjson.Result) (string, bool) {
	switch {
	case v.Type == gjson.String:
		return normalizeText(v.String()), true
	case v.IsArray():
		var lines []string
		ok := true
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Type != gjson.String {
				ok = false
				return false
			}
			lines = append(lines, item.String())
			return true
		})
		if !ok {
			return "", false
		}
		return normalizeText(strings.Join(lines, "\n")), true
	default:
		return "", false
	}
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

// LineCount counts newline-separated lines; the empty string has none.
func LineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func describe(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "array"
	case r.Type == gjson.String:
		return "string"
	case r.Type == gjson.Number:
		return "number"
	case r.Type == gjson.True || r.Type == gjson.False:
		return "boolean"
	case r.Type == gjson.Null:
		return "null"
	default:
		return r.Type.String()
	}
}
