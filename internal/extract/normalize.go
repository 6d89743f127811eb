package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const additionalDetailsKey = "additionalDetails"

var scalarFields = []string{
	"productName", "brand", "category", "price",
	"dimensions", "weight", "description",
}

// Normalize rewrites a decoded model payload into the product shape:
//   - scalar fields become trimmed strings (numbers, bools, lists and objects are stringified)
//   - nulls and empty strings are dropped
//   - unknown keys are moved under additionalDetails
//   - a non-object additionalDetails is wrapped as {"value": ...}
//
// It returns the names of the keys it had to change.
func Normalize(m map[string]any) []string {
	changed := make([]string, 0, 4)

	for _, k := range scalarFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, ok := stringify(v)
		if !ok || s == "" {
			delete(m, k)
			changed = append(changed, k+"(empty)")
			continue
		}
		if orig, isString := v.(string); !isString || orig != s {
			changed = append(changed, k+"(coerced)")
		}
		m[k] = s
	}

	details := map[string]any{}
	switch t := m[additionalDetailsKey].(type) {
	case nil:
		if _, present := m[additionalDetailsKey]; present {
			changed = append(changed, additionalDetailsKey+"(null)")
		}
	case map[string]any:
		details = t
	default:
		details["value"] = t
		changed = append(changed, additionalDetailsKey+"(wrapped)")
	}
	delete(m, additionalDetailsKey)

	known := make(map[string]struct{}, len(scalarFields))
	for _, k := range scalarFields {
		known[k] = struct{}{}
	}
	for k, v := range m {
		if _, ok := known[k]; ok {
			continue
		}
		if v != nil {
			if _, exists := details[k]; !exists {
				details[k] = v
			}
		}
		delete(m, k)
		changed = append(changed, k+"(moved)")
	}

	if len(details) > 0 {
		m[additionalDetailsKey] = details
	}
	return changed
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := stringify(item); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(b), true
	}
}

func logChanged(logger *slog.Logger, changed []string) {
	if len(changed) > 0 {
		logger.Debug("Model payload normalized", slog.Any("changed", changed))
	}
}
