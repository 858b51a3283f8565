package llms

import (
	"encoding/json"
	"regexp"
)

var (
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls the first bracket-delimited JSON array or object out of
// free-form model text, tolerating prose before/after the payload.
func ExtractJSON(text string) (string, bool) {
	arr := jsonArrayRe.FindStringIndex(text)
	obj := jsonObjectRe.FindStringIndex(text)
	switch {
	case arr == nil && obj == nil:
		return "", false
	case obj == nil || (arr != nil && arr[0] < obj[0]):
		return text[arr[0]:arr[1]], true
	default:
		return text[obj[0]:obj[1]], true
	}
}

// NormalizeToList unifies the handful of shapes a structured-output call can
// legally return into a single []any, matching the corpus's
// normalize_to_list contract:
//
//  1. a JSON/raw string   -> parsed, then normalized recursively
//  2. a JSON array         -> returned as-is
//  3. a JSON object with a "chapters" array -> that array
//  4. a single-key object whose value is an array -> that array
//  5. a multi-key object with some array-valued field -> the first one found
//  6. any other object or scalar -> wrapped as a single-element list
func NormalizeToList(raw string) []any {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return []any{raw}
	}
	return normalizeValue(decoded)
}

func normalizeValue(v any) []any {
	switch val := v.(type) {
	case nil:
		return []any{}
	case []any:
		return val
	case map[string]any:
		if chapters, ok := val["chapters"].([]any); ok {
			return chapters
		}
		if len(val) == 1 {
			for _, sole := range val {
				if list, ok := sole.([]any); ok {
					return list
				}
			}
		}
		for _, candidate := range val {
			if list, ok := candidate.([]any); ok {
				return list
			}
		}
		return []any{val}
	case string:
		var nested any
		if err := json.Unmarshal([]byte(val), &nested); err == nil {
			return normalizeValue(nested)
		}
		return []any{val}
	default:
		return []any{val}
	}
}
