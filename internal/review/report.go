package review

import (
	"encoding/json"
	"fmt"
)

// Summary returns the narrative review text from a result. Non-string
// review_summary values are shown as indented JSON; anything missing is "".
func Summary(result any) string {
	obj, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	switch t := obj["review_summary"].(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
