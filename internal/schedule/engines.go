package schedule

import (
	"encoding/json"
	"strings"
)

// NormalizeEngines coerces the stored engines field into a canonical slice of
// engine identifiers. Historical rows hold one of three shapes: a JSON array
// (["serp","ai"]), a comma-delimited string ("serp, ai"), or a single bare
// identifier ("serp"). Unparseable values degrade to an empty slice rather
// than failing the batch; a schedule with no engines still executes with the
// engine provider's defaults.
func NormalizeEngines(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return []string{}
		}
		return cleanIDs(ids)
	}

	return cleanIDs(strings.Split(raw, ","))
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
