package logs

import (
	"fmt"
	"maps"
	"slices"
)

// fields turns alternating key/value arguments into a map.
// A dangling key is recorded under "!BADKEY".
func fields(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]any, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			out["!BADKEY"] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out[key] = kv[i+1]
	}
	return out
}

func copyFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
