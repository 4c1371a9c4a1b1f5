package serialize

import "strings"

// ToCamelCase converts a snake_case field name to camelCase.
func ToCamelCase(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}

// camelKeys returns a copy of the record with every key converted to
// camelCase.
func camelKeys(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[ToCamelCase(k)] = v
	}
	return out
}
