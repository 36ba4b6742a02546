package normalization

import "strings"

// Enum maps an untrusted value onto allowed, returning fallback when nothing
// matches. Matching is case-insensitive with spaces and hyphens folded to
// underscores, so "Non-Compete" matches "non_compete".
func Enum[T ~string](v any, allowed []T, fallback T) T {
	return EnumAlias(v, allowed, nil, fallback)
}

// EnumAlias is Enum with extra spellings mapped to canonical values.
func EnumAlias[T ~string](v any, allowed []T, aliases map[string]T, fallback T) T {
	key := foldEnum(String(v))
	if key == "" {
		return fallback
	}
	for _, a := range allowed {
		if string(a) == key {
			return a
		}
	}
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return fallback
}

func foldEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return strings.Trim(s, "_")
}
