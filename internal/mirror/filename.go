package mirror

import (
	"strconv"
	"strings"
)

// PartialFilename maps a partial name to a safe file name.
func PartialFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	base := strings.Trim(b.String(), "_")
	if base == "" {
		base = "partial"
	}
	return base + ".json"
}

func uniqueName(name string, used map[string]struct{}) string {
	if _, taken := used[name]; !taken {
		return name
	}
	stem := strings.TrimSuffix(name, ".json")
	for i := 2; ; i++ {
		candidate := stem + "-" + strconv.Itoa(i) + ".json"
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}
