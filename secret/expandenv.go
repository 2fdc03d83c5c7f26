package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands ${VAR} references in s, failing if any
// referenced variable is absent from the environment. A literal dollar
// sign is written as $$.
//
// Only the braced form is recognized; a bare $WORD passes through
// untouched, which keeps Postgres DSNs and URL userinfo intact.
func ExpandEnvStrict(s string) (string, error) {
	const escaped = "\x00dollar\x00"
	s = strings.ReplaceAll(s, "$$", escaped)

	var missing []string
	out := envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		key := ref[2 : len(ref)-1]
		val, ok := os.LookupEnv(key)
		if !ok {
			missing = append(missing, key)
			return ref
		}
		return val
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(dedupe(missing), ", "))
	}
	return strings.ReplaceAll(out, escaped, "$"), nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
