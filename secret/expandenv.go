package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment variables in s.
//
//   - $VAR and ${VAR} expand like os.ExpandEnv.
//   - ${VAR} with VAR unset fails with ErrMissingEnv naming every missing
//     variable.
//   - $$ is a literal $.
func ExpandEnvStrict(s string) (string, error) {
	const dollar = "\x00PHOENIX_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollar, "$"), nil
}
