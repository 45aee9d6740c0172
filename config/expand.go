package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv expands $VAR and ${VAR} in s. A ${VAR} that is not set is an
// error; $$ yields a literal $.
func expandEnv(s string) (string, error) {
	const dollar = "\x00RESULTCACHE_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range envRefPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: unset environment variables: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollar, "$"), nil
}

// expandPaths expands environment references in file system paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Settings.Path, &c.Board.Root} {
		expanded, err := expandEnv(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
