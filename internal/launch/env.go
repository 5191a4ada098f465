package launch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Merges the three environment layers into the KEY=VALUE slice a container
// task takes.
//
// Precedence, lowest to highest: the image's baked-in environment, entries
// from the env file, then explicit overrides. An override without a value
// (KEY rather than KEY=VALUE) forwards the daemon's own variable of that
// name. The result is sorted for stable task specs.
func MergeEnv(imageEnv map[string]string, envFile string, overrides []string) ([]string, error) {
	merged := map[string]string{}

	for key, value := range imageEnv {
		merged[key] = value
	}

	if envFile != "" {
		fromFile, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("%w: env file %s: %w", ErrLaunch, envFile, err)
		}
		for key, value := range fromFile {
			merged[key] = value
		}
	}

	for _, entry := range overrides {
		key, value, found := strings.Cut(entry, "=")
		if key == "" {
			return nil, fmt.Errorf("%w: malformed env override %q", ErrLaunch, entry)
		}
		if !found {
			value = os.Getenv(key)
		}
		merged[key] = value
	}

	env := make([]string, 0, len(merged))
	for key, value := range merged {
		env = append(env, key+"="+value)
	}
	sort.Strings(env)
	return env, nil
}
