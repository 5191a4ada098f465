package launch

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestMergeEnvPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("FROM_FILE=file\nSHARED=file\nOVERRIDDEN=file\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	image := map[string]string{
		"FROM_IMAGE": "image",
		"SHARED":     "image",
		"OVERRIDDEN": "image",
	}

	env, err := MergeEnv(image, envFile, []string{"OVERRIDDEN=flag", "ONLY_FLAG=flag"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	got := map[string]string{}
	for _, entry := range env {
		for i := 0; i < len(entry); i++ {
			if entry[i] == '=' {
				got[entry[:i]] = entry[i+1:]
				break
			}
		}
	}

	want := map[string]string{
		"FROM_IMAGE": "image", // only the image sets it
		"FROM_FILE":  "file",  // only the file sets it
		"SHARED":     "file",  // file beats image
		"OVERRIDDEN": "flag",  // flag beats file beats image
		"ONLY_FLAG":  "flag",
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s = %q, want %q", key, got[key], value)
		}
	}

	if !sort.StringsAreSorted(env) {
		t.Errorf("env not sorted: %v", env)
	}
}

func TestMergeEnvForwardsProcessVariable(t *testing.T) {
	t.Setenv("SLIPWAY_TEST_FORWARD", "from-process")

	env, err := MergeEnv(nil, "", []string{"SLIPWAY_TEST_FORWARD"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(env) != 1 || env[0] != "SLIPWAY_TEST_FORWARD=from-process" {
		t.Errorf("env = %v", env)
	}
}

func TestMergeEnvMalformedOverride(t *testing.T) {
	_, err := MergeEnv(nil, "", []string{"=value"})
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}

func TestMergeEnvMissingFile(t *testing.T) {
	_, err := MergeEnv(nil, filepath.Join(t.TempDir(), "absent.env"), nil)
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}
