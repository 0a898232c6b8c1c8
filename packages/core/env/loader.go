package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvironmentFilenames are searched, in order, by FindEnvironmentFile.
var EnvironmentFilenames = []string{
	"courier.env.yaml",
	".courier.env.yaml",
	"courier.env.json",
}

type Environment struct {
	Name      string
	Variables map[string]any
}

// LoadEnvironment selects envName from a set of named environments, such
// as the environments section of a courier profile.
func LoadEnvironment(envName string, envs map[string]map[string]any) (*Environment, error) {
	env := &Environment{
		Name:      envName,
		Variables: make(map[string]any),
	}
	if envName == "" {
		return env, nil
	}

	vars, ok := envs[envName]
	if !ok {
		return nil, fmt.Errorf("environment %q not defined", envName)
	}
	for k, v := range vars {
		env.Variables[k] = v
	}
	return env, nil
}

// LoadEnvironmentFile reads a file mapping environment names to variables.
func LoadEnvironmentFile(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read environment file: %w", err)
	}

	envs := make(map[string]map[string]any)
	if err := yaml.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return envs, nil
}

// FindEnvironmentFile returns the first environment file in dir, or "".
func FindEnvironmentFile(dir string) string {
	for _, name := range EnvironmentFilenames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns OS environment variables whose names start with
// prefix, keyed by the remainder of the name. An empty prefix returns all.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
			continue
		}
		if rest, found := strings.CutPrefix(key, prefix); found && rest != "" {
			result[rest] = value
		}
	}
	return result
}
