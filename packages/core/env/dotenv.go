package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadDotEnv parses a .env file into key-value pairs. It accepts KEY=value,
// quoted values, an optional "export " prefix and # comments. Nothing is
// exported to the process environment.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		result[key] = parseValue(strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

func parseValue(value string) string {
	if len(value) >= 2 {
		q := value[0]
		if (q == '"' || q == '\'') && value[len(value)-1] == q {
			return value[1 : len(value)-1]
		}
	}
	// unquoted values may carry a trailing " # comment"
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return value
}

// LoadAndExportDotEnv parses a .env file and exports each variable that is
// not already set, so {{$VAR}} placeholders can see it.
func LoadAndExportDotEnv(path string) (map[string]string, error) {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}

	for k, v := range vars {
		if _, set := os.LookupEnv(k); !set {
			if err := os.Setenv(k, v); err != nil {
				return nil, fmt.Errorf("export %s: %w", k, err)
			}
		}
	}

	return vars, nil
}
