package readers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/plugfactory/factory"
)

func init() {
	factory.Announce(map[string]any{
		"JSONReader": JSONReader{},
		"YAMLReader": YAMLReader{},
		"INIReader":  INIReader{},
	})
}

// Builtins returns the readers that ship with this package, for direct
// registration with a factory.
func Builtins() []ReaderPlugin {
	return []ReaderPlugin{JSONReader{}, YAMLReader{}, INIReader{}}
}

// JSONReader reads .json files.
type JSONReader struct{}

func (JSONReader) Name() string     { return "JSONReader" }
func (JSONReader) Version() float64 { return 1 }

func (JSONReader) CanRead(path string) bool {
	return strings.HasSuffix(path, ".json")
}

func (JSONReader) Contents(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}

// YAMLReader reads .yaml and .yml files.
type YAMLReader struct{}

func (YAMLReader) Name() string     { return "YAMLReader" }
func (YAMLReader) Version() float64 { return 1 }

func (YAMLReader) CanRead(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

func (YAMLReader) Contents(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}

// INIReader reads flat key = value files.
type INIReader struct{}

func (INIReader) Name() string     { return "INIReader" }
func (INIReader) Version() float64 { return 1 }

func (INIReader) CanRead(path string) bool {
	return strings.HasSuffix(path, ".ini")
}

func (INIReader) Contents(path string) (map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	out := make(map[string]any)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return out, nil
}
