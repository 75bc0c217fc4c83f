package gazetteer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/campus-card/backend/pkg/logger"
)

// ConfigError reports a missing or malformed gazetteer source.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gazetteer %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type entry struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	X    *int   `json:"x" yaml:"x"`
	Y    *int   `json:"y" yaml:"y"`
}

func (e entry) record(key string) (Record, error) {
	if strings.TrimSpace(key) == "" {
		return Record{}, errors.New("empty location key")
	}
	if strings.TrimSpace(e.Name) == "" {
		return Record{}, fmt.Errorf("location %q has no name", key)
	}
	if e.X == nil || e.Y == nil {
		return Record{}, fmt.Errorf("location %q has no coordinate", key)
	}
	return Record{
		Key:      key,
		Name:     strings.TrimSpace(e.Name),
		Category: strings.TrimSpace(e.Type),
		X:        *e.X,
		Y:        *e.Y,
	}, nil
}

// Load reads a key -> {name, type, x, y} mapping from a JSON or YAML file,
// keeping the order in which keys appear. A repeated key keeps its first
// position and takes its last value. Any failure is a *ConfigError.
func Load(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		records, err = decodeYAML(data)
	default:
		records, err = decodeJSON(data)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	g := New(dedupe(path, records)...)
	logger.Info("Gazetteer loaded", zap.String("path", path), zap.Int("locations", g.Len()))
	return g, nil
}

// LoadOrEmpty logs a load failure and returns an empty gazetteer instead.
func LoadOrEmpty(path string) *Gazetteer {
	g, err := Load(path)
	if err != nil {
		logger.Error("Failed to load gazetteer, continuing with no locations", zap.Error(err))
		return New()
	}
	return g
}

func dedupe(path string, records []Record) []Record {
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := strings.ToLower(strings.TrimSpace(r.Key))
		if i, dup := index[k]; dup {
			logger.Warn("Duplicate location key, keeping the last entry",
				zap.String("path", path),
				zap.String("key", r.Key),
				zap.String("replaced", out[i].Name),
				zap.String("name", r.Name),
			)
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func decodeJSON(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a top-level json object")
	}

	var records []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read json key: %w", err)
		}
		key, _ := tok.(string)

		var e entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode location %q: %w", key, err)
		}
		r, err := e.record(key)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after json object")
	}

	return records, nil
}

func decodeYAML(data []byte) ([]Record, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("empty yaml document")
	}

	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, errors.New("expected a top-level yaml mapping")
	}

	records := make([]Record, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value

		var e entry
		if err := m.Content[i+1].Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode location %q: %w", key, err)
		}
		r, err := e.record(key)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, nil
}
