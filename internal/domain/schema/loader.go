package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
)

// LoadDir registers every schema document found directly inside dir. The
// type name of a document is its file name without extension. Supported
// formats are JSON (.json), JSON with comments (.jsonc), YAML (.yaml, .yml)
// and TOML (.toml); other files are skipped. It returns the number of registered documents.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema directory: %w", err)
	}

	documents := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		typeName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		raw, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to read schema %s: %w", path, err)
		}

		doc, err := ToJSON(ext, raw)
		if err != nil {
			if err == errUnsupportedFormat {
				r.logger.Debug("Skipping non-schema file", zap.String("path", path))
				continue
			}
			return 0, fmt.Errorf("failed to convert schema %s: %w", path, err)
		}

		if _, dup := documents[typeName]; dup {
			return 0, fmt.Errorf("duplicate schema type %q in %s", typeName, dir)
		}
		documents[typeName] = doc
	}

	if len(documents) == 0 {
		return 0, nil
	}
	if err := r.RegisterAll(documents); err != nil {
		return 0, err
	}

	r.logger.Info("Loaded schema documents", zap.String("dir", dir), zap.Int("count", len(documents)))
	return len(documents), nil
}

var errUnsupportedFormat = fmt.Errorf("unsupported schema format")

// ToJSON converts a schema document in the format named by ext (".json",
// ".jsonc", ".yaml", ".yml" or ".toml") into JSON.
func ToJSON(ext string, raw []byte) ([]byte, error) {
	switch ext {
	case ".json":
		return raw, nil
	case ".jsonc":
		return jsonc.ToJSON(raw), nil
	case ".yaml", ".yml":
		return yaml.YAMLToJSON(raw)
	case ".toml":
		var doc map[string]interface{}
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return sonic.ConfigStd.Marshal(doc)
	default:
		return nil, errUnsupportedFormat
	}
}
