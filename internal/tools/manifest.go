package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/animus-ai/animus/pkg/models"
)

// ManifestFileName is the descriptor each installed tool directory must
// contain.
const ManifestFileName = "information.json"

// manifestSchema is the structural contract a manifest must satisfy
// before the registry accepts it. Validation failures skip the tool
// rather than failing startup.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tool_name", "control_variable_name", "tool_description", "available_commands"],
  "properties": {
    "tool_name": {"type": "string", "minLength": 1, "pattern": "^[a-z][a-z0-9_]*$"},
    "control_variable_name": {"type": "string", "minLength": 1},
    "tool_description": {"type": "string", "minLength": 1},
    "available_commands": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["command", "description"],
        "properties": {
          "command": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "format": {"type": "string"},
          "arguments": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "type"],
              "properties": {
                "name": {"type": "string"},
                "type": {"type": "string"},
                "description": {"type": "string"},
                "required": {"type": "boolean"}
              }
            }
          }
        }
      }
    },
    "tool_usage_guidance": {"type": "array", "items": {"type": "string"}},
    "tool_usage_examples": {"type": "array", "items": {"type": "string"}},
    "timeout_seconds": {"type": "integer", "minimum": 1},
    "cooldown_seconds": {"type": "integer", "minimum": 0}
  }
}`

var compiledManifestSchema = jsonschema.MustCompileString("manifest.schema.json", manifestSchema)

// LoadManifest reads and validates one information.json.
func LoadManifest(path string) (*models.ToolManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := compiledManifestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	var manifest models.ToolManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// discovered pairs a manifest with the directory it was found in.
type discovered struct {
	manifest models.ToolManifest
	dir      string
}

// discoverManifests scans each subdirectory of root for a manifest.
// Invalid manifests are reported through the errs callback and skipped.
func discoverManifests(root string, errs func(dir string, err error)) ([]discovered, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tools dir: %w", err)
	}

	var out []discovered
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		path := filepath.Join(dir, ManifestFileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		manifest, err := LoadManifest(path)
		if err != nil {
			if errs != nil {
				errs(dir, err)
			}
			continue
		}
		out = append(out, discovered{manifest: *manifest, dir: dir})
	}
	return out, nil
}
