// Package seed reads the optional file that overrides the default dashboard
// and budget documents. The file has a top-level "dashboard" and/or "budget"
// section in YAML, TOML or JSON, picked by extension.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"kpiboard/internal/core"
	"kpiboard/internal/validation"
)

// Documents holds the seeded defaults. A nil field keeps the built-in default.
type Documents struct {
	Dashboard *core.DashboardDocument
	Budget    *core.BudgetDocument
}

// DashboardOr returns the seeded dashboard or def.
func (d Documents) DashboardOr(def core.DashboardDocument) core.DashboardDocument {
	if d.Dashboard != nil {
		return *d.Dashboard
	}
	return def
}

// BudgetOr returns the seeded budget or def.
func (d Documents) BudgetOr(def core.BudgetDocument) core.BudgetDocument {
	if d.Budget != nil {
		return *d.Budget
	}
	return def
}

// Load reads and validates the seed file at path.
func Load(path string) (Documents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Documents{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes seed data in the format named by ext (".yaml", ".yml",
// ".toml" or ".json").
func Parse(data []byte, ext string) (Documents, error) {
	sections, err := decode(data, strings.ToLower(ext))
	if err != nil {
		return Documents{}, err
	}

	var docs Documents
	if raw, ok := sections[core.KindDashboard]; ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return Documents{}, fmt.Errorf("encode dashboard seed: %w", err)
		}
		doc, err := validation.Dashboard(b)
		if err != nil {
			return Documents{}, fmt.Errorf("dashboard seed: %w", err)
		}
		docs.Dashboard = &doc
	}
	if raw, ok := sections[core.KindBudget]; ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return Documents{}, fmt.Errorf("encode budget seed: %w", err)
		}
		doc, err := validation.Budget(b)
		if err != nil {
			return Documents{}, fmt.Errorf("budget seed: %w", err)
		}
		docs.Budget = &doc
	}
	return docs, nil
}

func decode(data []byte, ext string) (map[string]any, error) {
	sections := map[string]any{}
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sections); err != nil {
			return nil, fmt.Errorf("parse yaml seed: %w", err)
		}
	case ".toml":
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parse toml seed: %w", err)
		}
		sections = tree.ToMap()
	case ".json":
		if err := json.Unmarshal(data, &sections); err != nil {
			return nil, fmt.Errorf("parse json seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q: use .yaml, .toml or .json", ext)
	}
	return sections, nil
}
