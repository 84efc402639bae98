package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"envboot/pkg/types"
)

// Load reads a manifest file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (types.Manifest, error) {
	var m types.Manifest
	if path == "" {
		return m, fmt.Errorf("empty manifest path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &m); err != nil {
			return m, err
		}
	case ".json":
		if err := json.Unmarshal(b, &m); err != nil {
			return m, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &m); err != nil {
			return m, err
		}
	default:
		return m, fmt.Errorf("unsupported manifest extension: %s", ext)
	}
	if err := Validate(m); err != nil {
		return m, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Default is the built-in manifest. It is the one source of truth for the
// declared package set: step order matters (numeric and dataframe libraries
// land before the libraries that import them at install time, web-serving
// libraries last) and exactly one step carries the legacy build flag.
func Default() types.Manifest {
	return types.Manifest{
		Interpreter: types.InterpreterSpec{
			Names:      []string{"python3", "python"},
			SearchRoot: "/usr/local",
		},
		Pin: types.PinSpec{
			Packages: []types.PackageSpec{
				{Name: "pip", Version: "23.3.2"},
				{Name: "setuptools", Version: "68.2.2"},
				{Name: "wheel", Version: "0.41.3"},
			},
			MaxPipVersion: "24.0.0",
		},
		Steps: []types.InstallStep{
			{Name: "numpy", Packages: []types.PackageSpec{{Name: "numpy", Version: "1.24.3"}}},
			{Name: "pandas", Packages: []types.PackageSpec{{Name: "pandas", Version: "2.0.3"}}},
			{
				Name:     "scikit-surprise",
				Packages: []types.PackageSpec{{Name: "scikit-surprise", Version: "1.1.3"}},
				// surprise ships a setup.py that imports numpy; a PEP 517
				// isolated build cannot see the numpy installed above.
				Flags: []string{"--no-use-pep517"},
			},
			{Name: "scikit-learn", Packages: []types.PackageSpec{{Name: "scikit-learn", Version: "1.3.0"}}},
			{Name: "joblib", Packages: []types.PackageSpec{{Name: "joblib", Version: "1.3.2"}}},
			{Name: "uvicorn", Packages: []types.PackageSpec{{Name: "uvicorn", Version: "0.23.2"}}},
			{Name: "fastapi", Packages: []types.PackageSpec{{Name: "fastapi", Version: "0.103.1"}}},
		},
		Service: types.ServiceSpec{App: "api:app", Host: "0.0.0.0", Port: 8000},
	}
}

// Validate checks the structural rules a manifest must satisfy before a run
// starts. Behavioral rules (ordering, flag scoping) are the pipeline's job.
func Validate(m types.Manifest) error {
	if len(m.Interpreter.Names) == 0 {
		return fmt.Errorf("interpreter: at least one binary name is required")
	}
	if len(m.Steps) == 0 {
		return fmt.Errorf("steps: at least one install step is required")
	}
	for i, p := range m.Pin.Packages {
		if p.Name == "" || p.Version == "" {
			return fmt.Errorf("pin package %d: name and version are required", i)
		}
	}
	if m.Pin.MaxPipVersion != "" {
		if _, err := semver.NewVersion(m.Pin.MaxPipVersion); err != nil {
			return fmt.Errorf("pin max_pip_version %q: %w", m.Pin.MaxPipVersion, err)
		}
	}
	for i, s := range m.Steps {
		if len(s.Packages) == 0 {
			return fmt.Errorf("step %d (%s): at least one package is required", i+1, s.Name)
		}
		for _, p := range s.Packages {
			if p.Name == "" || p.Version == "" {
				return fmt.Errorf("step %d (%s): every package needs name and version", i+1, s.Name)
			}
		}
	}
	return nil
}
