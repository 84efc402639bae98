package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"envboot/pkg/types"
)

const yamlManifest = `
interpreter:
  names: [python3]
  search_root: /opt/python
pin:
  packages:
    - {name: pip, version: 23.3.2}
  max_pip_version: 24.0.0
steps:
  - name: numpy
    packages:
      - {name: numpy, version: 1.24.3}
service: {app: api:app, host: 0.0.0.0, port: 8000}
`

const tomlManifest = `
[interpreter]
names = ["python3"]
search_root = "/opt/python"

[pin]
max_pip_version = "24.0.0"

[[pin.packages]]
name = "pip"
version = "23.3.2"

[[steps]]
name = "scikit-surprise"
flags = ["--no-use-pep517"]

[[steps.packages]]
name = "scikit-surprise"
version = "1.1.3"

[service]
app = "api:app"
host = "0.0.0.0"
port = 8000
`

const jsonManifest = `{
  "interpreter": {"names": ["python3"], "search_root": "/opt/python"},
  "pin": {"packages": [{"name": "pip", "version": "23.3.2"}], "max_pip_version": "24.0.0"},
  "steps": [{"name": "numpy", "packages": [{"name": "numpy", "version": "1.24.3"}]}],
  "service": {"app": "api:app", "host": "0.0.0.0", "port": 8000}
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	m, err := Load(writeTemp(t, "m.yaml", yamlManifest))
	require.NoError(t, err)
	require.Equal(t, []string{"python3"}, m.Interpreter.Names)
	require.Equal(t, "/opt/python", m.Interpreter.SearchRoot)
	require.Len(t, m.Steps, 1)
	require.Equal(t, "numpy==1.24.3", m.Steps[0].Packages[0].Requirement())
	require.Equal(t, 8000, m.Service.Port)
}

func TestLoadTOML(t *testing.T) {
	m, err := Load(writeTemp(t, "m.toml", tomlManifest))
	require.NoError(t, err)
	require.Len(t, m.Steps, 1)
	require.Equal(t, []string{"--no-use-pep517"}, m.Steps[0].Flags)
	require.Equal(t, "24.0.0", m.Pin.MaxPipVersion)
}

func TestLoadJSON(t *testing.T) {
	m, err := Load(writeTemp(t, "m.json", jsonManifest))
	require.NoError(t, err)
	require.Equal(t, "pip==23.3.2", m.Pin.Packages[0].Requirement())
	require.Equal(t, "api:app", m.Service.App)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeTemp(t, "m.ini", "steps = none"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported manifest extension")
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsInvalidManifest(t *testing.T) {
	_, err := Load(writeTemp(t, "m.yaml", "interpreter:\n  names: [python3]\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "install step")
}

func TestDefaultManifestShape(t *testing.T) {
	m := Default()
	require.NoError(t, Validate(m))
	require.Len(t, m.Steps, 7)

	order := make([]string, 0, len(m.Steps))
	for _, s := range m.Steps {
		order = append(order, s.Name)
	}
	require.Equal(t, []string{
		"numpy", "pandas", "scikit-surprise", "scikit-learn", "joblib", "uvicorn", "fastapi",
	}, order)
}

func TestDefaultLegacyFlagOnExactlyOneStep(t *testing.T) {
	m := Default()
	var flagged []string
	for _, s := range m.Steps {
		for _, f := range s.Flags {
			if f == "--no-use-pep517" {
				flagged = append(flagged, s.Name)
			}
		}
	}
	require.Equal(t, []string{"scikit-surprise"}, flagged)
}

func TestDefaultPinsPipBelowBound(t *testing.T) {
	m := Default()
	require.Equal(t, "24.0.0", m.Pin.MaxPipVersion)
	require.Equal(t, "pip", m.Pin.Packages[0].Name)
	require.Len(t, m.Pin.Packages, 3) // pip + setuptools + wheel
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*types.Manifest)
		want string
	}{
		{"no interpreter names", func(m *types.Manifest) { m.Interpreter.Names = nil }, "binary name"},
		{"no steps", func(m *types.Manifest) { m.Steps = nil }, "install step"},
		{"unversioned step package", func(m *types.Manifest) { m.Steps[0].Packages[0].Version = "" }, "name and version"},
		{"unversioned pin package", func(m *types.Manifest) { m.Pin.Packages[0].Version = "" }, "name and version"},
		{"bad pip bound", func(m *types.Manifest) { m.Pin.MaxPipVersion = "not-a-version" }, "max_pip_version"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Default()
			tc.mut(&m)
			err := Validate(m)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
