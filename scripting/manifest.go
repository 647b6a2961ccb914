package scripting

import (
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/neopult/neopult/errors"
)

// APIVersion is the host capability-surface version plugin manifests are
// checked against. Bump it whenever a host function's signature or
// semantics change in a way guest scripts should be able to depend on.
const APIVersion = "1.0.0"

// ManifestFile is the per-plugin-directory manifest name.
const ManifestFile = "plugin.yaml"

// Manifest describes one on-disk plugin directory.
type Manifest struct {
	Name       string `yaml:"name"`
	APIVersion string `yaml:"api_version"`
	Entrypoint string `yaml:"entrypoint"`
}

// LoadManifest reads and validates dir/plugin.yaml, checking that the
// module's api_version constraint is satisfiable by the running host's
// APIVersion.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %s", path)
	}
	if m.Name == "" {
		return nil, errors.Newf("manifest %s missing required field name", path)
	}
	if m.Entrypoint == "" {
		return nil, errors.Newf("manifest %s missing required field entrypoint", path)
	}

	if err := m.validateVersion(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validateVersion() error {
	if m.APIVersion == "" {
		return nil
	}

	hostVer, err := semver.NewVersion(APIVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid host API version %s", APIVersion)
	}
	constraint, err := semver.NewConstraint(m.APIVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid api_version constraint %q in manifest for %s", m.APIVersion, m.Name)
	}
	if !constraint.Check(hostVer) {
		return errors.Newf("plugin %s requires host API %s, but running %s", m.Name, m.APIVersion, APIVersion)
	}
	return nil
}
