// Package manifest parses the YAML file describing which host files to
// embed into the generated FAT32 volume.
package manifest

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Entry names a single host-filesystem file and the 8.3 name it should
// receive inside the generated volume.
type Entry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Manifest is the top-level document shape of build/manifest.yaml.
type Manifest struct {
	Volume struct {
		Label string `yaml:"label"`
	} `yaml:"volume"`
	Files []Entry `yaml:"files"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest: reading %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrapf(err, "manifest: parsing %s", path)
	}
	return &m, nil
}
