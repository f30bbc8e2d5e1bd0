/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ConfigNames are the manifest file names probed by Find, in priority order.
var ConfigNames = []string{"gitfleet.yaml", "gitfleet.yml", "gitfleet.json"}

// Codec encodes and decodes one manifest file format.
type Codec interface {
	Decode(data []byte) (*Manifest, error)
	Encode(m *Manifest) ([]byte, error)
}

// CodecFor picks the codec matching the path's extension. Anything that is
// not .json is treated as YAML.
func CodecFor(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return jsonCodec{}
	}
	return yamlCodec{}
}

type yamlCodec struct{}

func (yamlCodec) Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing YAML manifest: %w", err)
	}
	return &m, nil
}

func (yamlCodec) Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding YAML manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// jsonCodec accepts JSON extended with // and /* */ comments and trailing
// commas; the extensions are stripped before decoding.
type jsonCodec struct{}

func (jsonCodec) Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parsing JSON manifest: %w", err)
	}
	return &m, nil
}

func (jsonCodec) Encode(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding JSON manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Find returns the path of the first manifest file present in dir. The error
// for a directory without one names every file name probed.
func Find(dir string) (string, error) {
	for _, name := range ConfigNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no fleet manifest found in %s (looking for: %s)", dir, strings.Join(ConfigNames, ", "))
}

// Load reads, decodes, and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := CodecFor(path).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadDir locates the manifest in dir and loads it, returning the manifest
// and the path it was read from.
func LoadDir(dir string) (*Manifest, string, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, "", err
	}
	m, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return m, path, nil
}

// Save encodes m in the format matching path's extension and writes it.
func Save(m *Manifest, path string) error {
	data, err := CodecFor(path).Encode(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
