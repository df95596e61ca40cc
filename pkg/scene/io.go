package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML scene. Unknown fields are rejected. An empty
// document yields an empty scene. The scene is not validated.
func Parse(data []byte) (*Scene, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	sc := New()
	if err := dec.Decode(sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("scene: parse: %w", err)
	}
	return sc, nil
}

// Load reads and parses a YAML scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal encodes sc as YAML.
func Marshal(sc *Scene) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return nil, fmt.Errorf("scene: marshal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("scene: marshal: %w", err)
	}
	return buf.Bytes(), nil
}
