// Package universe loads the YAML registry of ticker baskets (decks).
package universe

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/trendhealth/internal/contracts"
)

// File is the on-disk registry document
type File struct {
	Universes []contracts.Universe `yaml:"universes" json:"universes"`
}

// Load reads and validates the registry at path
// KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a registry document
func Parse(data []byte) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode universe file: %w", err)
	}

	normalize(&f)
	if err := Validate(&f); err != nil {
		return nil, err
	}

	hash, err := Hash(&f)
	if err != nil {
		return nil, err
	}
	return newRegistry(f, hash), nil
}

// Hash generates SHA256 hash of the registry (canonical JSON)
func Hash(f *File) (string, error) {
	jsonBytes, err := json.Marshal(f)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

func normalize(f *File) {
	for i := range f.Universes {
		u := &f.Universes[i]
		if u.DenominatorMode == "" {
			u.DenominatorMode = contracts.DenominatorTotal
		}
	}
}
