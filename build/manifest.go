package build

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/teranos/snpm/errors"
)

// Manifest is the subset of a package's package.json that publishing reads
type Manifest struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Bin        BinField          `json:"bin"`
	Checksums  Checksums         `json:"checksums"`
	Repository Repository        `json:"repository"`
	Scripts    map[string]string `json:"scripts"`
}

// Checksums holds the digests a package declares for its build artifact
type Checksums struct {
	SHA1 string `json:"sha1"`
}

// BinField accepts both manifest forms: "bin": "path" and "bin": {"cmd": "path"}.
// The string form is stored under the empty key.
type BinField map[string]string

// UnmarshalJSON implements json.Unmarshaler
func (b *BinField) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*b = BinField{"": single}
		return nil
	}

	var named map[string]string
	if err := json.Unmarshal(data, &named); err != nil {
		return errors.New(`"bin" must be a string or an object of strings`)
	}
	*b = named
	return nil
}

// Repository accepts both "repository": "url" and {"type": "git", "url": "..."}
type Repository struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Repository) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = Repository{URL: single}
		return nil
	}

	type plain Repository
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New(`"repository" must be a string or an object`)
	}
	*r = Repository(obj)
	return nil
}

// ReadManifest reads and parses the manifest at path
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read manifest %s", path), errors.ErrManifest)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to parse manifest %s", path), errors.ErrManifest)
	}
	return &m, nil
}

// BinPath returns the declared artifact path, relative to the package root.
// With the object form the entry named after the package wins, then a sole entry.
func (m *Manifest) BinPath() (string, error) {
	if len(m.Bin) == 0 {
		return "", errors.Mark(errors.New(`manifest declares no "bin"`), errors.ErrManifest)
	}
	if p, ok := m.Bin[""]; ok {
		return p, nil
	}

	// Scoped packages (@scope/name) expose their bin under the bare name
	if p, ok := m.Bin[path.Base(m.Name)]; ok && m.Name != "" {
		return p, nil
	}
	if len(m.Bin) == 1 {
		for _, p := range m.Bin {
			return p, nil
		}
	}
	return "", errors.Mark(errors.Newf(`manifest "bin" has %d entries and none named %q`, len(m.Bin), m.Name), errors.ErrManifest)
}

// ArtifactPath resolves the declared artifact inside dir. Paths escaping dir are rejected.
func (m *Manifest) ArtifactPath(dir string) (string, error) {
	rel, err := m.BinPath()
	if err != nil {
		return "", err
	}
	if rel == "" || filepath.IsAbs(rel) {
		return "", errors.Mark(errors.Newf("artifact path %q must be relative", rel), errors.ErrIO)
	}

	full := filepath.Join(dir, filepath.FromSlash(rel))
	if !inside(dir, full) {
		return "", errors.Mark(errors.Newf("artifact path %q escapes the package directory", rel), errors.ErrIO)
	}

	// A symlinked artifact or parent must still land inside dir. A missing
	// artifact is left for the checksum read to report.
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			return full, nil
		}
		return "", errors.Mark(errors.Wrapf(err, "failed to resolve artifact %q", rel), errors.ErrIO)
	}
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "failed to resolve package directory %s", dir), errors.ErrIO)
	}
	if !inside(root, resolved) {
		return "", errors.Mark(errors.Newf("artifact path %q links outside the package directory", rel), errors.ErrIO)
	}
	return full, nil
}

func inside(dir, target string) bool {
	within, err := filepath.Rel(dir, target)
	return err == nil && within != ".." && !strings.HasPrefix(within, ".."+string(filepath.Separator))
}
