// Package bundle turns authoring manifests into self-contained exercise
// bundles and back. A bundle is a directory or ZIP holding index.html,
// styles.css, exercise-data.js, import.json, the wasm engine and assets/.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// ManifestFile is the conventional manifest name inside a project dir.
const ManifestFile = "exercise.yaml"

// Manifest is the authoring form of an exercise. File paths are relative to
// the manifest's directory.
type Manifest struct {
	Title  string          `yaml:"title" validate:"max=200"`
	Groups []ManifestGroup `yaml:"groups" validate:"required,min=1"`

	dir string
}

// ManifestGroup is one group: an optional background image and its clips.
type ManifestGroup struct {
	Image string          `yaml:"image,omitempty"`
	Audio []ManifestAudio `yaml:"audio"`
}

// ManifestAudio is one clip. An entry without a file is kept for display
// but is skipped on export.
type ManifestAudio struct {
	File string `yaml:"file,omitempty"`
	Name string `yaml:"name,omitempty"`
}

// LoadManifest reads a manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve manifest dir: %w", err)
	}
	m.dir = abs
	return &m, nil
}

// NewManifest creates an empty manifest rooted at dir.
func NewManifest(dir, title string) *Manifest {
	return &Manifest{Title: title, dir: dir}
}

// Dir returns the directory file paths are relative to.
func (m *Manifest) Dir() string { return m.dir }

// Path resolves a manifest-relative file path.
func (m *Manifest) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.dir, filepath.FromSlash(rel))
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// AudioCount returns the number of clips that have a file.
func (m *Manifest) AudioCount() int {
	n := 0
	for _, g := range m.Groups {
		for _, a := range g.Audio {
			if strings.TrimSpace(a.File) != "" {
				n++
			}
		}
	}
	return n
}

// Validate checks what an exporter needs: a title of sensible length, at
// least one group, at least one clip with a file, and every referenced
// file present on disk.
func (m *Manifest) Validate() error {
	errs, err := domain.StructErrors(m)
	if err != nil {
		return fmt.Errorf("validate manifest: %w", err)
	}
	add := func(field, msg string, value any, rule string) {
		errs = append(errs, domain.ValidationError{Field: field, Message: msg, Value: value, Rule: rule})
	}

	if len(m.Groups) > 0 && m.AudioCount() == 0 {
		add("groups", "add at least one audio file", 0, "required")
	}

	for gi, g := range m.Groups {
		if g.Image != "" {
			if err := checkFile(m.Path(g.Image)); err != nil {
				add(fmt.Sprintf("groups[%d].image", gi), err.Error(), g.Image, "file")
			}
		}
		for ai, a := range g.Audio {
			if a.File == "" {
				continue
			}
			if err := checkFile(m.Path(a.File)); err != nil {
				add(fmt.Sprintf("groups[%d].audio[%d].file", gi, ai), err.Error(), a.File, "file")
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("file does not exist")
		}
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}
	return nil
}

// Document builds the play-time document. Group ids and audio ids are
// assigned sequentially from 1; sources stay manifest-relative.
func (m *Manifest) Document() *domain.ExerciseDocument {
	doc := &domain.ExerciseDocument{Title: m.Title, Groups: make([]domain.Group, 0, len(m.Groups))}
	audioID := 0
	for gi, g := range m.Groups {
		group := domain.Group{
			ID:              gi + 1,
			BackgroundImage: filepath.ToSlash(g.Image),
			AudioItems:      make([]domain.AudioItem, 0, len(g.Audio)),
		}
		for _, a := range g.Audio {
			audioID++
			name := a.Name
			if name == "" && a.File != "" {
				name = filepath.Base(a.File)
			}
			group.AudioItems = append(group.AudioItems, domain.AudioItem{
				ID:          audioID,
				Source:      filepath.ToSlash(a.File),
				DisplayName: name,
			})
		}
		doc.Groups = append(doc.Groups, group)
	}
	return doc
}
