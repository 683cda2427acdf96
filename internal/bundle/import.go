package bundle

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// Import errors.
var (
	ErrNoImportManifest      = errors.New("archive has no import.json")
	ErrInvalidImportManifest = errors.New("import.json is not valid")
)

const (
	defaultImportTitle = "Imported exercise"
	missingAudioName   = "Missing audio"
)

// Import unpacks an exported bundle at zipPath into destDir as an editable
// project: assets/ plus exercise.yaml. Entries are written by base name only.
func Import(zipPath, destDir string) (*Manifest, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[cleanEntry(f.Name)] = f
	}

	jf, ok := entries[ImportFile]
	if !ok {
		return nil, ErrNoImportManifest
	}
	raw, err := readEntry(jf)
	if err != nil {
		return nil, err
	}
	var doc domain.ExerciseDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportManifest, err)
	}

	assetDir := filepath.Join(destDir, AssetsDir)
	if err := os.MkdirAll(assetDir, 0755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = defaultImportTitle
	}
	m := NewManifest(destDir, title)

	for _, g := range doc.Groups {
		mg := ManifestGroup{}
		if g.HasBackground() {
			rel, err := extract(entries, g.BackgroundImage, assetDir)
			switch {
			case err == nil:
				mg.Image = rel
			case errors.Is(err, os.ErrNotExist):
				slog.Warn("image missing from archive", "group", g.ID, "file", g.BackgroundImage)
			default:
				return nil, err
			}
		}

		for _, a := range g.AudioItems {
			ma := ManifestAudio{Name: a.DisplayName}
			if !a.Missing() {
				rel, err := extract(entries, a.Source, assetDir)
				switch {
				case err == nil:
					ma.File = rel
				case errors.Is(err, os.ErrNotExist):
					slog.Warn("audio missing from archive", "audio", a.ID, "file", a.Source)
				default:
					return nil, err
				}
			}
			if ma.File == "" && ma.Name == "" {
				ma.Name = missingAudioName
			}
			mg.Audio = append(mg.Audio, ma)
		}
		m.Groups = append(m.Groups, mg)
	}

	if err := m.Save(filepath.Join(destDir, ManifestFile)); err != nil {
		return nil, err
	}
	slog.Info("exercise imported", "title", m.Title, "groups", len(m.Groups), "dir", destDir)
	return m, nil
}

func cleanEntry(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	return path.Clean(name)
}

// extract copies the archive entry ref into dir under its base name and
// returns the manifest-relative path.
func extract(entries map[string]*zip.File, ref, dir string) (string, error) {
	f, ok := entries[cleanEntry(ref)]
	if !ok {
		return "", fmt.Errorf("%s: %w", ref, os.ErrNotExist)
	}
	base := path.Base(cleanEntry(ref))
	if base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%s: %w", ref, os.ErrNotExist)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", ref, err)
	}
	defer rc.Close()

	out, err := os.Create(filepath.Join(dir, base))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", base, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return "", fmt.Errorf("extract %s: %w", ref, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", base, err)
	}
	return path.Join(AssetsDir, base), nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}
