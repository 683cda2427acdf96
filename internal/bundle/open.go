package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// ErrNoExerciseData is returned when a bundle has neither import.json nor
// exercise-data.js.
var ErrNoExerciseData = errors.New("no exercise data found")

// Bundle is an opened exercise: the document plus the file system its
// relative sources resolve against.
type Bundle struct {
	Document *domain.ExerciseDocument
	FS       fs.FS
	Path     string

	closer io.Closer
}

// Close releases the underlying archive, if any.
func (b *Bundle) Close() error {
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

// Open loads an exercise from an exported directory, an exported ZIP, a
// project directory holding exercise.yaml, or a manifest file.
func Open(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open exercise: %w", err)
	}

	if info.IsDir() {
		fsys := os.DirFS(path)
		doc, err := ReadDocument(fsys)
		if errors.Is(err, ErrNoExerciseData) {
			if _, serr := os.Stat(filepath.Join(path, ManifestFile)); serr == nil {
				return openManifest(filepath.Join(path, ManifestFile))
			}
		}
		if err != nil {
			return nil, err
		}
		return &Bundle{Document: doc, FS: fsys, Path: path}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return openManifest(path)
	case ".zip":
		return openZip(path)
	default:
		return nil, fmt.Errorf("open exercise: unsupported file %s", filepath.Base(path))
	}
}

func openManifest(path string) (*Bundle, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return &Bundle{Document: m.Document(), FS: os.DirFS(m.Dir()), Path: path}, nil
}

func openZip(path string) (*Bundle, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	var fsys fs.FS = &zr.Reader
	if root := archiveRoot(&zr.Reader); root != "" {
		sub, err := fs.Sub(fsys, root)
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		fsys = sub
	}
	doc, err := ReadDocument(fsys)
	if err != nil {
		zr.Close()
		return nil, err
	}
	return &Bundle{Document: doc, FS: fsys, Path: path, closer: zr}, nil
}

// archiveRoot finds the folder holding the exercise data when a bundle was
// zipped with a top-level directory.
func archiveRoot(zr *zip.Reader) string {
	for _, f := range zr.File {
		name := cleanEntry(f.Name)
		if name == ImportFile || name == DataFile {
			return ""
		}
	}
	for _, f := range zr.File {
		name := cleanEntry(f.Name)
		dir, base := filepath.ToSlash(filepath.Dir(name)), filepath.Base(name)
		if (base == ImportFile || base == DataFile) && !strings.Contains(dir, "/") && dir != "." {
			return dir
		}
	}
	return ""
}

// ReadDocument reads import.json from fsys, falling back to the document
// embedded in exercise-data.js.
func ReadDocument(fsys fs.FS) (*domain.ExerciseDocument, error) {
	if data, err := fs.ReadFile(fsys, ImportFile); err == nil {
		return decodeDocument(data, ImportFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", ImportFile, err)
	}

	data, err := fs.ReadFile(fsys, DataFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoExerciseData
		}
		return nil, fmt.Errorf("read %s: %w", DataFile, err)
	}
	body, err := DecodeDataJS(data)
	if err != nil {
		return nil, err
	}
	return decodeDocument(body, DataFile)
}

// DecodeDataJS extracts the JSON literal from an exercise-data.js script.
func DecodeDataJS(script []byte) ([]byte, error) {
	const marker = "EXERCISE_DATA"
	i := bytes.Index(script, []byte(marker))
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", DataFile, ErrNoExerciseData)
	}
	rest := script[i+len(marker):]
	eq := bytes.IndexByte(rest, '=')
	if eq < 0 {
		return nil, fmt.Errorf("%s: missing assignment", DataFile)
	}
	rest = bytes.TrimSpace(rest[eq+1:])
	rest = bytes.TrimSpace(bytes.TrimSuffix(rest, []byte(";")))
	return rest, nil
}

func decodeDocument(data []byte, name string) (*domain.ExerciseDocument, error) {
	var doc domain.ExerciseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &doc, nil
}
