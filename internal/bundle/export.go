package bundle

import (
	"archive/zip"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

//go:embed templates/*
var templates embed.FS

// Bundle entry names.
const (
	IndexFile        = "index.html"
	StylesFile       = "styles.css"
	DataFile         = "exercise-data.js"
	ImportFile       = "import.json"
	EngineFile       = "engine.wasm"
	WasmExecFile     = "wasm_exec.js"
	AssetsDir        = "assets"
	untitledArchive  = "untitled-exercise"
	dataFilePreamble = "// Generated by listenex. Do not edit.\n"
)

// ErrEngineMissing is returned when an engine directory lacks the wasm files.
var ErrEngineMissing = errors.New("engine files missing")

// ExportOptions tune Export.
type ExportOptions struct {
	// EngineDir holds engine.wasm and wasm_exec.js. It is required unless
	// NoEngine is set.
	EngineDir string
	// NoEngine exports the page, data and assets only. The bundle will not
	// play until the engine files are added.
	NoEngine bool
	// Now stamps generatedAt; defaults to time.Now.
	Now func() time.Time
}

// Export validates m and writes the bundle ZIP to w. It returns the
// document as written to import.json.
func Export(ctx context.Context, m *Manifest, w io.Writer, opts ExportOptions) (*domain.ExerciseDocument, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if opts.EngineDir == "" && !opts.NoEngine {
		return nil, fmt.Errorf("%w: no engine directory configured", ErrEngineMissing)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	zw := zip.NewWriter(w)
	doc, err := writeAssets(ctx, zw, m)
	if err != nil {
		return nil, err
	}
	generated := now().UTC()
	doc.GeneratedAt = &generated

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal exercise data: %w", err)
	}
	if err := writeEntry(zw, ImportFile, data); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, DataFile, EncodeDataJS(data)); err != nil {
		return nil, err
	}

	for _, name := range []string{IndexFile, StylesFile} {
		tpl, err := templates.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		if err := writeEntry(zw, name, tpl); err != nil {
			return nil, err
		}
	}

	if !opts.NoEngine {
		for _, name := range []string{EngineFile, WasmExecFile} {
			if err := copyFile(zw, name, filepath.Join(opts.EngineDir, name)); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("%w: %s in %s", ErrEngineMissing, name, opts.EngineDir)
				}
				return nil, err
			}
		}
	} else {
		slog.Warn("exporting without engine files")
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	slog.Info("exercise exported", "title", doc.Title, "groups", len(doc.Groups), "items", doc.TotalItems())
	return doc, nil
}

// writeAssets copies images and clips under assets/ with counters that run
// across the whole exercise, and returns the document referencing them.
func writeAssets(ctx context.Context, zw *zip.Writer, m *Manifest) (*domain.ExerciseDocument, error) {
	src := m.Document()
	doc := &domain.ExerciseDocument{Title: src.Title, Groups: make([]domain.Group, 0, len(src.Groups))}
	imageN, audioN := 0, 0

	for _, g := range src.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := domain.Group{ID: g.ID, AudioItems: make([]domain.AudioItem, 0, len(g.AudioItems))}

		if g.HasBackground() {
			name := path.Join(AssetsDir, fmt.Sprintf("image_%d%s", imageN, extOf(g.BackgroundImage)))
			imageN++
			if err := copyFile(zw, name, m.Path(g.BackgroundImage)); err != nil {
				return nil, err
			}
			out.BackgroundImage = name
		}

		for _, a := range g.AudioItems {
			if a.Missing() {
				continue
			}
			name := path.Join(AssetsDir, fmt.Sprintf("audio_%d%s", audioN, extOf(a.Source)))
			audioN++
			if err := copyFile(zw, name, m.Path(a.Source)); err != nil {
				return nil, err
			}
			out.AudioItems = append(out.AudioItems, domain.AudioItem{
				ID:          a.ID,
				Source:      name,
				DisplayName: a.DisplayName,
			})
		}
		doc.Groups = append(doc.Groups, out)
	}
	return doc, nil
}

func extOf(name string) string {
	return strings.ToLower(path.Ext(filepath.ToSlash(name)))
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func copyFile(zw *zip.Writer, name, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

// EncodeDataJS wraps document JSON as the exercise-data.js script.
func EncodeDataJS(docJSON []byte) []byte {
	var b strings.Builder
	b.WriteString(dataFilePreamble)
	b.WriteString("const EXERCISE_DATA = ")
	b.Write(docJSON)
	b.WriteString(";\n")
	return []byte(b.String())
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Sanitize maps a title to a file-name stem: every non-alphanumeric becomes
// a dash and the result is lower-cased.
func Sanitize(title string) string {
	if strings.TrimSpace(title) == "" {
		return untitledArchive
	}
	return strings.ToLower(unsafeName.ReplaceAllString(title, "-"))
}

// ArchiveName returns the default ZIP name for a title.
func ArchiveName(title string) string {
	return Sanitize(title) + ".zip"
}

// ExportFile exports m into a new file at dest.
func ExportFile(ctx context.Context, m *Manifest, dest string, opts ExportOptions) (*domain.ExerciseDocument, error) {
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	doc, err := Export(ctx, m, f, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close archive: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(dest)
		return nil, err
	}
	return doc, nil
}
