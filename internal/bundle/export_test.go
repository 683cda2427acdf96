package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = b
	}
	return out
}

func TestExport(t *testing.T) {
	m, err := LoadManifest(writeProject(t, t.TempDir(), farmManifest))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	doc, err := Export(context.Background(), m, &buf, ExportOptions{Now: fixedNow, NoEngine: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	entries := readZip(t, buf.Bytes())
	for _, name := range []string{
		IndexFile, StylesFile, DataFile, ImportFile,
		"assets/image_0.png", "assets/image_1.jpg",
		"assets/audio_0.wav", "assets/audio_1.wav", "assets/audio_2.mp3",
	} {
		if _, ok := entries[name]; !ok {
			t.Errorf("archive is missing %s", name)
		}
	}
	if _, ok := entries[EngineFile]; ok {
		t.Errorf("archive should not contain %s with NoEngine", EngineFile)
	}
	if len(entries) != 9 {
		t.Errorf("archive has %d entries; want 9", len(entries))
	}
	if got := string(entries["assets/image_0.png"]); got != "\x89PNG fake" {
		t.Errorf("image_0 content = %q", got)
	}

	var written domain.ExerciseDocument
	if err := json.Unmarshal(entries[ImportFile], &written); err != nil {
		t.Fatalf("import.json: %v", err)
	}
	if written.GeneratedAt == nil || !written.GeneratedAt.Equal(fixedNow()) {
		t.Errorf("generatedAt = %v; want %v", written.GeneratedAt, fixedNow())
	}
	if !bytes.Contains(entries[ImportFile], []byte("\n  \"title\"")) {
		t.Error("import.json should be indented")
	}
	sky := written.Groups[1]
	if len(sky.AudioItems) != 1 || sky.AudioItems[0].ID != 4 || sky.AudioItems[0].Source != "assets/audio_2.mp3" {
		t.Errorf("sky audio = %+v; want only id 4 at assets/audio_2.mp3", sky.AudioItems)
	}
	if doc.TotalItems() != 3 {
		t.Errorf("TotalItems() = %d; want 3", doc.TotalItems())
	}

	js := entries[DataFile]
	if !bytes.HasPrefix(js, []byte("//")) || !bytes.Contains(js, []byte("const EXERCISE_DATA = {")) {
		t.Errorf("exercise-data.js = %q", js)
	}
	body, err := DecodeDataJS(js)
	if err != nil {
		t.Fatalf("DecodeDataJS() error = %v", err)
	}
	if !bytes.Equal(body, bytes.TrimSpace(entries[ImportFile])) {
		t.Error("exercise-data.js and import.json should carry the same document")
	}
	if !strings.Contains(string(entries[IndexFile]), "listenex:ready") {
		t.Error("index.html should wait for the engine handshake")
	}
}

func TestExport_InvalidManifest(t *testing.T) {
	m := NewManifest(t.TempDir(), "empty")
	var buf bytes.Buffer
	_, err := Export(context.Background(), m, &buf, ExportOptions{NoEngine: true})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("Export() error = %v; want ErrInvalidDocument", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for an invalid manifest")
	}
}

func TestExport_EngineDir(t *testing.T) {
	m, err := LoadManifest(writeProject(t, t.TempDir(), farmManifest))
	if err != nil {
		t.Fatal(err)
	}
	engineDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(engineDir, EngineFile), []byte("\x00asm"), 0644); err != nil {
		t.Fatal(err)
	}

	// No engine directory and no opt-out.
	_, err = Export(context.Background(), m, io.Discard, ExportOptions{})
	if !errors.Is(err, ErrEngineMissing) {
		t.Fatalf("Export() without engine dir error = %v; want ErrEngineMissing", err)
	}

	_, err = Export(context.Background(), m, io.Discard, ExportOptions{EngineDir: engineDir})
	if !errors.Is(err, ErrEngineMissing) {
		t.Fatalf("Export() error = %v; want ErrEngineMissing", err)
	}

	if err := os.WriteFile(filepath.Join(engineDir, WasmExecFile), []byte("// go"), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := Export(context.Background(), m, &buf, ExportOptions{EngineDir: engineDir}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	entries := readZip(t, buf.Bytes())
	if string(entries[EngineFile]) != "\x00asm" || string(entries[WasmExecFile]) != "// go" {
		t.Error("engine files were not copied")
	}
}

func TestExport_Canceled(t *testing.T) {
	m, err := LoadManifest(writeProject(t, t.TempDir(), farmManifest))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Export(ctx, m, io.Discard, ExportOptions{NoEngine: true}); !errors.Is(err, context.Canceled) {
		t.Errorf("Export() error = %v; want context.Canceled", err)
	}
}

func TestExportFile_RemovesOnError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.zip")
	if _, err := ExportFile(context.Background(), NewManifest(t.TempDir(), ""), dest, ExportOptions{NoEngine: true}); err == nil {
		t.Fatal("ExportFile() should fail")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial archive should be removed")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Farm & Sky!", "farm---sky-"},
		{"Lesson 1", "lesson-1"},
		{"ÄÖÜ", "---"},
		{"", "untitled-exercise"},
		{"   ", "untitled-exercise"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.title); got != tt.want {
			t.Errorf("Sanitize(%q) = %q; want %q", tt.title, got, tt.want)
		}
	}
	if got := ArchiveName("Lesson 1"); got != "lesson-1.zip" {
		t.Errorf("ArchiveName() = %q; want lesson-1.zip", got)
	}
}
