package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/listenex/internal/audio/pcm"
)

// writeProject lays out a small authoring project in dir and returns its
// manifest path.
func writeProject(t *testing.T, dir, manifest string) string {
	t.Helper()
	var wav bytes.Buffer
	if err := pcm.EncodeWAV(&wav, pcm.Tone(440, 0.01, 8000)); err != nil {
		t.Fatal(err)
	}
	files := map[string][]byte{
		"clips/dog.wav":  wav.Bytes(),
		"clips/cat.WAV":  wav.Bytes(),
		"clips/bird.mp3": []byte("ID3 not really"),
		"img/farm.png":   []byte("\x89PNG fake"),
		"img/sky.jpg":    []byte("jpeg fake"),
	}
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const farmManifest = `title: "Farm & Sky!"
groups:
  - image: img/farm.png
    audio:
      - file: clips/dog.wav
        name: Dog
      - file: clips/cat.WAV
  - image: img/sky.jpg
    audio:
      - name: Placeholder
      - file: clips/bird.mp3
        name: Bird
`
