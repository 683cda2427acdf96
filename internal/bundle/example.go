package bundle

import (
	"bytes"
	"fmt"

	"github.com/felixgeelhaar/listenex/internal/audio/pcm"
	"github.com/felixgeelhaar/listenex/internal/domain"
)

// Default mock dimensions.
const (
	DefaultExampleGroups   = 3
	DefaultExamplePerGroup = 2
)

// Example builds a self-contained mock exercise. Every group gets perGroup
// short tones as data URIs, pitched per group so they can be told apart.
// Non-positive sizes fall back to the defaults.
func Example(groups, perGroup int) *domain.ExerciseDocument {
	if groups <= 0 {
		groups = DefaultExampleGroups
	}
	if perGroup <= 0 {
		perGroup = DefaultExamplePerGroup
	}

	doc := &domain.ExerciseDocument{
		Title:  "Example listening exercise",
		Groups: make([]domain.Group, 0, groups),
	}
	for g := 0; g < groups; g++ {
		src := toneURI(220 * float64(g+1))
		group := domain.Group{ID: g + 1, AudioItems: make([]domain.AudioItem, 0, perGroup)}
		for a := 0; a < perGroup; a++ {
			group.AudioItems = append(group.AudioItems, domain.AudioItem{
				ID:          g*perGroup + a + 1,
				Source:      src,
				DisplayName: fmt.Sprintf("Sound %s%d", groupLetter(g), a+1),
			})
		}
		doc.Groups = append(doc.Groups, group)
	}
	return doc
}

// groupLetter maps 0 to A, 25 to Z, 26 to AA.
func groupLetter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('A'+i%26)) + s
		i = i/26 - 1
	}
	return s
}

func toneURI(freq float64) string {
	var buf bytes.Buffer
	// Encoding into a buffer cannot fail.
	_ = pcm.EncodeWAV(&buf, pcm.Tone(freq, 0.4, 8000))
	return pcm.EncodeDataURI("audio/wav", buf.Bytes())
}
