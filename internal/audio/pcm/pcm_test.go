package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// writeTestWAV builds a 10ms mono sine at 44.1kHz with the given bit depth.
func writeTestWAV(t *testing.T, bits int) []byte {
	t.Helper()
	const sampleRate = 44100
	samples := sampleRate / 100

	var data bytes.Buffer
	for i := 0; i < samples; i++ {
		v := math.Sin(2 * math.Pi * float64(i) / float64(samples))
		switch bits {
		case 16:
			_ = binary.Write(&data, binary.LittleEndian, int16(v*30000))
		case 8:
			data.WriteByte(byte(128 + int(v*100)))
		}
	}

	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	blockAlign := uint16(bits / 8)
	buf.WriteString("RIFF")
	w(uint32(36 + 12 + data.Len()))
	buf.WriteString("WAVE")
	// An unknown chunk before fmt must be skipped.
	buf.WriteString("LIST")
	w(uint32(4))
	buf.WriteString("INFO")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(1)) // mono
	w(uint32(sampleRate))
	w(uint32(sampleRate) * uint32(blockAlign))
	w(blockAlign)
	w(uint16(bits))
	buf.WriteString("data")
	w(uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	tests := []struct {
		name string
		bits int
	}{
		{"16-bit", 16},
		{"8-bit", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm, err := DecodeWAV(bytes.NewReader(writeTestWAV(t, tt.bits)))
			if err != nil {
				t.Fatalf("DecodeWAV() error = %v", err)
			}
			if pcm.SampleRate != 44100 || pcm.Channels != 1 {
				t.Errorf("format = %d Hz %d ch; want 44100 Hz 1 ch", pcm.SampleRate, pcm.Channels)
			}
			if pcm.Frames() != 441 {
				t.Errorf("Frames() = %d; want 441", pcm.Frames())
			}
			// Quarter period is the positive peak.
			if peak := pcm.sample(110, 0); peak < 20000 {
				t.Errorf("peak sample = %d; want a loud positive value", peak)
			}
		})
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidWAV},
		{"not riff", []byte("OggS0000000000000000"), ErrInvalidWAV},
		{"no data chunk", []byte("RIFF\x04\x00\x00\x00WAVE"), ErrInvalidWAV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeWAV() error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeWAV_Decodes(t *testing.T) {
	tone := Tone(440, 0.05, 22050)

	var buf bytes.Buffer
	if err := EncodeWAV(&buf, tone); err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	got, err := Decode(&buf, "")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.SampleRate != 22050 || !bytes.Equal(got.Data, tone.Data) {
		t.Errorf("decoded %d Hz, %d bytes; want 22050 Hz, %d bytes", got.SampleRate, len(got.Data), len(tone.Data))
	}
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("OggS........")), "clip.ogg")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Decode() error = %v; want ErrUnsupportedFormat", err)
	}
}

func TestPCM_Convert(t *testing.T) {
	mono := Tone(440, 0.1, 22050)

	stereo := mono.Convert(44100, 2)
	if stereo.Channels != 2 || stereo.SampleRate != 44100 {
		t.Fatalf("Convert() = %d Hz %d ch", stereo.SampleRate, stereo.Channels)
	}
	if want := mono.Frames() * 2; stereo.Frames() != want {
		t.Errorf("Frames() = %d; want %d", stereo.Frames(), want)
	}
	for f := 0; f < stereo.Frames(); f += 97 {
		if l, r := stereo.sample(f, 0), stereo.sample(f, 1); l != r {
			t.Fatalf("frame %d: left %d != right %d", f, l, r)
		}
	}
	// Even output frames land exactly on input frames.
	if got, want := stereo.sample(20, 0), mono.sample(10, 0); got != want {
		t.Errorf("sample(20) = %d; want %d", got, want)
	}

	if same := stereo.Convert(44100, 2); same != stereo {
		t.Error("Convert() to the same format should return the receiver")
	}

	down := stereo.Convert(44100, 1)
	if down.sample(20, 0) != stereo.sample(20, 0) {
		t.Error("downmix of identical channels should keep the sample")
	}
}
