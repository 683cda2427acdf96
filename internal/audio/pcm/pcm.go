// Package pcm decodes exercise clips into 16-bit PCM and encodes WAV. Clips
// are resolved from a bundle, a data URI or a URL.
package pcm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidWAV        = errors.New("invalid wav data")
)

// PCM is signed 16-bit little-endian interleaved audio.
type PCM struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Data) / (2 * p.Channels)
}

func (p *PCM) sample(frame, ch int) int16 {
	i := (frame*p.Channels + ch) * 2
	return int16(binary.LittleEndian.Uint16(p.Data[i:]))
}

// Convert returns p resampled to rate with the given channel count. Mono is
// duplicated to every channel; extra channels are averaged down. Resampling
// is linear.
func (p *PCM) Convert(rate, channels int) *PCM {
	if p.SampleRate == rate && p.Channels == channels {
		return p
	}
	in := p.Frames()
	if in == 0 || p.SampleRate == 0 {
		return &PCM{SampleRate: rate, Channels: channels}
	}
	out := int(int64(in) * int64(rate) / int64(p.SampleRate))
	buf := make([]byte, out*channels*2)
	step := float64(p.SampleRate) / float64(rate)

	for f := 0; f < out; f++ {
		pos := float64(f) * step
		i0 := int(pos)
		i1 := min(i0+1, in-1)
		frac := pos - float64(i0)
		for ch := 0; ch < channels; ch++ {
			v := mix(p, i0, ch, channels)*(1-frac) + mix(p, i1, ch, channels)*frac
			binary.LittleEndian.PutUint16(buf[(f*channels+ch)*2:], uint16(int16(math.Round(v))))
		}
	}
	return &PCM{SampleRate: rate, Channels: channels, Data: buf}
}

// mix reads channel ch of frame as seen by a layout with outChannels.
func mix(p *PCM, frame, ch, outChannels int) float64 {
	switch {
	case p.Channels == outChannels:
		return float64(p.sample(frame, ch))
	case p.Channels == 1:
		return float64(p.sample(frame, 0))
	default:
		sum := 0.0
		for c := 0; c < p.Channels; c++ {
			sum += float64(p.sample(frame, c))
		}
		return sum / float64(p.Channels)
	}
}

// Decode reads a WAV or MP3 stream. name is used as a format hint and may
// be empty; the header is sniffed otherwise.
func Decode(r io.Reader, name string) (*PCM, error) {
	br := bufio.NewReader(r)
	switch strings.ToLower(path.Ext(name)) {
	case ".wav", ".wave":
		return DecodeWAV(br)
	case ".mp3":
		return DecodeMP3(br)
	}

	head, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(head, []byte("RIFF")):
		return DecodeWAV(br)
	case bytes.HasPrefix(head, []byte("ID3")), len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return DecodeMP3(br)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (*PCM, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return &PCM{SampleRate: d.SampleRate(), Channels: 2, Data: data}, nil
}

// DecodeWAV decodes an uncompressed PCM WAV stream (8 or 16 bits).
func DecodeWAV(r io.Reader) (*PCM, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format        uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFmt       bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			if format != 1 {
				return nil, fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, format)
			}
			if channels == 0 || sampleRate == 0 {
				return nil, fmt.Errorf("%w: zero channels or sample rate", ErrInvalidWAV)
			}
			raw, err := io.ReadAll(io.LimitReader(r, int64(size)))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
			return pcmFromWAV(raw, int(sampleRate), int(channels), int(bitsPerSample))

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
		}
	}
}

func pcmFromWAV(raw []byte, rate, channels, bits int) (*PCM, error) {
	switch bits {
	case 16:
		raw = raw[:len(raw)-len(raw)%(2*channels)]
		return &PCM{SampleRate: rate, Channels: channels, Data: raw}, nil
	case 8:
		// 8-bit WAV is unsigned.
		out := make([]byte, len(raw)*2)
		for i, b := range raw {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(int(b)-128)<<8))
		}
		return &PCM{SampleRate: rate, Channels: channels, Data: out}, nil
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bits)
	}
}

// EncodeWAV writes p as a 16-bit PCM WAV file.
func EncodeWAV(w io.Writer, p *PCM) error {
	dataSize := uint32(len(p.Data))
	blockAlign := uint16(p.Channels * 2)
	fields := []any{
		[]byte("RIFF"),
		36 + dataSize,
		[]byte("WAVEfmt "),
		uint32(16),
		uint16(1),
		uint16(p.Channels),
		uint32(p.SampleRate),
		uint32(p.SampleRate) * uint32(blockAlign),
		blockAlign,
		uint16(16),
		[]byte("data"),
		dataSize,
		p.Data,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("encode wav: %w", err)
		}
	}
	return nil
}

// Tone synthesises a mono sine clip, used for placeholder audio.
func Tone(freq float64, seconds float64, rate int) *PCM {
	n := int(seconds * float64(rate))
	data := make([]byte, n*2)
	for i := 0; i < n; i++ {
		env := 1.0
		if fade := rate / 50; i > n-fade {
			env = float64(n-i) / float64(fade)
		}
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 12000 * env)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return &PCM{SampleRate: rate, Channels: 1, Data: data}
}
