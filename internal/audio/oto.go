//go:build !js

// Package audio plays decoded exercise clips on the desktop through oto.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/felixgeelhaar/listenex/internal/audio/pcm"
	"github.com/felixgeelhaar/listenex/internal/engine"
)

const (
	DefaultSampleRate = 44100
	outputChannels    = 2
	pollInterval      = 50 * time.Millisecond
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func sharedContext(sampleRate int) (*oto.Context, int, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: outputChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if otoErr != nil {
			return
		}
		<-ready
		otoRate = sampleRate
	})
	return otoCtx, otoRate, otoErr
}

var _ engine.Player = (*OtoPlayer)(nil)

// OtoPlayer plays decoded clips on the default output device.
type OtoPlayer struct {
	resolver *pcm.Resolver
	ctx      *oto.Context
	rate     int

	mu      sync.Mutex
	current *oto.Player
	paused  bool
	volume  float64
	gen     uint64
	cache   map[string]*pcm.PCM
}

// NewOtoPlayer opens the audio device. The sample rate of the first call
// wins for the lifetime of the process.
func NewOtoPlayer(resolver *pcm.Resolver, sampleRate int) (*OtoPlayer, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	ctx, rate, err := sharedContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	return &OtoPlayer{
		resolver: resolver,
		ctx:      ctx,
		rate:     rate,
		volume:   engine.DefaultVolume,
		cache:    make(map[string]*pcm.PCM),
	}, nil
}

// Play decodes source and starts it. It blocks while the clip loads; onEnded
// fires from a monitor goroutine when the clip finishes on its own.
func (p *OtoPlayer) Play(ctx context.Context, source string, onEnded func()) error {
	clip, err := p.load(ctx, source)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.stopLocked()
	p.gen++
	gen := p.gen
	player := p.ctx.NewPlayer(bytes.NewReader(clip.Data))
	player.SetVolume(p.volume)
	player.Play()
	p.current = player
	p.paused = false
	p.mu.Unlock()

	go p.monitor(gen, player, onEnded)
	return nil
}

func (p *OtoPlayer) load(ctx context.Context, source string) (*pcm.PCM, error) {
	p.mu.Lock()
	clip, ok := p.cache[source]
	p.mu.Unlock()
	if ok {
		return clip, nil
	}

	decoded, err := p.resolver.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	clip = decoded.Convert(p.rate, outputChannels)

	p.mu.Lock()
	p.cache[source] = clip
	p.mu.Unlock()
	return clip, nil
}

func (p *OtoPlayer) monitor(gen uint64, player *oto.Player, onEnded func()) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		if gen != p.gen {
			p.mu.Unlock()
			return
		}
		if p.paused || player.IsPlaying() {
			p.mu.Unlock()
			continue
		}
		if err := player.Err(); err != nil {
			slog.Warn("audio output error", "error", err)
		}
		p.current = nil
		p.gen++
		p.mu.Unlock()

		_ = player.Close()
		if onEnded != nil {
			onEnded()
		}
		return
	}
}

// Pause holds the current clip in place.
func (p *OtoPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Pause()
		p.paused = true
	}
	return nil
}

// Resume continues a paused clip.
func (p *OtoPlayer) Resume(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return fmt.Errorf("resume: nothing to resume")
	}
	p.current.Play()
	p.paused = false
	return nil
}

// Stop halts the current clip. Its onEnded never fires.
func (p *OtoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *OtoPlayer) stopLocked() {
	p.gen++
	if p.current == nil {
		return
	}
	p.current.Pause()
	if err := p.current.Close(); err != nil {
		slog.Debug("audio player close failed", "error", err)
	}
	p.current = nil
	p.paused = false
}

// SetVolume applies v to the current and future clips.
func (p *OtoPlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.current != nil {
		p.current.SetVolume(v)
	}
}

// Close stops playback and drops decoded clips. The device stays open for
// the process.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.cache = make(map[string]*pcm.PCM)
	return nil
}
