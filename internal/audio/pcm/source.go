package pcm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var ErrSourceNotFound = errors.New("audio source not found")

// Resolver opens clip sources: paths inside a bundle filesystem, data URIs
// and http(s) URLs.
type Resolver struct {
	FS     fs.FS
	Client *http.Client
}

// NewResolver creates a resolver over bundle. bundle may be nil when only
// data URIs and URLs are expected.
func NewResolver(bundle fs.FS) *Resolver {
	return &Resolver{
		FS:     bundle,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Open returns the raw clip bytes and a name usable as a format hint.
func (r *Resolver) Open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, "", ErrSourceNotFound
	case strings.HasPrefix(source, "data:"):
		data, mediaType, err := DecodeDataURI(source)
		if err != nil {
			return nil, "", err
		}
		return io.NopCloser(bytes.NewReader(data)), hintFromMediaType(mediaType), nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return r.fetch(ctx, source)
	default:
		if r.FS == nil {
			return nil, "", fmt.Errorf("%w: %s (no bundle)", ErrSourceNotFound, source)
		}
		name := strings.TrimPrefix(path.Clean("/"+source), "/")
		f, err := r.FS.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, "", fmt.Errorf("%w: %s", ErrSourceNotFound, source)
			}
			return nil, "", fmt.Errorf("open %s: %w", source, err)
		}
		return f, name, nil
	}
}

// Load opens and decodes source.
func (r *Resolver) Load(ctx context.Context, source string) (*PCM, error) {
	rc, hint, err := r.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Decode(rc, hint)
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, "", fmt.Errorf("%w: %s", ErrSourceNotFound, rawURL)
		}
		return nil, "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	hint := ""
	if u, err := url.Parse(rawURL); err == nil {
		hint = path.Base(u.Path)
	}
	if path.Ext(hint) == "" {
		hint = hintFromMediaType(resp.Header.Get("Content-Type"))
	}
	return resp.Body, hint, nil
}

// DecodeDataURI decodes a data: URI and returns its payload and media type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data uri", ErrUnsupportedFormat)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data uri without payload", ErrUnsupportedFormat)
	}

	isBase64 := false
	mediaType := "text/plain"
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			mediaType = part
		case part == "base64":
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data uri: %w", err)
		}
		return data, mediaType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	return []byte(text), mediaType, nil
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func hintFromMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return "clip.wav"
	case "audio/mpeg", "audio/mp3":
		return "clip.mp3"
	}
	return ""
}
