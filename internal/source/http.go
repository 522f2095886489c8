// ABOUTME: HTTP stream source
// ABOUTME: Opens an HTTP(S) URL and hints the codec from Content-Type or the URL path
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/Resonate-Protocol/streamplay/internal/version"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/parse"
	log "github.com/sirupsen/logrus"
)

// OpenHTTP requests rawURL and returns its body as a stream. A nil client
// uses http.DefaultClient.
func OpenHTTP(ctx context.Context, rawURL string, client *http.Client) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	// Icecast servers interleave metadata unless told otherwise
	req.Header.Set("Icy-MetaData", "0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("request failed: %s", resp.Status)
	}

	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
		if name == "/" || name == "." {
			name = u.Host
		}
	}

	codec := parse.CodecForContentType(resp.Header.Get("Content-Type"))
	if codec == "" {
		codec = parse.CodecForName(name)
	}
	log.Debugf("Opened %s (content-type %q, codec %q)", rawURL, resp.Header.Get("Content-Type"), codec)

	return &Stream{ReadCloser: resp.Body, Name: name, Codec: codec}, nil
}
