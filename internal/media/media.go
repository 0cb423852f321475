// Package media recompresses inline data URI images before they are sent
// to the submission endpoint.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// MaxDimension bounds both width and height of a recompressed image.
	MaxDimension = 1200
	// JPEGQuality is the output quality for recompressed images.
	JPEGQuality = 70
	// DefaultThreshold is the data URI length above which images are
	// recompressed.
	DefaultThreshold = 50000
)

// =============================================================================
// Interface Definition
// =============================================================================

// Recompressor shrinks inline images.
type Recompressor interface {
	// Recompress returns a smaller JPEG data URI for v. Values that are not
	// image data URIs, or are at or below the threshold, are returned as is.
	Recompress(v string) (string, error)
}

// =============================================================================
// Implementation
// =============================================================================

type imagingRecompressor struct {
	threshold int
}

// NewRecompressor creates a Recompressor for data URIs longer than threshold.
// A threshold of 0 selects DefaultThreshold.
func NewRecompressor(threshold int) Recompressor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &imagingRecompressor{threshold: threshold}
}

func (r *imagingRecompressor) Recompress(v string) (string, error) {
	if len(v) <= r.threshold || !strings.HasPrefix(v, "data:image/") {
		return v, nil
	}

	payload, err := decodeDataURI(v)
	if err != nil {
		return v, err
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return v, fmt.Errorf("failed to decode image: %w", err)
	}

	// Fit never enlarges; skip the resize entirely for small images.
	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return v, fmt.Errorf("failed to encode image: %w", err)
	}

	out := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(out) >= len(v) {
		return v, nil
	}
	return out, nil
}

func decodeDataURI(v string) ([]byte, error) {
	header, data, ok := strings.Cut(v, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data URI")
	}
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return payload, nil
}

// =============================================================================
// Payload Helpers
// =============================================================================

// RecompressPayload walks a submission payload and replaces oversized image
// data URIs. Top-level keys are replaced in place; nested maps and slices
// are copied before they change so values shared with other owners are
// never modified. Failures keep the original value and are logged.
// It returns the number of top-level values replaced.
func RecompressPayload(r Recompressor, payload map[string]any, logger *slog.Logger) int {
	var n int
	for k, v := range payload {
		next, changed := recompressValue(r, k, v, logger)
		if changed {
			payload[k] = next
			n++
		}
	}
	return n
}

func recompressValue(r Recompressor, key string, v any, logger *slog.Logger) (any, bool) {
	switch t := v.(type) {
	case string:
		out, err := r.Recompress(t)
		if err != nil {
			logger.Warn("image recompression failed, sending original", "key", key, "error", err)
			return v, false
		}
		return out, out != t
	case map[string]any:
		var out map[string]any
		for k, item := range t {
			next, ok := recompressValue(r, k, item, logger)
			if !ok {
				continue
			}
			if out == nil {
				out = maps.Clone(t)
			}
			out[k] = next
		}
		if out == nil {
			return v, false
		}
		return out, true
	case []any:
		var out []any
		for i, item := range t {
			next, ok := recompressValue(r, key, item, logger)
			if !ok {
				continue
			}
			if out == nil {
				out = slices.Clone(t)
			}
			out[i] = next
		}
		if out == nil {
			return v, false
		}
		return out, true
	}
	return v, false
}
