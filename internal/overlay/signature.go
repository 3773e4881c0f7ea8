package overlay

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// Signature is a decoded signature payload normalized to PNG
type Signature struct {
	PNG    []byte
	Width  int
	Height int
}

var errEmptyPayload = errors.New("empty signature payload")

// DecodeSignature accepts a data URL ("data:image/png;base64,...") or bare
// base64 and returns the image re-encoded as PNG. EXIF orientation is applied
// so photographed signatures land upright.
func DecodeSignature(payload string) (*Signature, error) {
	raw, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	b := img.Bounds()
	return &Signature{PNG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

func decodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errEmptyPayload
	}

	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, errors.New("malformed data url")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("unsupported data url encoding %q", meta)
		}
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// canvas exports are sometimes unpadded or url-safe
		if raw, err2 := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "=")); err2 == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}
