package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Normalizer downscales images and re-encodes them as WebP before upload.
type Normalizer struct {
	MaxWidth  int
	MaxHeight int
	Quality   float32
}

// NewNormalizer applies defaults to zero limits.
func NewNormalizer(maxWidth, maxHeight int, quality float32) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = 1600
	}
	if maxHeight <= 0 {
		maxHeight = 1600
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Normalizer{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality}
}

// Check reads the image header without decoding the pixels.
func (n *Normalizer) Check(p *Payload) error {
	var err error
	if p.Subtype == "webp" || isWebP(p.Data) {
		_, err = webp.DecodeConfig(bytes.NewReader(p.Data))
	} else {
		_, _, err = image.DecodeConfig(bytes.NewReader(p.Data))
	}
	if err != nil {
		return fmt.Errorf("decode %s header: %w", p.Subtype, err)
	}
	return nil
}

// Normalize returns a WebP payload no larger than the configured bounds.
func (n *Normalizer) Normalize(p *Payload) (*Payload, error) {
	img, err := decode(p)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() > n.MaxWidth || bounds.Dy() > n.MaxHeight {
		img = imaging.Fit(img, n.MaxWidth, n.MaxHeight, imaging.Lanczos)
	}
	buf := &bytes.Buffer{}
	if err := webp.Encode(buf, img, &webp.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return &Payload{Subtype: "webp", Data: buf.Bytes()}, nil
}

// Printable converts image bytes into a form gofpdf can embed (JPG or PNG).
func Printable(data []byte) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		switch format {
		case "jpeg":
			return data, "JPG", nil
		case "png":
			return data, "PNG", nil
		}
	}
	img, err := decode(&Payload{Data: data})
	if err != nil {
		return nil, "", err
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "PNG", nil
}

func decode(p *Payload) (image.Image, error) {
	if p.Subtype == "webp" || isWebP(p.Data) {
		img, err := webp.Decode(bytes.NewReader(p.Data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(p.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
