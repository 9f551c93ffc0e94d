package assets

import (
	"encoding/base64"
	"errors"
	"strings"
)

const dataURIPrefix = "data:image/"

// ErrInvalidPayload marks embedded images rejected before anything is stored.
var ErrInvalidPayload = errors.New("invalid embedded image")

// Raster formats accepted for upload. Anything else, SVG included, is refused
// because stored objects are served from the API origin.
var supportedSubtypes = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// Supported reports whether the payload is one of the accepted raster formats.
func (p *Payload) Supported() bool {
	_, ok := supportedSubtypes[p.Subtype]
	return ok
}

// Payload is a decoded embedded image.
type Payload struct {
	Subtype string
	Data    []byte
}

// MIME returns the payload content type.
func (p *Payload) MIME() string {
	return "image/" + p.Subtype
}

// Ext returns the file extension used for object keys.
func (p *Payload) Ext() string {
	if ext, ok := supportedSubtypes[p.Subtype]; ok {
		return ext
	}
	return ".bin"
}

// IsEmbedded reports whether raw claims to be a base64 image data URI.
func IsEmbedded(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), dataURIPrefix)
}

// ParseDataURI decodes data:image/<subtype>;base64,<data>. Any other input,
// including empty strings and plain URLs, yields ok=false.
func ParseDataURI(raw string) (*Payload, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, dataURIPrefix) {
		return nil, false
	}
	header, body, found := strings.Cut(raw, ",")
	if !found {
		return nil, false
	}
	meta := strings.TrimPrefix(header, dataURIPrefix)
	subtype, params, found := strings.Cut(meta, ";")
	if !found || subtype == "" {
		return nil, false
	}
	isBase64 := false
	for _, param := range strings.Split(params, ";") {
		if strings.EqualFold(strings.TrimSpace(param), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if err != nil {
			return nil, false
		}
	}
	if len(data) == 0 {
		return nil, false
	}
	subtype = strings.ToLower(subtype)
	switch subtype {
	case "jpg", "pjpeg":
		subtype = "jpeg"
	}
	return &Payload{Subtype: subtype, Data: data}, true
}
