package readers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// PNGDataURLPrefix is prepended to bare base64 grid images.
const PNGDataURLPrefix = "data:image/png;base64,"

// NormalizeGridImage turns a grid response body into a data URL. The body
// may be a JSON string or an object with "image_base64". Values that already
// start with "data:" are returned unchanged; absent values yield "".
func NormalizeGridImage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var obj struct {
			ImageBase64 *string `json:"image_base64"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil || obj.ImageBase64 == nil {
			return ""
		}
		s = *obj.ImageBase64
	}
	return ToDataURL(s)
}

// ToDataURL prefixes a bare base64 PNG. It never double-prefixes.
func ToDataURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "data:") {
		return s
	}
	return PNGDataURLPrefix + s
}

// ErrNotPNGDataURL is returned by DecodeDataURL for anything but a base64
// PNG data URL.
var ErrNotPNGDataURL = errors.New("not a base64 PNG data URL")

// DecodeDataURL returns the PNG bytes of a data URL built by ToDataURL.
func DecodeDataURL(s string) ([]byte, error) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(s), PNGDataURLPrefix)
	if !ok || payload == "" {
		return nil, ErrNotPNGDataURL
	}
	return base64.StdEncoding.DecodeString(payload)
}
