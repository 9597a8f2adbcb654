package evaluation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	minJustificationLength = 5
	// MaxImageBytes caps the decoded size of an image justification.
	MaxImageBytes = 5 << 20
)

// ErrInvalidImage is returned when an image justification is not a supported base64 image.
var ErrInvalidImage = errors.New("invalid image justification")

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// GenerateErrorID returns a collision free identifier for a new error.
func GenerateErrorID() string {
	return "err-" + uuid.NewString()
}

// IsValidJustification reports whether a textual justification is long enough to be judged.
func IsValidJustification(justification string) bool {
	return len(strings.TrimSpace(justification)) >= minJustificationLength
}

// DecodeImage decodes a base64 image justification, either bare or as a data URL, and
// detects its content type from the decoded bytes.
func DecodeImage(encoded string) ([]byte, string, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, "", fmt.Errorf("%w: malformed data url", ErrInvalidImage)
		}
		payload = payload[idx+1:]
	}
	if payload == "" {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(raw) > MaxImageBytes {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, MaxImageBytes)
	}

	detected := mimetype.Detect(raw)
	if !mimetype.EqualsAny(detected.String(), allowedImageTypes...) {
		return nil, "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, detected.String())
	}
	return raw, detected.String(), nil
}

// ImageDataURL normalises an image justification into a data URL with its detected type.
func ImageDataURL(encoded string) (string, error) {
	raw, mime, err := DecodeImage(encoded)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
