package service

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const defaultImageMIME = "image/png"

// splitDataURL separates a base64 data URL into its MIME type and payload
// without decoding it. A missing MIME type defaults to image/png.
func splitDataURL(dataURL string) (mimeType, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("invalid data URL: missing data: scheme")
	}
	header, payload, ok := strings.Cut(dataURL[len("data:"):], ",")
	if !ok || payload == "" {
		return "", "", fmt.Errorf("invalid data URL format")
	}
	if !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("invalid data URL: only base64 payloads are supported")
	}
	mimeType = strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return mimeType, payload, nil
}

// DecodeDataURL returns the MIME type and raw bytes of a base64 data URL.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mimeType, payload, err := splitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URL payload: %w", err)
	}
	return mimeType, data, nil
}

// EncodeDataURL builds a base64 data URL from raw bytes.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// IsDataURL reports whether s is an inline data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}
