package providers

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	imageDataURLRegex = regexp.MustCompile(`^data:image/[a-z0-9.+-]+;base64,[a-zA-Z0-9+/]+=*$`)
	dataURLRegex      = regexp.MustCompile(`(?i)^data:([a-z0-9/.+-]+);base64,(.+)$`)
	base64Regex       = regexp.MustCompile(`^[a-zA-Z0-9+/]*={0,2}$`)
	httpURLRegex      = regexp.MustCompile(`(?i)^https?://`)
)

const defaultImageMime = "image/jpeg"

// NormalizeImage turns image input into a URL or a data URL.
// Accepted input: http(s) URL, image data URL, readable local file, raw base64.
func (b *BaseDriver) NormalizeImage(data string) (string, error) {
	if IsURL(data) {
		return data, nil
	}

	if strings.HasPrefix(data, "data:image/") {
		if !imageDataURLRegex.MatchString(data) {
			return "", b.MessageValidation("Invalid image data URL format")
		}
		return data, nil
	}

	if isReadableFile(data) {
		raw, err := os.ReadFile(data)
		if err != nil {
			return "", b.MessageValidation(fmt.Sprintf("Cannot read image file: %s", data))
		}
		return "data:" + DetectImageMime(data, raw) + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
	}

	if IsBase64(data) {
		return "data:" + defaultImageMime + ";base64," + data, nil
	}

	return "", b.MessageValidation("Invalid image input: must be a URL, data URL, base64 string, or an existing readable file path")
}

// NormalizeFile turns generic file input into raw base64
func (b *BaseDriver) NormalizeFile(data string) (string, error) {
	if isReadableFile(data) {
		raw, err := os.ReadFile(data)
		if err != nil {
			return "", b.MessageValidation(fmt.Sprintf("Cannot read file: %s", data))
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	if IsBase64(data) {
		return data, nil
	}

	return "", b.MessageValidation("Invalid file input: must be URL, base64, or existing file")
}

// ExtractMimeAndBase64 splits a data URL into mime type and payload.
// Raw base64 input is returned with the default mime type.
func (b *BaseDriver) ExtractMimeAndBase64(input, defaultMime string) (string, string, error) {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "data:") {
		matches := dataURLRegex.FindStringSubmatch(input)
		if matches == nil {
			return "", "", b.MessageValidation("Invalid data URL format")
		}
		return matches[1], matches[2], nil
	}

	if IsBase64(input) {
		return defaultMime, input, nil
	}

	return "", "", b.MessageValidation("Input must be a valid data URL or base64 string")
}

// IsBase64 reports whether data is canonical standard base64
func IsBase64(data string) bool {
	data = strings.TrimSpace(data)
	if !base64Regex.MatchString(data) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return false
	}
	return base64.StdEncoding.EncodeToString(decoded) == data
}

// IsURL reports whether value is an absolute http(s) URL
func IsURL(value string) bool {
	if !httpURLRegex.MatchString(value) {
		return false
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.Host != ""
}

// DetectImageMime sniffs the content first and falls back to the file extension
func DetectImageMime(path string, raw []byte) string {
	if mtype := mimetype.Detect(raw); mtype != nil && strings.HasPrefix(mtype.String(), "image/") {
		return baseMime(mtype.String())
	}
	if guessed := GuessImageMimeFromExtension(path); guessed != "" {
		return guessed
	}
	return defaultImageMime
}

// GuessImageMimeFromExtension maps common image extensions to mime types
func GuessImageMimeFromExtension(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "svg":
		return "image/svg+xml"
	case "tiff", "tif":
		return "image/tiff"
	case "ico":
		return "image/x-icon"
	case "jpg", "jpeg":
		return "image/jpeg"
	}
	return ""
}

func baseMime(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}

func isReadableFile(path string) bool {
	if path == "" || strings.ContainsRune(path, '\x00') {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
