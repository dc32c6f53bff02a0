package transcription

import (
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

const defaultExtension = "webm"

var supportedExtensions = map[string]bool{
	"webm": true,
	"mp4":  true,
	"wav":  true,
	"mp3":  true,
	"m4a":  true,
	"ogg":  true,
}

// subtypes browsers send that don't match the file extension
var mimeSubtypes = map[string]string{
	"mpeg":     "mp3",
	"x-wav":    "wav",
	"wave":     "wav",
	"vnd.wave": "wav",
	"x-m4a":    "m4a",
}

// NormalizeExtension picks the extension the staged file is written with.
// The filename wins; the MIME subtype is used only when the filename has no
// extension. Anything outside the supported set becomes webm.
func NormalizeExtension(filename, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" && contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if i := strings.IndexByte(mediaType, '/'); i >= 0 {
				ext = mediaType[i+1:]
			}
		}
		if alias, ok := mimeSubtypes[ext]; ok {
			ext = alias
		}
	}
	if supportedExtensions[ext] {
		return ext
	}
	return defaultExtension
}

func ValidateUpload(u UploadedAudio, maxBytes int64) error {
	size := int64(len(u.Data))
	if size == 0 {
		return &ValidationError{Field: "audio", Reason: "Audio file is empty"}
	}
	if maxBytes > 0 && size > maxBytes {
		return &ValidationError{Field: "audio", Reason: fmt.Sprintf("Audio file too large (max %s)", humanLimit(maxBytes))}
	}
	return nil
}

// language codes such as en, yue or zh-hant
var languageCode = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]{2,4})?$`)

// ValidateLanguage returns the normalized language hint. Empty means auto;
// anything other than auto or a short language code is rejected, since the
// value ends up on the worker's command line.
func ValidateLanguage(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == AutoLanguage {
		return AutoLanguage, nil
	}
	if !languageCode.MatchString(lang) {
		return "", &ValidationError{Field: "language", Reason: "Unsupported language code"}
	}
	return lang, nil
}

func humanLimit(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
