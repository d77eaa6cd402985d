package audio

import (
	"mime"
	"path/filepath"
	"strings"
)

// Hint is what the client told us about the upload: its filename and/or
// declared content type. Decoding never trusts it; it only picks the
// extension of the materialized upload and shows up in logs.
type Hint struct {
	Filename    string
	ContentType string
}

// knownExt maps content types the mime table tends to miss or map oddly.
var knownExt = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/wave":   ".wav",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/aac":    ".aac",
	"audio/ogg":    ".ogg",
	"audio/opus":   ".opus",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/webm":   ".webm",
	"audio/3gpp":   ".3gp",
	"video/mp4":    ".mp4",
}

// Ext returns a lowercase extension for the upload, ".bin" if unknown.
func (h Hint) Ext() string {
	if ext := strings.ToLower(filepath.Ext(h.Filename)); isSafeExt(ext) {
		return ext
	}
	ct, _, err := mime.ParseMediaType(h.ContentType)
	if err != nil {
		return ".bin"
	}
	if ext, ok := knownExt[ct]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 && isSafeExt(exts[0]) {
		return exts[0]
	}
	return ".bin"
}

func (h Hint) String() string {
	switch {
	case h.Filename != "" && h.ContentType != "":
		return h.Filename + " (" + h.ContentType + ")"
	case h.Filename != "":
		return h.Filename
	case h.ContentType != "":
		return h.ContentType
	default:
		return "unknown"
	}
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
