package imaging

import (
	"mime"
	"path"
	"strings"
)

// Accepted MIME types. image/jpg is accepted on input and canonicalised.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWebP = "image/webp"
)

var extensions = map[string]string{
	MIMEPNG:  "png",
	MIMEJPEG: "jpeg",
	MIMEWebP: "webp",
}

// CanonicalMIME lower-cases mt, drops parameters and folds aliases. The second
// return reports whether the type is in the allow-list.
func CanonicalMIME(mt string) (string, bool) {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "image/jpg" || mt == "image/pjpeg" {
		mt = MIMEJPEG
	}
	_, ok := extensions[mt]
	return mt, ok
}

// ExtensionFor returns the file extension that agrees with an allowed MIME
// type, or "" when the type is not allowed.
func ExtensionFor(mt string) string {
	canonical, ok := CanonicalMIME(mt)
	if !ok {
		return ""
	}
	return extensions[canonical]
}

// MIMEFromPath infers an allowed MIME type from the extension of p. Query
// strings must already be stripped.
func MIMEFromPath(p string) (string, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return MIMEPNG, true
	case ".jpg", ".jpeg":
		return MIMEJPEG, true
	case ".webp":
		return MIMEWebP, true
	default:
		return "", false
	}
}

func isGenericContentType(mt string) bool {
	switch mt {
	case "", "application/octet-stream", "binary/octet-stream", "application/binary":
		return true
	}
	return false
}
