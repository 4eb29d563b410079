package imaging

import (
	"encoding/base64"
	"fmt"
)

// Artifact is a decoded image ready to be sent upstream. MIMEType is always
// canonical and Ext always agrees with it.
type Artifact struct {
	Bytes    []byte
	MIMEType string
	Ext      string
}

// NewArtifact validates mt against the allow-list and builds an artifact.
func NewArtifact(data []byte, mt string) (Artifact, error) {
	canonical, ok := CanonicalMIME(mt)
	if !ok {
		return Artifact{}, fmt.Errorf("imaging: mime %q not allowed", mt)
	}
	return Artifact{Bytes: data, MIMEType: canonical, Ext: extensions[canonical]}, nil
}

// Filename is the upload name used for multipart submissions.
func (a Artifact) Filename() string {
	return "source." + a.Ext
}

// DataURL renders the artifact as data:<mime>;base64,<payload>.
func (a Artifact) DataURL() string {
	return EncodeDataURL(a.MIMEType, a.Bytes)
}

// EncodeDataURL renders data as a base64 data-URL.
func EncodeDataURL(mt string, data []byte) string {
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}
