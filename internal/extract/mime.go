package extract

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	mimeOctetStream = "application/octet-stream"
	mimePDF         = "application/pdf"
)

// textExtensions are read as text even when sniffing is inconclusive.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".text":     true,
}

// DetectMIME determines a MIME type using stdlib detection first and
// falling back to the broader mimetype library when ambiguous.
// head should hold at least the first 512 bytes of content when available.
func DetectMIME(head []byte) string {
	if len(head) == 0 {
		return mimeOctetStream
	}
	mt := http.DetectContentType(head)
	if mt != mimeOctetStream {
		return mt
	}
	return mimetype.Detect(head).String()
}

// kind is the extraction route chosen for a file.
type kind int

const (
	kindUnsupported kind = iota
	kindText
	kindPDF
)

// classify picks the extraction route from the sniffed MIME type and the
// file name. Content wins over the extension, except that known text
// extensions rescue content the sniffers could not place.
func classify(name, mime string) kind {
	base := baseMIME(mime)
	switch {
	case base == mimePDF:
		return kindPDF
	case strings.HasPrefix(base, "text/"):
		return kindText
	case base == mimeOctetStream && textExtensions[strings.ToLower(filepath.Ext(name))]:
		return kindText
	default:
		return kindUnsupported
	}
}

// baseMIME strips parameters such as "; charset=utf-8".
func baseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
