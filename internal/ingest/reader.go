package ingest

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeBOM wraps r so that a UTF-8 or UTF-16 byte order mark, as written by
// common spreadsheet exports, is consumed and the stream decoded to UTF-8.
func decodeBOM(r io.Reader) io.Reader {
	utf16BOM := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(r, utf16BOM)
}
