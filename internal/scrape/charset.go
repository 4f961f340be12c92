package scrape

import (
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody converts body to UTF-8. A forced label wins; otherwise the
// encoding comes from the Content-Type header, a BOM or a <meta> tag.
func decodeBody(body []byte, contentType, forced string) (string, error) {
	var enc encoding.Encoding
	if forced != "" {
		e, err := htmlindex.Get(forced)
		if err != nil {
			return "", eris.Wrapf(err, "scrape: unknown encoding %q", forced)
		}
		enc = e
	} else {
		var name string
		var certain bool
		enc, name, certain = charset.DetermineEncoding(body, contentType)
		// The sniffer only inspects the first 1KB and falls back to
		// windows-1252; prefer UTF-8 when the whole body is valid UTF-8.
		if !certain && name == "windows-1252" && utf8.Valid(body) {
			return string(body), nil
		}
	}

	if enc == encoding.Nop {
		return string(body), nil
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrap(err, "scrape: decode body")
	}
	return string(out), nil
}
