package feed

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding represents a text encoding seen in supplier files
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88591    Encoding = "iso-8859-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding inspects a byte buffer. Valid UTF-8 is taken at face
// value; anything else is assumed to be Windows-1252, the usual
// encoding of legacy supplier exports.
func DetectEncoding(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) {
		return EncodingUTF8
	}
	if utf8.Valid(data) {
		return EncodingUTF8
	}
	return EncodingWindows1252
}

// DecodeToUTF8 converts file bytes to a UTF-8 string, stripping any
// BOM. A buffer that is already valid UTF-8 is returned as-is even if
// another encoding was requested, since mislabeled feeds are common.
func DecodeToUTF8(data []byte, enc Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return string(data), nil
	}

	cm := charmap.Windows1252
	if enc == EncodingISO88591 {
		cm = charmap.ISO8859_1
	}

	decoded, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
