package loader

import (
	"bytes"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// toUTF8 decodes data to UTF-8 using the charset parameter of contentType,
// falling back to detection. Data that cannot be decoded is returned as is
// and left for the YAML parser to reject.
func toUTF8(data []byte, contentType string) []byte {
	label := ""

	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			label = strings.ToLower(params["charset"])
		}
	}

	if label == "" || label == "utf-8" || label == "utf8" {
		if utf8.Valid(data) {
			return data
		}
	}

	decoded, err := io.ReadAll(utf8Reader(data, label))
	if err != nil || !utf8.Valid(decoded) {
		return data
	}

	return decoded
}

// utf8Reader tries the declared charset first, then the detected one.
func utf8Reader(data []byte, label string) io.Reader {
	if label != "" {
		if reader, err := charset.NewReaderLabel(label, bytes.NewReader(data)); err == nil {
			return reader
		}
	}

	best, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return bytes.NewReader(data)
	}

	reader, err := charset.NewReaderLabel(best.Charset, bytes.NewReader(data))
	if err != nil {
		return bytes.NewReader(data)
	}

	return reader
}
