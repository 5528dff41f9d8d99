// Package reader turns uploaded documents into raw text for extraction.
//
// The decoder is chosen by file extension. Every decoder returns
// NFC-normalized text; an empty result is not an error here, callers
// validate it.
package reader

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrUnreadable        = errors.New("document could not be read")
)

// Decoder converts raw document bytes into text.
type Decoder interface {
	Decode(data []byte) (string, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(data []byte) (string, error)

func (f DecoderFunc) Decode(data []byte) (string, error) { return f(data) }

var decoders = map[string]Decoder{
	".txt":  DecoderFunc(decodeText),
	".text": DecoderFunc(decodeText),
	".md":   DecoderFunc(decodeText),
	".csv":  DecoderFunc(decodeText),
	".html": DecoderFunc(decodeHTML),
	".htm":  DecoderFunc(decodeHTML),
	".docx": DecoderFunc(decodeDOCX),
	".pdf":  DecoderFunc(decodePDF),
	".eml":  DecoderFunc(decodeEML),
}

// Read decodes data according to the extension of name.
func Read(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	d, ok := decoders[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := d.Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, filepath.Base(name), err)
	}
	return norm.NFC.String(text), nil
}

// Supported reports whether name has a known extension.
func Supported(name string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extensions lists the known extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(decoders))
	for ext := range decoders {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
