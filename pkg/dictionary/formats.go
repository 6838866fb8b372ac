package dictionary

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Charset names a text encoding a dictionary file may be stored in.
type Charset string

const (
	CharsetUTF8    Charset = "utf-8"
	CharsetUTF16LE Charset = "utf-16le"
	CharsetUTF16BE Charset = "utf-16be"
	CharsetGBK     Charset = "gbk"
	CharsetGB18030 Charset = "gb18030"
	CharsetBig5    Charset = "big5"
)

// CharsetInfo describes one supported charset.
type CharsetInfo struct {
	Charset     Charset
	Description string
	Aliases     []string
	encoding    encoding.Encoding
}

var supportedCharsets = map[Charset]CharsetInfo{
	CharsetUTF8: {
		Charset:     CharsetUTF8,
		Description: "UTF-8, optional BOM",
		Aliases:     []string{"utf8", ""},
		encoding:    unicode.UTF8BOM,
	},
	CharsetUTF16LE: {
		Charset:     CharsetUTF16LE,
		Description: "UTF-16 little endian, BOM honored",
		Aliases:     []string{"utf-16", "utf16", "utf16le"},
		encoding:    unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	},
	CharsetUTF16BE: {
		Charset:     CharsetUTF16BE,
		Description: "UTF-16 big endian, BOM honored",
		Aliases:     []string{"utf16be"},
		encoding:    unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	},
	CharsetGBK: {
		Charset:     CharsetGBK,
		Description: "GBK (simplified Chinese)",
		Aliases:     []string{"cp936"},
		encoding:    simplifiedchinese.GBK,
	},
	CharsetGB18030: {
		Charset:     CharsetGB18030,
		Description: "GB18030 (simplified Chinese)",
		encoding:    simplifiedchinese.GB18030,
	},
	CharsetBig5: {
		Charset:     CharsetBig5,
		Description: "Big5 (traditional Chinese)",
		Aliases:     []string{"cp950"},
		encoding:    traditionalchinese.Big5,
	},
}

// LookupCharset resolves a charset name or alias.
func LookupCharset(name string) (CharsetInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if info, ok := supportedCharsets[Charset(name)]; ok {
		return info, nil
	}
	for _, info := range supportedCharsets {
		for _, alias := range info.Aliases {
			if alias == name {
				return info, nil
			}
		}
	}
	return CharsetInfo{}, fmt.Errorf("unknown dictionary encoding %q", name)
}

// ListCharsets returns all supported charsets.
func ListCharsets() []CharsetInfo {
	var out []CharsetInfo
	for _, info := range supportedCharsets {
		out = append(out, info)
	}
	return out
}

// decodedLine is one dictionary line converted to UTF-8. invalid is set when
// the source bytes were not valid in the charset.
type decodedLine struct {
	text    string
	invalid bool
}

// decodeLines splits data into lines in the source charset and decodes each
// one. Decoders substitute U+FFFD for bad input, so a line is invalid when it
// decodes to more U+FFFD than its bytes encode.
func decodeLines(data []byte, info CharsetInfo) []decodedLine {
	enc, unit := info.encoding, 1
	switch info.Charset {
	case CharsetUTF8:
		enc = unicode.UTF8
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	case CharsetUTF16LE, CharsetUTF16BE:
		unit = 2
		order := unicode.LittleEndian
		if info.Charset == CharsetUTF16BE {
			order = unicode.BigEndian
		}
		switch {
		case bytes.HasPrefix(data, []byte{0xff, 0xfe}):
			order, data = unicode.LittleEndian, data[2:]
		case bytes.HasPrefix(data, []byte{0xfe, 0xff}):
			order, data = unicode.BigEndian, data[2:]
		}
		enc = unicode.UTF16(order, unicode.IgnoreBOM)
	}

	newline, _ := enc.NewEncoder().Bytes([]byte("\n"))
	// nil when the charset cannot represent U+FFFD at all
	replacement, err := enc.NewEncoder().Bytes([]byte(string(utf8.RuneError)))
	if err != nil {
		replacement = nil
	}

	var lines []decodedLine
	for len(data) > 0 {
		raw := data
		if i := indexUnit(data, newline, unit); i >= 0 {
			raw, data = data[:i], data[i+len(newline):]
		} else {
			data = nil
		}
		text, err := enc.NewDecoder().Bytes(raw)
		lines = append(lines, decodedLine{
			text:    string(text),
			invalid: err != nil || bytes.Count(text, []byte(string(utf8.RuneError))) > countUnit(raw, replacement, unit),
		})
	}
	return lines
}

// indexUnit is bytes.Index restricted to offsets on a code unit boundary.
func indexUnit(data, sep []byte, unit int) int {
	if unit == 1 {
		return bytes.Index(data, sep)
	}
	for i := 0; i+len(sep) <= len(data); i += unit {
		if bytes.HasPrefix(data[i:], sep) {
			return i
		}
	}
	return -1
}

// countUnit is bytes.Count restricted to offsets on a code unit boundary.
func countUnit(data, sep []byte, unit int) int {
	if len(sep) == 0 {
		return 0
	}
	if unit == 1 {
		return bytes.Count(data, sep)
	}
	n := 0
	for i := 0; i+len(sep) <= len(data); i += unit {
		if bytes.HasPrefix(data[i:], sep) {
			n++
		}
	}
	return n
}

// ValidateFile checks that path is a readable, non-empty regular file.
func ValidateFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat dictionary %s: %w", path, err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("dictionary %s is a directory", path)
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("dictionary %s is empty", path)
	}
	log.Debugf("Dictionary %s validated: %d bytes", path, fileInfo.Size())
	return nil
}
