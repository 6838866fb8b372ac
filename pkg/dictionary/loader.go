/*
Package dictionary reads code table dictionaries.

A dictionary is a text file with one entry per line:

	text<TAB>code[<TAB>priority]

The priority is an unsigned integer, higher is preferred, and defaults to
DefaultPriority when the column is missing. Blank lines are ignored, as are
lines starting with '#' that have no tab in them.

Any malformed line fails the whole load. A table built from half a file
would silently lose entries, so callers get the first error with its file
and line number instead.
*/
package dictionary

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"
)

// DefaultPriority is used for entries without a priority column.
const DefaultPriority uint32 = 100

// ErrMalformedLine marks a dictionary line that cannot be parsed.
var ErrMalformedLine = errors.New("malformed dictionary line")

// Entry is one dictionary line.
type Entry struct {
	Text     string
	Code     string
	Priority uint32
}

// LineError reports where a dictionary failed to parse.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Options control how a dictionary is decoded.
type Options struct {
	// Encoding is a charset name understood by LookupCharset.
	Encoding string
	// DefaultPriority replaces DefaultPriority when non-zero.
	DefaultPriority uint32
	// Normalize applies Unicode NFC to entry text.
	Normalize bool
}

// DefaultOptions returns UTF-8 input with NFC normalization.
func DefaultOptions() Options {
	return Options{
		Encoding:        string(CharsetUTF8),
		DefaultPriority: DefaultPriority,
		Normalize:       true,
	}
}

func (o Options) defaultPriority() uint32 {
	if o.DefaultPriority == 0 {
		return DefaultPriority
	}
	return o.DefaultPriority
}

// ReadFile loads every entry of the dictionary at path.
func ReadFile(path string, opts Options) ([]Entry, error) {
	if err := ValidateFile(path); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer file.Close()

	entries, err := Read(file, path, opts)
	if err != nil {
		return nil, err
	}
	log.Debugf("Loaded %d entries from %s", len(entries), path)
	return entries, nil
}

// Read parses a dictionary from r. name is only used in error messages.
func Read(r io.Reader, name string, opts Options) ([]Entry, error) {
	info, err := LookupCharset(opts.Encoding)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", name, err)
	}

	var entries []Entry
	for i, line := range decodeLines(data, info) {
		lineNo := i + 1
		if line.invalid {
			return nil, &LineError{File: name, Line: lineNo, Err: fmt.Errorf("%w: invalid %s text", ErrMalformedLine, info.Charset)}
		}
		entry, ok, err := ParseLine(line.text, opts.defaultPriority())
		if err != nil {
			return nil, &LineError{File: name, Line: lineNo, Err: err}
		}
		if !ok {
			continue
		}
		if opts.Normalize {
			entry.Text = norm.NFC.String(entry.Text)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ParseLine parses one dictionary line. ok is false for lines that carry no
// entry (blank lines and comments).
func ParseLine(line string, defaultPriority uint32) (entry Entry, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Entry{}, false, nil
	}
	if strings.HasPrefix(line, "#") && !strings.Contains(line, "\t") {
		return Entry{}, false, nil
	}

	fields := strings.Split(line, "\t")
	switch len(fields) {
	case 2:
		entry.Priority = defaultPriority
	case 3:
		p, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
		if err != nil {
			return Entry{}, false, fmt.Errorf("%w: bad priority %q", ErrMalformedLine, fields[2])
		}
		entry.Priority = uint32(p)
	default:
		return Entry{}, false, fmt.Errorf("%w: expected 2 or 3 tab separated fields, got %d", ErrMalformedLine, len(fields))
	}

	entry.Text = strings.TrimSpace(fields[0])
	entry.Code = strings.TrimSpace(fields[1])
	if entry.Text == "" {
		return Entry{}, false, fmt.Errorf("%w: empty text", ErrMalformedLine)
	}
	if entry.Code == "" || strings.IndexFunc(entry.Code, unicode.IsSpace) >= 0 {
		return Entry{}, false, fmt.Errorf("%w: bad code %q", ErrMalformedLine, entry.Code)
	}
	return entry, true, nil
}
