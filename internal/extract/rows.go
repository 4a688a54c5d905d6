// Package extract turns text input into rows of string columns.
package extract

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Dialect selects the row format of text input.
type Dialect string

const (
	// Plain is tab separated with no quoting.
	Plain Dialect = "plain"
	// Excel is comma separated with RFC 4180 quoting.
	Excel Dialect = "excel"
)

const maxLineSize = 16 * 1024 * 1024

// Rows yields one []string per input row until io.EOF.
type Rows struct {
	read   func() ([]string, error)
	closer io.Closer
	n      int
}

// Read returns the next row or io.EOF.
func (r *Rows) Read() ([]string, error) {
	row, err := r.read()
	if err != nil {
		return nil, err
	}
	r.n++
	return row, nil
}

// Count is the number of rows returned so far.
func (r *Rows) Count() int {
	return r.n
}

// Close releases the underlying file, if any.
func (r *Rows) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// RowGenerator reads rows from r using the given dialect.
func RowGenerator(r io.Reader, dialect Dialect) (*Rows, error) {
	switch dialect {
	case Plain, "":
		return &Rows{read: plainReader(r)}, nil
	case Excel:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		return &Rows{read: cr.Read}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
}

// RowGeneratorFromFile opens path, decodes it from the named text encoding
// and reads rows from it. The caller must Close the result.
func RowGeneratorFromFile(path string, dialect Dialect, encoding string) (*Rows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	r, err := decode(f, encoding)
	if err != nil {
		f.Close()
		return nil, err
	}

	rows, err := RowGenerator(r, dialect)
	if err != nil {
		f.Close()
		return nil, err
	}
	rows.closer = f
	return rows, nil
}

// codecAliases maps codec names that the WHATWG index does not know, or
// resolves to a different charset, to their IANA names.
var codecAliases = map[string]string{
	"latin-1":   "iso-8859-1",
	"latin1":    "iso-8859-1",
	"l1":        "iso-8859-1",
	"iso8859-1": "iso-8859-1",
	"8859":      "iso-8859-1",
	"cp819":     "iso-8859-1",
	"utf8":      "utf-8",
	"u8":        "utf-8",
}

// lookupEncoding resolves name with the IANA index first, so ISO-8859-1
// stays ISO-8859-1, and falls back to the WHATWG labels.
func lookupEncoding(name string) (encoding.Encoding, error) {
	raw := strings.ToLower(strings.TrimSpace(name))
	if raw == "" {
		raw = "utf-8"
	}
	key := strings.ReplaceAll(raw, "_", "-")
	if alias, ok := codecAliases[key]; ok {
		key = alias
	}

	for _, candidate := range []string{key, raw} {
		if enc, err := ianaindex.IANA.Encoding(candidate); err == nil && enc != nil {
			return enc, nil
		}
		if enc, err := htmlindex.Get(candidate); err == nil {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}

func decode(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func plainReader(r io.Reader) func() ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	return func() ([]string, error) {
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if line == "" {
				continue
			}
			return strings.Split(line, "\t"), nil
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}
