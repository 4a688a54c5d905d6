package transform

// Role says how the encoder treats a column.
type Role int

const (
	// Ignored columns are skipped.
	Ignored Role = iota
	// Text columns are tokenized into words.
	Text
	// Features columns carry pre-extracted feature tokens ("name" or
	// "name=weight") separated by whitespace.
	Features
)

// RowReader yields rows of string fields until io.EOF.
type RowReader interface {
	Read() ([]string, error)
}

// Options selects the annotate and feature columns, as 0-based offsets
// (negative offsets count from the end of each row).
type Options struct {
	Annotate []int
	Feature  []int
}

// Record is one input row with the role of each field resolved.
type Record struct {
	Fields []string
	roles  []Role
}

// Role returns the role of field i.
func (r Record) Role(i int) Role {
	if i < 0 || i >= len(r.roles) {
		return Ignored
	}
	return r.roles[i]
}

// Input applies column selection to a row stream.
type Input struct {
	rows RowReader
	opts Options
}

// TransformInput wraps rows so each one is returned with its column roles.
// Without annotate columns every column is text; feature columns always
// take precedence over text.
func TransformInput(rows RowReader, opts Options) *Input {
	return &Input{rows: rows, opts: opts}
}

// Read returns the next record or the reader's error (io.EOF at the end).
func (in *Input) Read() (Record, error) {
	fields, err := in.rows.Read()
	if err != nil {
		return Record{}, err
	}

	n := len(fields)
	roles := make([]Role, n)

	if len(in.opts.Annotate) == 0 {
		for i := range roles {
			roles[i] = Text
		}
	} else {
		for _, c := range in.opts.Annotate {
			if i, ok := resolve(c, n); ok {
				roles[i] = Text
			}
		}
	}

	for _, c := range in.opts.Feature {
		if i, ok := resolve(c, n); ok {
			roles[i] = Features
		}
	}

	return Record{Fields: fields, roles: roles}, nil
}
