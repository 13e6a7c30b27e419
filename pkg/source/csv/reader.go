package csv

import (
	"bufio"
	"io"
	"strings"
)

// reader is a small hand-rolled CSV tokenizer. encoding/csv.Reader exposes
// a settable delimiter (Comma) but its quote character is hardcoded to `"`
// and it has no notion of a distinct escape character at all, so it cannot
// express the `quotechar=`/`escapechar=` pair the grounded original
// (etl_lib's CSVBatchProcessor) forwards straight through to Python's
// csv.DictReader. reader implements just enough of the same state machine
// to honor a configurable Delimiter, Quote, and Escape: inside a quoted
// field, an Escape rune (when set) makes the following rune literal;
// otherwise a doubled Quote is the literal-quote escape, matching
// encoding/csv's and Python's csv module's shared default dialect.
type reader struct {
	br        *bufio.Reader
	delimiter rune
	quote     rune
	escape    rune // 0 disables escapechar handling, falling back to quote-doubling
}

func newReader(br *bufio.Reader, delimiter, quote, escape rune) *reader {
	return &reader{br: br, delimiter: delimiter, quote: quote, escape: escape}
}

// Read parses and returns the next record. A quoted field may span
// multiple input lines; Read keeps consuming runes until the field's
// closing quote is seen. It returns io.EOF once the input is exhausted
// with no partial record pending, matching encoding/csv.Reader.Read.
func (r *reader) Read() ([]string, error) {
	var fields []string
	var field strings.Builder
	inQuotes := false
	sawInput := false

	for {
		ch, _, err := r.br.ReadRune()
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			if !sawInput && field.Len() == 0 && len(fields) == 0 {
				return nil, io.EOF
			}
			return append(fields, field.String()), nil
		}
		sawInput = true

		if inQuotes {
			switch {
			case r.escape != 0 && ch == r.escape:
				next, _, err := r.br.ReadRune()
				if err != nil {
					field.WriteRune(ch)
					continue
				}
				field.WriteRune(next)
			case ch == r.quote:
				if r.escape == 0 {
					next, _, err := r.br.ReadRune()
					if err == nil && next == r.quote {
						field.WriteRune(r.quote)
						continue
					}
					if err == nil {
						_ = r.br.UnreadRune()
					}
				}
				inQuotes = false
			default:
				field.WriteRune(ch)
			}
			continue
		}

		switch {
		case r.escape != 0 && ch == r.escape:
			next, _, err := r.br.ReadRune()
			if err != nil {
				field.WriteRune(ch)
				continue
			}
			field.WriteRune(next)
		case ch == r.quote && field.Len() == 0:
			inQuotes = true
		case ch == r.delimiter:
			fields = append(fields, field.String())
			field.Reset()
		case ch == '\r':
			// swallowed; a following \n (or end of input) ends the record
		case ch == '\n':
			return append(fields, field.String()), nil
		default:
			field.WriteRune(ch)
		}
	}
}
