// Package loader reads delimited text and spreadsheet files into datasets and
// writes datasets back out as CSV.
package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// Options controls ingestion.
type Options struct {
	// Delimiter for CSV. If 0, it is sniffed from the file name and the
	// header line among ',', ';', '\t' and '|'.
	Delimiter rune
	// MaxRows limits the data rows read; 0 means unlimited.
	MaxRows int
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune // optional; if 0, every separator other than the decimal one is dropped
	// NullTokens are read as null. Nil means DefaultNullTokens.
	NullTokens []string
	// Sheet selects an XLSX sheet by name; SheetIndex by 1-based position.
	// Both empty selects the first sheet.
	Sheet      string
	SheetIndex int
}

// DefaultOptions returns reasonable defaults for loading.
func DefaultOptions() Options {
	return Options{MaxRows: 1_000_000}
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// Read loads path as XLSX or CSV depending on its extension.
func Read(path string, opt Options) (*dataset.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, opt)
	}
	return ReadCSV(path, opt)
}

// ReadCSV loads a CSV or TSV file. The dataset is named after the file.
func ReadCSV(path string, opt Options) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	return ParseCSV(filepath.Base(path), f, opt)
}

// ParseCSV reads delimited records from r. The first record is the header;
// short rows are padded with nulls and long rows are a shape error.
func ParseCSV(name string, r io.Reader, opt Options) (*dataset.Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dataset.New(name)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	rows := func() ([]string, error) {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		return rec, nil
	}
	return build(name, "read csv", header, rows, opt)
}

// build collects rows column-wise, then types every column.
func build(name, op string, header []string, next func() ([]string, error), opt Options) (*dataset.Dataset, error) {
	names := headerNames(header)
	raw := make([][]string, len(names))
	maxRows := opt.MaxRows
	for n := 0; maxRows <= 0 || n < maxRows; n++ {
		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(rec) {
			n--
			continue
		}
		if len(rec) > len(names) {
			return nil, &dataset.ShapeError{Op: op,
				Reason: fmt.Sprintf("row %d has %d fields, header has %d", n+1, len(rec), len(names))}
		}
		for j := range names {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			raw[j] = append(raw[j], cell)
		}
	}
	nulls := opt.nullSet()
	cols := make([]*dataset.Column, len(names))
	for j, h := range names {
		cols[j] = typeColumn(h, raw[j], nulls, opt)
	}
	return dataset.New(name, cols...)
}

// headerNames trims header cells, strips a UTF-8 byte order mark and names
// blank headers by position.
func headerNames(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = h
	}
	return out
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the candidate occurring most often in the first line,
// defaulting to a comma.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range delimiterCandidates {
		if n := bytes.Count(head, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// WriteCSV writes ds to path with a header row. The file is written to a
// temporary sibling and renamed into place.
func WriteCSV(path string, ds *dataset.Dataset, delim rune) error {
	if delim == 0 {
		delim = ','
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			delim = '\t'
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := Write(f, ds, delim); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Write encodes ds as delimited text.
func Write(w io.Writer, ds *dataset.Dataset, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.Write(ds.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cols := ds.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < ds.Rows(); i++ {
		for j, c := range cols {
			rec[j] = formatValue(c.Value(i))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
