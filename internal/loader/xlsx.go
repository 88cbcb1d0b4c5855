package loader

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// ReadXLSX loads one sheet of a .xlsx workbook. The first row is the header.
// Options.Sheet selects by name, Options.SheetIndex by 1-based position.
func ReadXLSX(file string, opt Options) (*dataset.Dataset, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()
	wb := workbook{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		wb.files[f.Name] = f
	}
	part, err := wb.sheetPart(opt)
	if err != nil {
		return nil, fmt.Errorf("read xlsx %s: %w", filepath.Base(file), err)
	}
	var shared sharedStrings
	if err := wb.decode("xl/sharedStrings.xml", &shared); err != nil && !errors.Is(err, errNoPart) {
		return nil, fmt.Errorf("read xlsx: shared strings: %w", err)
	}
	f, ok := wb.files[part]
	if !ok {
		return nil, fmt.Errorf("read xlsx: sheet part %s missing", part)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	defer rc.Close()

	rows := &rowDecoder{dec: xml.NewDecoder(rc), shared: shared.texts()}
	name := filepath.Base(file)
	header, err := rows.next()
	if errors.Is(err, io.EOF) || (err == nil && len(header) == 0) {
		return dataset.New(name)
	}
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	return build(name, "read xlsx", header, rows.next, opt)
}

var errNoPart = errors.New("part not in archive")

type workbook struct {
	files map[string]*zip.File
}

func (w workbook) decode(name string, v any) error {
	f, ok := w.files[name]
	if !ok {
		return errNoPart
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

type sheetEntry struct {
	Name string `xml:"name,attr"`
	ID   int    `xml:"sheetId,attr"`
	RID  string `xml:"id,attr"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
}

// sheetPart resolves the zip entry of the selected worksheet through the
// workbook's sheet list and relationships.
func (w workbook) sheetPart(opt Options) (string, error) {
	var book struct {
		Sheets []sheetEntry `xml:"sheets>sheet"`
	}
	if err := w.decode("xl/workbook.xml", &book); err != nil && !errors.Is(err, errNoPart) {
		return "", fmt.Errorf("workbook: %w", err)
	}
	var rels struct {
		Items []relationship `xml:"Relationship"`
	}
	if err := w.decode("xl/_rels/workbook.xml.rels", &rels); err != nil && !errors.Is(err, errNoPart) {
		return "", fmt.Errorf("workbook relationships: %w", err)
	}
	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		targets[r.ID] = r.Target
	}

	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	for _, s := range book.Sheets {
		match := s.ID == idx
		if opt.Sheet != "" {
			match = strings.EqualFold(s.Name, opt.Sheet)
		}
		if !match {
			continue
		}
		if t, ok := targets[s.RID]; ok {
			return normalizeRelPath(t), nil
		}
		break
	}
	if opt.Sheet != "" {
		names := make([]string, len(book.Sheets))
		for i, s := range book.Sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", opt.Sheet, strings.Join(names, ", "))
	}
	return path.Join("xl", "worksheets", "sheet"+strconv.Itoa(idx)+".xml"), nil
}

// richText is a string item: plain <t> or a list of formatted runs.
type richText struct {
	T    string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (r richText) String() string {
	if len(r.Runs) == 0 {
		return r.T
	}
	var sb strings.Builder
	sb.WriteString(r.T)
	for _, run := range r.Runs {
		sb.WriteString(run.T)
	}
	return sb.String()
}

type sharedStrings struct {
	Items []richText `xml:"si"`
}

func (s sharedStrings) texts() []string {
	out := make([]string, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.String()
	}
	return out
}

type sheetCell struct {
	Ref    string   `xml:"r,attr"`
	Type   string   `xml:"t,attr"`
	Value  string   `xml:"v"`
	Inline richText `xml:"is"`
}

// rowDecoder streams <row> elements of a worksheet, placing each cell at
// the column named by its A1 reference.
type rowDecoder struct {
	dec    *xml.Decoder
	shared []string
}

func (d *rowDecoder) next() ([]string, error) {
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "row" {
			continue
		}
		var row struct {
			Cells []sheetCell `xml:"c"`
		}
		if err := d.dec.DecodeElement(&row, &se); err != nil {
			return nil, err
		}
		var out []string
		for _, c := range row.Cells {
			col := colIndexFromRef(c.Ref)
			if col < 0 {
				col = len(out)
			}
			for len(out) <= col {
				out = append(out, "")
			}
			out[col] = d.text(c)
		}
		return out, nil
	}
}

func (d *rowDecoder) text(c sheetCell) string {
	switch c.Type {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || i < 0 || i >= len(d.shared) {
			return ""
		}
		return d.shared[i]
	case "inlineStr":
		return c.Inline.String()
	case "b":
		return strconv.FormatBool(strings.TrimSpace(c.Value) == "1")
	}
	return c.Value
}

// colIndexFromRef maps a cell reference like "C12" to its 0-based column;
// -1 when the reference has no column letters.
func colIndexFromRef(ref string) int {
	n := 0
	for _, r := range strings.ToUpper(ref) {
		if r < 'A' || r > 'Z' {
			break
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1
}

// normalizeRelPath turns a workbook relationship target, absolute or
// relative to xl/, into a zip entry name.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
