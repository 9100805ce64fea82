package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrTooManyRows       = errors.New("too many rows")
	ErrNoHeader          = errors.New("file has no header row")
)

// Format is an accepted upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat picks the format from the file extension, case-insensitively.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .csv, .xlsx or .xls)", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Table is a header plus data rows. Cells are raw strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Record returns row i keyed by header. Short rows read as empty cells.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Header))
	row := t.Rows[i]
	for j, h := range t.Header {
		if h == "" {
			continue
		}
		if j < len(row) {
			rec[h] = row[j]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

// Read parses r in the given format. Blank rows are skipped. maxRows <= 0
// means unlimited.
func Read(r io.Reader, f Format, maxRows int) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch f {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX, FormatXLS:
		rows, err = readWorkbook(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, err
	}
	return newTable(rows, maxRows)
}

func newTable(rows [][]string, maxRows int) (*Table, error) {
	t := &Table{}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if t.Header == nil {
			t.Header = make([]string, len(row))
			for i, h := range row {
				t.Header[i] = strings.TrimSpace(h)
			}
			continue
		}
		if maxRows > 0 && len(t.Rows) >= maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		t.Rows = append(t.Rows, row)
	}
	if t.Header == nil {
		return nil, ErrNoHeader
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(3)
	}
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// sniffDelimiter looks at the first line: the raw bank dataset is
// semicolon separated, exports are usually comma separated.
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// readWorkbook reads the first worksheet. Legacy BIFF .xls files are not
// OOXML and fail to open here; the error surfaces to the caller.
func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
