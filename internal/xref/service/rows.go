package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Row is one raw import row keyed by header name.
type Row map[string]string

// Get returns the first non-blank value among the given header spellings.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

// 行字段的两种拼写（camelCase / snake_case）
var (
	colPartNumberA  = []string{"partNumberA", "part_number_a"}
	colPartNumberB  = []string{"partNumberB", "part_number_b"}
	colManufacturer = []string{"manufactureName", "manufacture_name"}
	colWagoCrossA   = []string{"wagoCrossA", "wago_cross_a"}
	colWagoCrossB   = []string{"wagoCrossB", "wago_cross_b"}
	colNotes        = []string{"notes"}
	colActive       = []string{"isActive", "is_active", "active"}
	colPrice        = []string{"estimatedPrice", "estimated_price"}
	colNotesA       = []string{"notesA", "notes_a"}
	colNotesB       = []string{"notesB", "notes_b"}
	colAuthor       = []string{"author"}
	colLastModified = []string{"lastModified", "last_modified"}

	colNonWagoManufacturer = []string{"manufacturer", "manufactureName", "manufacture_name"}
	colNonWagoPartNumber   = []string{"partNumber", "part_number"}
)

// TemplateHeaders is the header row of the cross-reference import template.
var TemplateHeaders = []string{
	"partNumberA", "partNumberB", "manufactureName", "wagoCrossA", "wagoCrossB", "notes",
	"isActive", "estimatedPrice", "notesA", "notesB", "author", "lastModified",
}

var errRowsNotList = errors.New("rows must be a list")

// DecodeJSONRows decodes a JSON array of row objects. Scalars are stringified;
// an element that is not an object becomes an empty row.
func DecodeJSONRows(raw json.RawMessage) ([]Row, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errRowsNotList
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errRowsNotList
	}

	rows := make([]Row, len(items))
	for i, item := range items {
		row := Row{}
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var obj map[string]interface{}
		if err := dec.Decode(&obj); err == nil {
			for k, v := range obj {
				row[k] = stringify(v)
			}
		}
		rows[i] = row
	}
	return rows, nil
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// charsetEncoding 支持的 CSV 字符集
func charsetEncoding(charset string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252", "latin1", "iso-8859-1":
		return charmap.Windows1252, nil
	case "gbk", "gb2312":
		return simplifiedchinese.GBK, nil
	}
	return nil, fmt.Errorf("unsupported charset: %s", charset)
}

// ReadCSVRows reads a header-first CSV body. At most limit+1 data rows are read
// so an oversized upload is rejected without loading all of it. lines holds the
// position of each row below the header, counting skipped blank lines.
func ReadCSVRows(r io.Reader, charset string, limit int) (rows []Row, lines []int, err error) {
	enc, err := charsetEncoding(charset)
	if err != nil {
		return nil, nil, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []Row{}, []int{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	headerLine, _ := reader.FieldPos(0)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows, lines = []Row{}, []int{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, zipRow(header, record))
		lines = append(lines, line-headerLine)
		if limit > 0 && len(rows) > limit {
			break
		}
	}
	return rows, lines, nil
}

// ReadXLSXRows reads the first sheet of a workbook, first row as header. Blank
// rows are dropped; lines keeps each row's position below the header.
func ReadXLSXRows(r io.Reader, limit int) (rows []Row, lines []int, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Row{}, []int{}, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return []Row{}, []int{}, nil
	}

	header := records[0]
	rows = make([]Row, 0, len(records)-1)
	lines = make([]int, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, zipRow(header, record))
		lines = append(lines, i+1)
		if limit > 0 && len(rows) > limit {
			break
		}
	}
	return rows, lines, nil
}

func zipRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || i >= len(record) {
			continue
		}
		row[h] = record[i]
	}
	return row
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// GenerateImportTemplate 生成交叉引用导入模板
func GenerateImportTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "CrossReferences"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	for i, h := range TemplateHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
		f.SetColWidth(sheet, col, col, 18)
	}

	example := []string{"ABC-123", "", "Acme", "221-413", "", "", "yes", "12.50", "", "", "", "2024-01-31"}
	for i, v := range example {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, fmt.Sprintf("%s2", col), v)
	}
	return f, nil
}
