package service

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecodeJSONRows(t *testing.T) {
	rows, err := DecodeJSONRows(json.RawMessage(`[{"partNumberA":"ABC-123","estimatedPrice":12.5,"isActive":true,"notes":null}, "junk"]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ABC-123", rows[0].Get(colPartNumberA...))
	assert.Equal(t, "12.5", rows[0].Get(colPrice...))
	assert.Equal(t, "true", rows[0].Get(colActive...))
	assert.Equal(t, "", rows[0].Get(colNotes...))
	assert.Empty(t, rows[1])
}

func TestDecodeJSONRows_NotAList(t *testing.T) {
	for _, in := range []string{`{"a":1}`, `"rows"`, ``, `null`, `[1,`} {
		_, err := DecodeJSONRows(json.RawMessage(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestRow_GetBothSpellings(t *testing.T) {
	assert.Equal(t, "221-413", Row{"wago_cross_a": "221-413"}.Get(colWagoCrossA...))
	assert.Equal(t, "221-413", Row{"wagoCrossA": " 221-413 ", "wago_cross_a": "x"}.Get(colWagoCrossA...))
	assert.Equal(t, "x", Row{"wagoCrossA": "  ", "wago_cross_a": "x"}.Get(colWagoCrossA...))
}

func TestReadCSVRows_UTF8WithBOM(t *testing.T) {
	body := "\ufeffpart_number_a,manufacture_name,wago_cross_a\nABC-123,Acme,221-413\nDEF-9,Beta,\n"
	rows, _, err := ReadCSVRows(strings.NewReader(body), "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ABC-123", rows[0].Get(colPartNumberA...))
	assert.Equal(t, "Acme", rows[0].Get(colManufacturer...))
	assert.Equal(t, "", rows[1].Get(colWagoCrossA...))
}

func TestReadCSVRows_Charsets(t *testing.T) {
	latin, err := charmap.Windows1252.NewEncoder().String("manufactureName,partNumberA,wagoCrossA\nMüller,M-1,221-413\n")
	require.NoError(t, err)
	rows, _, err := ReadCSVRows(strings.NewReader(latin), "windows-1252", 0)
	require.NoError(t, err)
	assert.Equal(t, "Müller", rows[0].Get(colManufacturer...))

	gbk, err := simplifiedchinese.GBK.NewEncoder().String("manufactureName,partNumberA,wagoCrossA\n正泰,NXB-63,2002-1201\n")
	require.NoError(t, err)
	rows, _, err = ReadCSVRows(strings.NewReader(gbk), "gbk", 0)
	require.NoError(t, err)
	assert.Equal(t, "正泰", rows[0].Get(colManufacturer...))

	_, _, err = ReadCSVRows(strings.NewReader("a\n1\n"), "ebcdic", 0)
	assert.Error(t, err)
}

func TestReadCSVRows_StopsPastLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("partNumberA\n")
	for i := 0; i < 50; i++ {
		b.WriteString("P\n")
	}
	rows, _, err := ReadCSVRows(strings.NewReader(b.String()), "utf-8", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 11)
}

func TestTemplateRoundTripsThroughXLSXReader(t *testing.T) {
	f, err := GenerateImportTemplate()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, _, err := ReadXLSXRows(&buf, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ABC-123", rows[0].Get(colPartNumberA...))
	assert.Equal(t, "Acme", rows[0].Get(colManufacturer...))
	assert.Equal(t, "221-413", rows[0].Get(colWagoCrossA...))
}

func TestReadXLSXRows_LinesSkipBlankRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"partNumberA", "manufactureName", "wagoCrossA"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"ABC-1", "Acme", "221-413"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]string{"ABC-3", "Acme", "999-999"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, lines, err := ReadXLSXRows(&buf, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []int{1, 3}, lines)
	assert.Equal(t, "ABC-3", rows[1].Get(colPartNumberA...))
}

func TestReadCSVRows_LinesSkipBlankLines(t *testing.T) {
	body := "partNumberA,manufactureName\nABC-1,Acme\n\nABC-3,Acme\n"
	rows, lines, err := ReadCSVRows(strings.NewReader(body), "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []int{1, 3}, lines)
}
