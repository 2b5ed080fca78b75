package filters

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"pubsub2inbox/internal/common/errors"
)

func TestHTMLTableToXLSX(t *testing.T) {
	lib, _ := newTestLibrary(t)

	doc := `<html><body>
<table>
  <thead><tr><th>Name</th><th>Count</th></tr></thead>
  <tbody>
    <tr><td>cpu</td><td>3</td></tr>
    <tr><td colspan="2">merged</td></tr>
  </tbody>
</table>
<table><tr><td>second</td></tr></table>
</body></html>`

	encoded, err := lib.htmlTableToXLSX(doc)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Sheet1", "Sheet2"}, f.GetSheetList())

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Count"}, {"cpu", "3"}, {"merged"}}, rows)

	value, err := f.GetCellValue("Sheet2", "A1")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestHTMLTableToXLSX_Blank(t *testing.T) {
	lib, _ := newTestLibrary(t)

	out, err := lib.htmlTableToXLSX("   \n ")
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = lib.htmlTableToXLSX("<p>no tables here</p>")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestCellValue(t *testing.T) {
	assert.Equal(t, int64(42), cellValue("42"))
	assert.Equal(t, 2.5, cellValue("2.5"))
	assert.Equal(t, "NaN", cellValue("NaN"))
	assert.Equal(t, "text", cellValue("text"))
}
