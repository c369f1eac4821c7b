package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteSheet(t *testing.T) {
	buf, err := WriteSheet("Servicios", []Column{{Label: "Código"}, {Label: "Total", Width: 10}}, [][]interface{}{
		{"ABCD2345", 1200.5},
		{"EFGH6789", 80},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Servicios"}, f.GetSheetList())
	rows, err := f.GetRows("Servicios")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Código", "Total"}, rows[0])
	assert.Equal(t, "EFGH6789", rows[2][0])
}
