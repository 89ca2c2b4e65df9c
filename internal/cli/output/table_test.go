package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Principal", "Realm", "Kvno")

	assert.Equal(t, []string{"Principal", "Realm", "Kvno"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("svc-app", "EXAMPLE.COM", "2")
	table.AddRow("svc-batch", "EXAMPLE.COM", "5")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"svc-app", "EXAMPLE.COM", "2"}, rows[0])
	assert.Equal(t, []string{"svc-batch", "EXAMPLE.COM", "5"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Principal", "Kvno")
	table.AddRow("svc-app", "2")
	table.AddRow("svc-batch", "5")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "PRINCIPAL")
	assert.Contains(t, output, "KVNO")
	assert.Contains(t, output, "svc-app")
	assert.Contains(t, output, "svc-batch")
	assert.Contains(t, output, "2")
	assert.Contains(t, output, "5")
}
