package tabular

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"id", "name", "status"}

func TestOpenCreatesHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Open(dir, "things.csv", header)
	require.NoError(t, err)

	data, err := os.ReadFile(tbl.Path())
	require.NoError(t, err)
	assert.Equal(t, "id,name,status\n", string(data))

	rows, err := tbl.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendKeepsOrder(t *testing.T) {
	tbl, err := Open(t.TempDir(), "things.csv", header)
	require.NoError(t, err)

	require.NoError(t, tbl.Append([]string{"1", "a, with comma", "on"}))
	require.NoError(t, tbl.Append([]string{"2", "b", "off"}, []string{"3", "c", "on"}))

	rows, err := tbl.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a, with comma", rows[0][1])
	assert.Equal(t, "3", rows[2][0])
}

func TestUpdate(t *testing.T) {
	tbl, err := Open(t.TempDir(), "things.csv", header)
	require.NoError(t, err)
	require.NoError(t, tbl.Append([]string{"1", "a", "on"}, []string{"2", "b", "on"}))

	n, err := tbl.Update(
		func(row []string) bool { return row[0] == "2" },
		func(row []string) []string { row[2] = "off"; return row },
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = tbl.Update(func(row []string) bool { return row[0] == "9" }, func(row []string) []string { return row })
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := tbl.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "a", "on"}, rows[0])
	assert.Equal(t, []string{"2", "b", "off"}, rows[1])
}

func TestWriteRejectsShortRowWithoutTouchingFile(t *testing.T) {
	tbl, err := Open(t.TempDir(), "things.csv", header)
	require.NoError(t, err)
	require.NoError(t, tbl.Append([]string{"1", "a", "on"}))

	err = tbl.Append([]string{"2", "b"})
	require.Error(t, err)

	rows, err := tbl.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSwapAbortLeavesRows(t *testing.T) {
	tbl, err := Open(t.TempDir(), "things.csv", header)
	require.NoError(t, err)
	require.NoError(t, tbl.Append([]string{"1", "a", "on"}))

	boom := errors.New("boom")
	err = tbl.Swap(func(rows [][]string) ([][]string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	rows, err := tbl.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadRejectsCorruptFile(t *testing.T) {
	tbl, err := Open(t.TempDir(), "things.csv", header)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tbl.Path(), []byte("id,name,status\n1,only-two\n"), 0o644))

	_, err = tbl.ReadAll()
	assert.Error(t, err)
}
