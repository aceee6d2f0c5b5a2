package businessflow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func contactsXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseContactFile(t *testing.T) {
	t.Run("CSVHeadersAreNormalized", func(t *testing.T) {
		data := []byte(" Phone_Number , NAME ,City\n+15550001001,Alice,Austin\n")

		columns, contacts, skipped, err := parseContactFile("contacts.csv", data)
		require.NoError(t, err)
		assert.Equal(t, []string{"phone_number", "name", "city"}, columns)
		assert.Equal(t, 0, skipped)
		require.Len(t, contacts, 1)
		assert.Equal(t, "+15550001001", contacts[0].PhoneNumber())
		assert.Equal(t, "Alice", contacts[0].Name())
	})

	t.Run("SkipsRowsWithoutPhone", func(t *testing.T) {
		data := []byte("phone_number,name\n+15550001001,Alice\n,Bob\n   ,Carol\n+15550001002,Dora\n")

		_, contacts, skipped, err := parseContactFile("contacts.csv", data)
		require.NoError(t, err)
		assert.Len(t, contacts, 2)
		assert.Equal(t, 2, skipped)
	})

	t.Run("NanCellsAreBlanked", func(t *testing.T) {
		data := []byte("phone_number,name\n+15550001001,nan\nNaN,Bob\n")

		_, contacts, skipped, err := parseContactFile("contacts.csv", data)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "", contacts[0].Name())
		assert.Equal(t, 1, skipped)
	})

	t.Run("ShortRowsArePadded", func(t *testing.T) {
		data := []byte("phone_number,name,city\n+15550001001,Alice\n")

		_, contacts, _, err := parseContactFile("contacts.csv", data)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "", contacts[0]["city"])
	})

	t.Run("XLSXRows", func(t *testing.T) {
		data := contactsXLSX(t, [][]string{
			{"phone_number", "name"},
			{"+15550002001", "Erin"},
			{"", "Frank"},
		})

		columns, contacts, skipped, err := parseContactFile("contacts.xlsx", data)
		require.NoError(t, err)
		assert.Equal(t, []string{"phone_number", "name"}, columns)
		require.Len(t, contacts, 1)
		assert.Equal(t, "+15550002001", contacts[0].PhoneNumber())
		assert.Equal(t, 1, skipped)
	})

	t.Run("MissingPhoneColumn", func(t *testing.T) {
		data := []byte("email,name\nalice@example.com,Alice\n")

		_, _, _, err := parseContactFile("contacts.csv", data)
		assert.ErrorIs(t, err, ErrPhoneColumnMissing)
	})

	t.Run("UnsupportedExtension", func(t *testing.T) {
		_, _, _, err := parseContactFile("contacts.txt", []byte("phone_number\n+15550001001\n"))
		assert.ErrorIs(t, err, ErrContactsFileType)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		_, _, _, err := parseContactFile("contacts.csv", []byte(""))
		assert.ErrorIs(t, err, ErrContactsFileEmpty)
	})

	t.Run("GarbageXLSX", func(t *testing.T) {
		_, _, _, err := parseContactFile("contacts.xlsx", []byte("not a spreadsheet"))
		assert.ErrorIs(t, err, ErrContactsFileInvalid)
	})
}

func TestNormalizePagination(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		page, pageSize, err := normalizePagination(0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, page)
		assert.Equal(t, 20, pageSize)
	})

	t.Run("PassThrough", func(t *testing.T) {
		page, pageSize, err := normalizePagination(3, 50)
		require.NoError(t, err)
		assert.Equal(t, 3, page)
		assert.Equal(t, 50, pageSize)
	})

	t.Run("NegativePage", func(t *testing.T) {
		_, _, err := normalizePagination(-1, 20)
		assert.ErrorIs(t, err, ErrInvalidPage)
	})

	t.Run("OversizedPage", func(t *testing.T) {
		_, _, err := normalizePagination(1, 101)
		assert.ErrorIs(t, err, ErrInvalidPageSize)
	})
}
