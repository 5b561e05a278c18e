package qualifiers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = "email,unicity_id,first_name,last_name,phone,locale,guest_allowance\n"

func TestParseCSVHappyPath(t *testing.T) {
	in := csvHeader +
		"ada@example.com,U-100,Ada,Lovelace,+15550001,en,2\n" +
		"grace@example.com,U-200,Grace,Hopper,,es,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Empty(t, res.Duplicates)
	assert.Empty(t, res.RowErrors)

	first := res.Rows[0]
	assert.Equal(t, "ada@example.com", first.Email)
	require.NotNil(t, first.UnicityID)
	assert.Equal(t, "U-100", *first.UnicityID)
	require.NotNil(t, first.GuestAllowance)
	assert.Equal(t, 2, *first.GuestAllowance)

	second := res.Rows[1]
	assert.Nil(t, second.GuestAllowance)
	assert.Equal(t, "es", second.Locale)
}

func TestParseCSVLowercasesEmail(t *testing.T) {
	in := csvHeader + "Ada@Example.COM,U-100,Ada,Lovelace,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ada@example.com", res.Rows[0].Email)
}

func TestParseCSVConflictingUnicityID(t *testing.T) {
	in := csvHeader +
		"ada@example.com,U-100,Ada,Lovelace,,,\n" +
		"grace@example.com,U-100,Grace,Hopper,,,\n" +
		"ida@example.com,U-100,Ida,Rhodes,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)

	require.Len(t, res.Duplicates, 1)
	dup := res.Duplicates[0]
	assert.Equal(t, "U-100", dup.UnicityID)
	assert.ElementsMatch(t, []string{"ada@example.com", "grace@example.com", "ida@example.com"}, dup.Emails)
	// first line still parses; callers must refuse to insert when Duplicates
	// is non-empty
	assert.Len(t, res.Rows, 1)
}

func TestParseCSVSkipDuplicates(t *testing.T) {
	in := csvHeader +
		"ada@example.com,U-100,Ada,Lovelace,,,\n" +
		"grace@example.com,U-100,Grace,Hopper,,,\n"
	res, err := ParseCSV(strings.NewReader(in), true)
	require.NoError(t, err)
	assert.Empty(t, res.Duplicates)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ada@example.com", res.Rows[0].Email)
	assert.Equal(t, 1, res.Skipped)
}

func TestParseCSVExactRepeatCollapses(t *testing.T) {
	in := csvHeader +
		"ada@example.com,U-100,Ada,Lovelace,,,\n" +
		"ada@example.com,U-100,Ada,Lovelace,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	assert.Empty(t, res.Duplicates)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Skipped)
}

func TestParseCSVInvalidEmail(t *testing.T) {
	in := csvHeader + "not-an-email,U-100,Ada,Lovelace,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.RowErrors, 1)
	assert.Equal(t, 2, res.RowErrors[0].Line)
	assert.Contains(t, res.RowErrors[0].Message, "email")
}

func TestParseCSVMissingFirstName(t *testing.T) {
	in := csvHeader + "ada@example.com,U-100,,Lovelace,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.RowErrors, 1)
	assert.Contains(t, res.RowErrors[0].Message, "firstname")
}

func TestParseCSVCompanyRowWithoutLastName(t *testing.T) {
	in := csvHeader + "acme@example.com,U-900,Acme Corp,,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	assert.Empty(t, res.RowErrors)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Acme Corp", res.Rows[0].FirstName)
	assert.Equal(t, "", res.Rows[0].LastName)
}

func TestParseCSVBadHeader(t *testing.T) {
	in := "mail,id,first,last,phone,locale,allowance\nada@example.com,U-100,Ada,Lovelace,,,\n"
	_, err := ParseCSV(strings.NewReader(in), false)
	require.Error(t, err)
}

func TestParseCSVShortRecord(t *testing.T) {
	in := csvHeader + "ada@example.com,U-100,Ada\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.RowErrors, 1)
}

func TestParseCSVEmptyUnicityIDNeverConflicts(t *testing.T) {
	in := csvHeader +
		"ada@example.com,,Ada,Lovelace,,,\n" +
		"grace@example.com,,Grace,Hopper,,,\n"
	res, err := ParseCSV(strings.NewReader(in), false)
	require.NoError(t, err)
	assert.Empty(t, res.Duplicates)
	assert.Len(t, res.Rows, 2)
}
