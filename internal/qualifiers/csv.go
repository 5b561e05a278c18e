package qualifiers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lumen-events/backend/internal/models"
)

var validate = validator.New()

// importRow mirrors one CSV line. Column order is fixed by the header. The
// last name may be blank: company-name entries carry the whole name in
// first_name.
type importRow struct {
	Email          string `validate:"required,email"`
	UnicityID      string `validate:"omitempty,max=64"`
	FirstName      string `validate:"required,max=128"`
	LastName       string `validate:"max=128"`
	Phone          string `validate:"omitempty,max=32"`
	Locale         string `validate:"omitempty,bcp47_language_tag"`
	GuestAllowance string `validate:"omitempty,number"`
}

// DuplicateID reports a unicity ID that appears on more than one line with
// conflicting emails.
type DuplicateID struct {
	UnicityID string   `json:"unicity_id"`
	Emails    []string `json:"emails"`
}

// RowError reports one rejected CSV line. Line numbers are 1-based and count
// the header.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult is what a parse produces: the rows to insert, any conflicting
// unicity IDs, and per-line validation failures.
type ImportResult struct {
	Rows       []models.QualifiedRegistrant
	Duplicates []DuplicateID
	RowErrors  []RowError
	Skipped    int
}

var expectedHeader = []string{"email", "unicity_id", "first_name", "last_name", "phone", "locale", "guest_allowance"}

// ParseCSV reads a qualification list export. A unicity ID appearing twice
// with the same email collapses to the first line; the same ID under two
// different emails rejects the whole file unless skipDuplicates is set, in
// which case later conflicting lines are dropped and counted.
func ParseCSV(r io.Reader, skipDuplicates bool) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < len(expectedHeader) {
		return nil, fmt.Errorf("expected header %s", strings.Join(expectedHeader, ","))
	}
	for i, col := range expectedHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i+1, col, header[i])
		}
	}

	res := &ImportResult{}
	byID := make(map[string]string) // unicity ID -> first email seen
	seenEmail := make(map[string]struct{})
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Message: err.Error()})
			continue
		}
		row := importRow{
			Email:          strings.ToLower(strings.TrimSpace(record[0])),
			UnicityID:      strings.TrimSpace(record[1]),
			FirstName:      strings.TrimSpace(record[2]),
			LastName:       strings.TrimSpace(record[3]),
			Phone:          strings.TrimSpace(record[4]),
			Locale:         strings.TrimSpace(record[5]),
			GuestAllowance: strings.TrimSpace(record[6]),
		}
		if err := validate.Struct(row); err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Message: rowErrorMessage(err)})
			continue
		}

		if row.UnicityID != "" {
			if prev, ok := byID[row.UnicityID]; ok {
				if prev == row.Email {
					res.Skipped++ // exact repeat, harmless
					continue
				}
				if skipDuplicates {
					res.Skipped++
					continue
				}
				res.Duplicates = appendDuplicate(res.Duplicates, row.UnicityID, prev, row.Email)
				continue
			}
			byID[row.UnicityID] = row.Email
		}
		if _, ok := seenEmail[row.Email]; ok {
			res.Skipped++
			continue
		}
		seenEmail[row.Email] = struct{}{}

		q := models.QualifiedRegistrant{
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Phone:     row.Phone,
			Locale:    row.Locale,
		}
		if row.UnicityID != "" {
			id := row.UnicityID
			q.UnicityID = &id
		}
		if row.GuestAllowance != "" {
			n, _ := strconv.Atoi(row.GuestAllowance)
			q.GuestAllowance = &n
		}
		res.Rows = append(res.Rows, q)
	}
	return res, nil
}

func appendDuplicate(dups []DuplicateID, id, first, second string) []DuplicateID {
	for i := range dups {
		if dups[i].UnicityID == id {
			for _, e := range dups[i].Emails {
				if e == second {
					return dups
				}
			}
			dups[i].Emails = append(dups[i].Emails, second)
			return dups
		}
	}
	return append(dups, DuplicateID{UnicityID: id, Emails: []string{first, second}})
}

func rowErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(fields, "; ")
}
