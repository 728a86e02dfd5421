package workbook

import (
	"strings"

	"github.com/recaops/ods-sync/internal/schema"
)

// RecordAt materializes one data row into canonical fields through the
// sheet's header mapping. Unmapped columns are ignored.
func (s *Sheet) RecordAt(row []string) schema.Record {
	rec := make(schema.Record, len(s.Headers))
	for idx, header := range s.Headers {
		if header.Field == "" {
			continue
		}
		value := ""
		if idx < len(row) {
			value = row[idx]
		}
		rec[header.Field] = value
	}
	return rec
}

// matches reports whether a materialized row equals the original record on
// every configured match field, using trimmed-string comparison so that
// numeric/string drift between records and cells never causes a mismatch.
func matches(original, candidate schema.Record) bool {
	for _, key := range schema.MatchKeys {
		if schema.Coerce(original[key]) != schema.Coerce(candidate[key]) {
			return false
		}
	}
	return true
}

// FindRow scans a sheet's data rows from row 2 downward and returns the
// 1-based index of the first row whose match fields equal the original's.
// Fully blank rows are skipped. The datasets are small and human-entered;
// a linear scan avoids keeping an index consistent with manual edits.
// When several rows carry the same key, the lowest index wins.
func (b *Book) FindRow(sheet *Sheet, original schema.Record) (int, bool, error) {
	rows, err := b.Rows(sheet)
	if err != nil {
		return 0, false, err
	}
	for i := 1; i < len(rows); i++ {
		if rowBlank(rows[i]) {
			continue
		}
		if matches(original, sheet.RecordAt(rows[i])) {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// FirstBlankRow returns the 1-based index of the first fully blank data row,
// or the row just past the used region when none exists.
func (b *Book) FirstBlankRow(sheet *Sheet) (int, error) {
	rows, err := b.Rows(sheet)
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(rows); i++ {
		if rowBlank(rows[i]) {
			return i + 1, nil
		}
	}
	if len(rows) < 2 {
		return 2, nil
	}
	return len(rows) + 1, nil
}

// rowBlank reports whether every cell of a row is empty after trimming.
func rowBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
