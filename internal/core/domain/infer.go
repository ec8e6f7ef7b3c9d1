package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// InferColumnType picks the narrowest type every non-empty value fits.
// Columns mixing numbers and text, and columns with no values, are TEXT.
func InferColumnType(values []string) ColumnType {
	sawValue := false
	allInt := true
	allNum := true
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		sawValue = true
		if allInt && !isInteger(v) {
			allInt = false
		}
		if !isNumber(v) {
			allNum = false
			break
		}
	}
	switch {
	case !sawValue:
		return ColumnTypeText
	case allInt:
		return ColumnTypeInteger
	case allNum:
		return ColumnTypeReal
	default:
		return ColumnTypeText
	}
}

// ConvertCell converts a raw cell to the Go value stored for the column type.
// Empty cells become nil.
func ConvertCell(raw string, t ColumnType) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch t {
	case ColumnTypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case ColumnTypeReal:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return raw
}

func isInteger(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

// isNumber accepts decimal notation only; ParseFloat alone would also take
// "NaN", "Inf" and hex floats.
func isNumber(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			continue
		}
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// CleanHeaders names blank headers "Unnamed: <i>" and suffixes repeated
// names with ".1", ".2" and so on. Matching is case-insensitive.
func CleanHeaders(header []string, width int) []string {
	out := make([]string, width)
	used := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for n := 1; used[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		used[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}

// IsEmptySheet reports whether a sheet has no cells at all.
func IsEmptySheet(s Sheet) bool {
	for _, row := range s.Rows {
		if !isBlankRow(row) {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// BuildRelation maps a sheet to a typed relation named name.
// Fully blank data rows are dropped.
func BuildRelation(name string, sheet Sheet) (Relation, error) {
	if err := ValidateRelationName(name); err != nil {
		return Relation{}, err
	}

	// the header is the first non-blank row
	start := 0
	for start < len(sheet.Rows) && isBlankRow(sheet.Rows[start]) {
		start++
	}
	if start == len(sheet.Rows) {
		return Relation{}, fmt.Errorf("%w: sheet %q has no header row", ErrInvalidInput, sheet.Name)
	}
	header := sheet.Rows[start]

	var data [][]string
	width := len(header)
	for _, row := range sheet.Rows[start+1:] {
		if isBlankRow(row) {
			continue
		}
		data = append(data, row)
		if len(row) > width {
			width = len(row)
		}
	}

	names := CleanHeaders(header, width)
	columns := make([]Column, width)
	for c := 0; c < width; c++ {
		values := make([]string, len(data))
		for r, row := range data {
			if c < len(row) {
				values[r] = row[c]
			}
		}
		columns[c] = Column{Name: names[c], Type: InferColumnType(values)}
	}

	rows := make([][]any, len(data))
	for r, row := range data {
		out := make([]any, width)
		for c := 0; c < width; c++ {
			if c < len(row) {
				out[c] = ConvertCell(row[c], columns[c].Type)
			}
		}
		rows[r] = out
	}

	return Relation{Name: name, Columns: columns, Rows: rows}, nil
}

// MapWorkbook applies the tabular-to-relational mapping: a flat source
// yields exactly one relation named "data"; a workbook yields one relation
// per non-empty sheet, named after the sheet. It returns the names of
// skipped empty sheets alongside the relations.
func MapWorkbook(wb Workbook) ([]Relation, []string, error) {
	switch wb.Format {
	case SourceFormatFlat:
		if len(wb.Sheets) != 1 {
			return nil, nil, fmt.Errorf("%w: flat source %s has %d sheets", ErrInvalidInput, wb.FileName, len(wb.Sheets))
		}
		rel, err := BuildRelation(FlatTableName, wb.Sheets[0])
		if err != nil {
			return nil, nil, err
		}
		return []Relation{rel}, nil, nil

	case SourceFormatWorkbook:
		var (
			relations []Relation
			skipped   []string
		)
		seen := make(map[string]string)
		for _, sheet := range wb.Sheets {
			if err := ValidateRelationName(sheet.Name); err != nil {
				return nil, nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
			key := strings.ToLower(sheet.Name)
			if prev, ok := seen[key]; ok {
				return nil, nil, fmt.Errorf("%w: sheets %q and %q collide as table names",
					ErrInvalidIdentifier, prev, sheet.Name)
			}
			seen[key] = sheet.Name
			if IsEmptySheet(sheet) {
				skipped = append(skipped, sheet.Name)
				continue
			}
			rel, err := BuildRelation(sheet.Name, sheet)
			if err != nil {
				return nil, nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
			relations = append(relations, rel)
		}
		if len(relations) == 0 {
			return nil, nil, fmt.Errorf("%w: workbook %s has no data", ErrInvalidInput, wb.FileName)
		}
		return relations, skipped, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, wb.FileName)
	}
}
