package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.TabularReader = (*Reader)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader reads .csv files as flat sources and .xlsx/.xlsm files as
// workbooks. Legacy .xls files are listed so they are reported, but
// reading one fails with ErrUnsupportedType.
type Reader struct{}

// NewReader creates a new tabular reader.
func NewReader() *Reader {
	return &Reader{}
}

// SupportedExtensions returns the extensions picked up from the data inbox.
func (r *Reader) SupportedExtensions() []string {
	return []string{".csv", ".xlsx", ".xlsm", ".xls"}
}

// Read loads every cell of the file as text.
func (r *Reader) Read(ctx context.Context, path string) (*domain.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path, name)
	case ".xlsx", ".xlsm":
		return readWorkbook(path, name)
	case ".xls":
		return nil, fmt.Errorf("%w: %s is a legacy .xls workbook; save it as .xlsx", domain.ErrUnsupportedType, name)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, name)
	}
}

func readCSV(path, name string) (*domain.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, name, err)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, name)
	}

	logger.Debug("Read %s: %d rows", name, len(rows))
	return &domain.Workbook{
		FileName: name,
		Format:   domain.SourceFormatFlat,
		Sheets:   []domain.Sheet{{Name: domain.FlatTableName, Rows: rows}},
	}, nil
}

func readWorkbook(path, name string) (*domain.Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrInvalidInput, name, err)
	}
	defer func() { _ = f.Close() }()

	wb := &domain.Workbook{FileName: name, Format: domain.SourceFormatWorkbook}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %s sheet %q: %v", domain.ErrInvalidInput, name, sheet, err)
		}
		logger.Debug("Read %s sheet %q: %d rows", name, sheet, len(rows))
		wb.Sheets = append(wb.Sheets, domain.Sheet{Name: sheet, Rows: rows})
	}
	return wb, nil
}
