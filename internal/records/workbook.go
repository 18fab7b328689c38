package records

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// WorkbookSource reads the first sheet of an XLSX roster export.
type WorkbookSource struct {
	path string
}

func NewWorkbookSource(path string) *WorkbookSource {
	return &WorkbookSource{path: path}
}

func (s *WorkbookSource) Load(ctx context.Context) ([]Expert, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", sheets[0], err)
	}

	experts := []Expert{}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		e, ok := rowExpert(row)
		if !ok {
			slog.WarnContext(ctx, "skipping short roster row", "sheet", sheets[0], "row", i+1, "columns", len(row))
			continue
		}
		experts = append(experts, e)
	}
	return experts, nil
}
