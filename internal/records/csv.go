package records

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Load(ctx context.Context) ([]Expert, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	experts, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", s.path, err)
	}
	return experts, nil
}

// ReadCSV reads a roster export. The header row is skipped.
func ReadCSV(ctx context.Context, r io.Reader) ([]Expert, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []Expert{}, nil
		}
		return nil, err
	}

	experts := []Expert{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		e, ok := rowExpert(row)
		if !ok {
			slog.WarnContext(ctx, "skipping short roster row", "line", line, "columns", len(row))
			continue
		}
		experts = append(experts, e)
	}
	return experts, nil
}
