package records

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"expertdir/apps/recommender/internal/index"
)

// Roster column positions shared by the CSV and XLSX exports.
const (
	EmailColumn  = 3
	SkillsColumn = 7
)

var ErrUnsupportedFormat = errors.New("unsupported roster format")

// Expert is one row of the system of record.
type Expert struct {
	Email  string
	Skills string
}

// Source loads the full system of record.
type Source interface {
	Load(ctx context.Context) ([]Expert, error)
}

// NewFileSource picks the roster reader from the file extension.
func NewFileSource(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVSource(path), nil
	case ".xlsx":
		return NewWorkbookSource(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// OwnerSkills converts experts for index population.
func OwnerSkills(experts []Expert) []index.OwnerSkills {
	out := make([]index.OwnerSkills, 0, len(experts))
	for _, e := range experts {
		out = append(out, index.OwnerSkills{Email: e.Email, Skills: e.Skills})
	}
	return out
}

// rowExpert reads the roster columns of one row. Short rows yield false.
func rowExpert(row []string) (Expert, bool) {
	if len(row) <= SkillsColumn {
		return Expert{}, false
	}
	return Expert{
		Email:  strings.TrimSpace(row[EmailColumn]),
		Skills: row[SkillsColumn],
	}, true
}
