package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const notSerializable = "<not serializable>"

type profileFile struct {
	Profiles map[string]struct {
		Email       string `json:"email"`
		Experiences []struct {
			Description *string `json:"description"`
		} `json:"experiences"`
	} `json:"profiles"`
}

// ReadProfiles reads scraper output and returns the experience text of
// each profile keyed by email.
func ReadProfiles(r io.Reader) (map[string]string, error) {
	var file profileFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding profiles: %w", err)
	}

	out := make(map[string]string, len(file.Profiles))
	for _, p := range file.Profiles {
		if p.Email == "" {
			continue
		}
		var parts []string
		for _, exp := range p.Experiences {
			if exp.Description == nil || *exp.Description == "" || strings.Contains(*exp.Description, notSerializable) {
				continue
			}
			parts = append(parts, *exp.Description)
		}
		out[p.Email] = strings.Join(parts, "\n")
	}
	return out, nil
}

// Merge appends each expert's profile text to their roster skills. Roster
// order is kept and profiles without a roster row are ignored.
func Merge(ctx context.Context, roster []Expert, profiles map[string]string) []Expert {
	out := make([]Expert, len(roster))
	for i, e := range roster {
		out[i] = e
		extra, ok := profiles[e.Email]
		if !ok {
			slog.DebugContext(ctx, "no profile for expert", "email", e.Email)
			continue
		}
		if extra != "" {
			out[i].Skills = e.Skills + "\n" + extra
		}
	}
	return out
}

// ProfileSource supplements another source with a scraper profile file.
type ProfileSource struct {
	base Source
	path string
}

func WithProfiles(base Source, path string) Source {
	if path == "" {
		return base
	}
	return &ProfileSource{base: base, path: path}
}

func (s *ProfileSource) Load(ctx context.Context) ([]Expert, error) {
	roster, err := s.base.Load(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening profiles: %w", err)
	}
	defer f.Close()

	profiles, err := ReadProfiles(f)
	if err != nil {
		return nil, err
	}
	return Merge(ctx, roster, profiles), nil
}
