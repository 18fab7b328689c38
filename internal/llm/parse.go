package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const MaxProfileLength = 150

var answerLabel = regexp.MustCompile(`(?i)(so the final answer is:|answer:)`)

// ParseList reads a comma-separated answer from the last non-empty line of
// raw, after any answer label.
func ParseList(raw string) ([]string, error) {
	s := raw
	if loc := answerLabel.FindAllStringIndex(s, -1); len(loc) > 0 {
		s = s[loc[len(loc)-1][1]:]
	}

	var last string
	for _, line := range strings.Split(s, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			last = l
		}
	}

	var items []string
	for _, part := range strings.Split(last, ",") {
		part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `."'`+"`"))
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no list items in %q", ErrParse, truncate(raw, 80))
	}
	return items, nil
}

type profilesEnvelope struct {
	Profiles []string `json:"profiles"`
}

// ParseProfiles accepts either a {"profiles": [...]} object or a plain
// comma-separated answer. Every profile must be non-empty and at most
// MaxProfileLength characters.
func ParseProfiles(raw string) ([]string, error) {
	items, ok := parseProfilesJSON(raw)
	if !ok {
		var err error
		items, err = ParseList(raw)
		if err != nil {
			return nil, err
		}
	}

	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if len([]rune(item)) > MaxProfileLength {
			return nil, fmt.Errorf("%w: profile longer than %d characters", ErrParse, MaxProfileLength)
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no profiles", ErrParse)
	}
	return out, nil
}

func parseProfilesJSON(raw string) ([]string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var env profilesEnvelope
	if err := json.Unmarshal([]byte(raw[start:end+1]), &env); err != nil || env.Profiles == nil {
		return nil, false
	}
	return env.Profiles, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
