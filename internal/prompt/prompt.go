package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var defaultLibrary []byte

type Example struct {
	Question string   `yaml:"question"`
	Roles    []string `yaml:"roles"`
}

// Library holds the few-shot profile examples and the keyword template.
type Library struct {
	Examples []Example `yaml:"examples"`
	Suffix   string    `yaml:"suffix"`
	Keywords string    `yaml:"keywords"`

	profiles *template.Template
	keywords *template.Template
}

var exampleTmpl = template.Must(template.New("example").Funcs(template.FuncMap{"join": strings.Join}).Parse(`Question: {{.Question}}
Are follow up questions needed here: Yes.
{{range .Roles}}Follow up: Is a {{.}} important for the project?
Intermediate answer: Yes.
{{end}}So the final answer is: {{join .Roles ", "}}
`))

// Default returns the built-in library.
func Default() (*Library, error) {
	return Parse(defaultLibrary)
}

// Load reads a library from path, or returns the built-in one when path is
// empty.
func Load(path string) (*Library, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parse prompt library: %w", err)
	}
	if len(lib.Examples) == 0 {
		return nil, fmt.Errorf("prompt library has no examples")
	}
	if !strings.Contains(lib.Suffix, "{{.Question}}") {
		return nil, fmt.Errorf("prompt suffix must reference {{.Question}}")
	}
	if !strings.Contains(lib.Keywords, "{{.Document}}") {
		return nil, fmt.Errorf("keyword prompt must reference {{.Document}}")
	}

	var err error
	if lib.profiles, err = template.New("profiles").Parse(lib.Suffix); err != nil {
		return nil, fmt.Errorf("parse suffix: %w", err)
	}
	if lib.keywords, err = template.New("keywords").Parse(lib.Keywords); err != nil {
		return nil, fmt.Errorf("parse keyword template: %w", err)
	}
	return &lib, nil
}

// Profiles renders the few-shot prompt asking for the expert profiles a
// question needs.
func (l *Library) Profiles(question string) (string, error) {
	var b bytes.Buffer
	for _, ex := range l.Examples {
		if err := exampleTmpl.Execute(&b, ex); err != nil {
			return "", err
		}
		b.WriteString("\n")
	}
	if err := l.profiles.Execute(&b, struct{ Question string }{question}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Keywords renders the keyword extraction prompt for one paragraph.
func (l *Library) Keywords(document string) (string, error) {
	var b bytes.Buffer
	if err := l.keywords.Execute(&b, struct{ Document string }{document}); err != nil {
		return "", err
	}
	return b.String(), nil
}
