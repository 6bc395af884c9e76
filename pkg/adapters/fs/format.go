package fs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// record is a note as stored on disk.
type record struct {
	Text    string
	Created time.Time
	Updated time.Time
}

// Serializer defines how to read and write a note file of a given format.
type Serializer interface {
	Parse(data []byte) (record, error)
	Serialize(rec record) ([]byte, error)
}

// DefaultSerializers returns the standard set of serializers keyed by extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".md":   MarkdownSerializer{},
		".txt":  MarkdownSerializer{},
		".json": JSONSerializer{},
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
	}
}

// frontmatter holds the timestamps kept next to the note text.
type frontmatter struct {
	Created time.Time `yaml:"created,omitempty" json:"created,omitempty"`
	Updated time.Time `yaml:"updated,omitempty" json:"updated,omitempty"`
}

// --- Markdown Serializer ---

// MarkdownSerializer stores the text as the body and timestamps as YAML front matter.
// Files written by other tools without front matter are read as plain text.
type MarkdownSerializer struct{}

func (MarkdownSerializer) Parse(data []byte) (record, error) {
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return record{Text: string(data)}, nil
	}

	rest := data[3:]
	parts := bytes.SplitN(rest, []byte("\n---"), 2)
	if len(parts) == 1 {
		return record{}, errors.New("frontmatter started but no closing delimiter found")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return record{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	body := strings.TrimPrefix(string(parts[1]), "\r")
	body = strings.TrimPrefix(body, "\n")
	return record{Text: body, Created: fm.Created, Updated: fm.Updated}, nil
}

func (MarkdownSerializer) Serialize(rec record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(frontmatter{Created: rec.Created, Updated: rec.Updated}); err != nil {
		return nil, err
	}
	encoder.Close()
	buf.WriteString("---\n")
	buf.WriteString(rec.Text)
	return buf.Bytes(), nil
}

// --- JSON Serializer ---

type jsonPayload struct {
	Note string `json:"note" yaml:"note"`
	frontmatter `yaml:",inline"`
}

// JSONSerializer stores a note as a JSON object.
type JSONSerializer struct{}

func (JSONSerializer) Parse(data []byte) (record, error) {
	var p jsonPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return record{}, fmt.Errorf("invalid json: %w", err)
	}
	return record{Text: p.Note, Created: p.Created, Updated: p.Updated}, nil
}

func (JSONSerializer) Serialize(rec record) ([]byte, error) {
	p := jsonPayload{Note: rec.Text, frontmatter: frontmatter{Created: rec.Created, Updated: rec.Updated}}
	return json.MarshalIndent(p, "", "  ")
}

// --- YAML Serializer ---

// YAMLSerializer stores a note as a YAML mapping.
type YAMLSerializer struct{}

func (YAMLSerializer) Parse(data []byte) (record, error) {
	var p jsonPayload
	if err := yaml.Unmarshal(data, &p); err != nil {
		return record{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return record{Text: p.Note, Created: p.Created, Updated: p.Updated}, nil
}

func (YAMLSerializer) Serialize(rec record) ([]byte, error) {
	p := jsonPayload{Note: rec.Text, frontmatter: frontmatter{Created: rec.Created, Updated: rec.Updated}}
	return yaml.Marshal(p)
}
