package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a parsed configuration file: string keys mapped to scalars,
// lists or nested mappings. It is read-only once returned.
type Document map[string]any

// ReadDocument parses the YAML file at path into a Document.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, ErrEmptyDocument)
	}

	return doc, nil
}

// Read parses the YAML file at path. Failures are printed to report
// (standard output when nil) and a nil Document is returned, so callers must
// tolerate an absent result. Load does not use it; see ReadDocument.
func Read(path string, report io.Writer) Document {
	doc, err := ReadDocument(path)
	if err != nil {
		if report == nil {
			report = os.Stdout
		}
		fmt.Fprintln(report, err)
		return nil
	}
	return doc
}

// Section returns the nested mapping stored under name.
func (d Document) Section(name string) (Document, bool) {
	switch section := d[name].(type) {
	case map[string]any:
		return Document(section), true
	case Document:
		return section, true
	default:
		return nil, false
	}
}
