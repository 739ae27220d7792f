// Package catalog loads the static course dataset that feeds the search index.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/utafrali/coursesearch/internal/domain"
)

//go:embed data/sample-courses.json
var sampleCourses []byte

// Format is the encoding of a dataset file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Source provides the full list of courses to index.
type Source interface {
	Load(ctx context.Context) ([]domain.Course, error)
	// Name identifies the source in logs.
	Name() string
}

// NewSource returns a file source for path, or the bundled dataset when path
// is empty.
func NewSource(path string) Source {
	if path == "" {
		return Embedded()
	}
	return &FileSource{Path: path}
}

type embeddedSource struct{}

// Embedded returns the dataset compiled into the binary.
func Embedded() Source {
	return embeddedSource{}
}

func (embeddedSource) Name() string { return "embedded:sample-courses.json" }

func (embeddedSource) Load(_ context.Context) ([]domain.Course, error) {
	return Decode(sampleCourses, FormatJSON)
}

// FileSource reads the dataset from disk on every Load, so edits are picked
// up by the next reindex.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (s *FileSource) Name() string { return s.Path }

// Load reads and decodes the file.
func (s *FileSource) Load(ctx context.Context) ([]domain.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", s.Path, err)
	}
	courses, err := Decode(data, FormatFromPath(s.Path))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", s.Path, err)
	}
	return courses, nil
}

// Decode parses a JSON or YAML array of courses. Every course must carry an ID.
func Decode(data []byte, format Format) ([]domain.Course, error) {
	var courses []domain.Course
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &courses); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&courses); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}

	for i := range courses {
		if strings.TrimSpace(courses[i].ID) == "" {
			return nil, fmt.Errorf("course at position %d has no id", i)
		}
	}
	return courses, nil
}

// PrepareForIndex fills the derived suggestion field of every course.
func PrepareForIndex(courses []domain.Course) {
	for i := range courses {
		courses[i].TitleSuggest = courses[i].Title
	}
}
