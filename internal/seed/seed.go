// Package seed loads exam fixtures from YAML into a store.
//
// A fixture looks like:
//
//	exams:
//	  - name: Mathematics 101
//	    start: 2024-02-13T10:00:00Z
//	    end: {days: 1, hour: 10, minute: 45}
//	    students: 2400
//
// Times are either RFC 3339 timestamps or a mapping resolved against a
// reference time: the date is moved by days and the clock set to hour:minute.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/examvm/pkg/model"
)

//go:embed demo.yaml
var demo []byte

// timeLayouts are tried in order for scalar times.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// File is a decoded fixture document.
type File struct {
	Entries []ExamEntry `yaml:"exams"`
}

// ExamEntry is one exam as written in a fixture.
type ExamEntry struct {
	Name     string `yaml:"name"`
	Start    When   `yaml:"start"`
	End      When   `yaml:"end"`
	Students int    `yaml:"students"`
}

// Relative is a time of day a number of days after the reference date.
type Relative struct {
	Days   int `yaml:"days"`
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

// When is an absolute or relative instant.
type When struct {
	At       time.Time
	Relative *Relative
}

// UnmarshalYAML accepts a timestamp scalar or a Relative mapping.
func (w *When) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, node.Value); err == nil {
				w.At = t
				return nil
			}
		}
		return fmt.Errorf("line %d: invalid time %q", node.Line, node.Value)
	case yaml.MappingNode:
		var r Relative
		if err := node.Decode(&r); err != nil {
			return err
		}
		if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
			return fmt.Errorf("line %d: invalid time of day %02d:%02d", node.Line, r.Hour, r.Minute)
		}
		w.Relative = &r
		return nil
	default:
		return fmt.Errorf("line %d: time must be a timestamp or a {days, hour, minute} mapping", node.Line)
	}
}

// Resolve returns the instant w denotes relative to ref.
func (w When) Resolve(ref time.Time) time.Time {
	if w.Relative == nil {
		return w.At
	}
	y, m, d := ref.Date()
	return time.Date(y, m, d+w.Relative.Days, w.Relative.Hour, w.Relative.Minute, 0, 0, ref.Location())
}

// Parse decodes a fixture. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// ParseFile decodes the fixture at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Demo returns the built-in fixture: six exams starting tomorrow.
func Demo() *File {
	f, err := Parse(bytes.NewReader(demo))
	if err != nil {
		panic(fmt.Sprintf("seed: built-in fixture: %v", err))
	}
	return f
}

// Exams resolves every entry against ref and validates it. All invalid
// entries are reported together.
func (f *File) Exams(ref time.Time) ([]*model.Exam, error) {
	exams := make([]*model.Exam, 0, len(f.Entries))
	var errs []error
	for i, entry := range f.Entries {
		exam := &model.Exam{
			Name:     entry.Name,
			Start:    entry.Start.Resolve(ref),
			End:      entry.End.Resolve(ref),
			Students: entry.Students,
		}
		if err := exam.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("exam %d (%q): %w", i, entry.Name, err))
			continue
		}
		exams = append(exams, exam)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return exams, nil
}

// ExamCreator persists a new exam and assigns its ID.
type ExamCreator interface {
	CreateExam(ctx context.Context, exam *model.Exam) error
}

// Load inserts exams in order and returns how many were stored.
func Load(ctx context.Context, st ExamCreator, exams []*model.Exam) (int, error) {
	for i, exam := range exams {
		if err := st.CreateExam(ctx, exam); err != nil {
			return i, fmt.Errorf("create exam %q: %w", exam.Name, err)
		}
	}
	return len(exams), nil
}
