package cluster

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// File is the YAML cluster definition format:
//
//	clusters:
//	  - name: vehicle
//	    forms: [car, auto, motor vehicle]
//	topics: [engine, fuel economy]
type File struct {
	Clusters []Cluster `yaml:"clusters" json:"clusters"`
	Topics   []string  `yaml:"topics" json:"topics"`
}

// ParseFile decodes a cluster definition.  Unknown keys are rejected.
func ParseFile(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidCluster, "failed to parse cluster file")
	}
	for i, c := range f.Clusters {
		if c.Name == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidCluster, "cluster %d has an empty name", i)
		}
	}
	return &f, nil
}

// ReadFile loads and parses the cluster file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidCluster, "failed to read cluster file").
			WithDetail(path)
	}
	return ParseFile(bytes.NewReader(data))
}

// Apply installs f into r as a single generation step.
func (f *File) Apply(r *Registry) error {
	return r.Replace(f.Clusters, f.Topics)
}

// LoadInto reads path and applies it to r.
func LoadInto(r *Registry, path string) error {
	f, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := f.Apply(r); err != nil {
		return fmt.Errorf("apply %s: %w", path, err)
	}
	return nil
}

// Export returns the registry contents in File form.
func Export(s *Snapshot) *File {
	topics := s.Topics()
	topics = append(topics, s.MultiWordTopics()...)
	return &File{Clusters: s.Clusters(), Topics: topics}
}

// Encode writes f as YAML.
func (f *File) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
