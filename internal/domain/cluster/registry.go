// Package cluster implements the topic cluster registry: user-defined
// synonym clusters collapsing surface forms onto one canonical lemma, and
// forced single- and multi-word topics.
//
// The registry is copy-on-write.  Every mutation publishes a new immutable
// Snapshot with a higher generation; an analysis run takes one Snapshot and
// uses it throughout, so edits between runs are the only edits it sees.
package cluster

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// undefinedPrefix marks the placeholder key a cluster with no surface forms
// is stored under.
const undefinedPrefix = "\x00undefined:"

// Cluster is one synonym cluster: every form maps to Name.
type Cluster struct {
	Name  string   `json:"name" yaml:"name"`
	Forms []string `json:"forms" yaml:"forms,omitempty"`
}

// Snapshot is an immutable view of the registry at one generation.
type Snapshot struct {
	generation uint64
	synonyms   map[string]string   // surface form → canonical lemma
	clusters   map[string][]string // canonical lemma → declared forms
	order      []string            // canonical lemmas in declaration order
	phrases    []string            // multi-word topics and forms, longest first
	multiWord  map[string]struct{}
	topics     map[string]struct{}
	topicOrder []string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		synonyms:  map[string]string{},
		clusters:  map[string][]string{},
		multiWord: map[string]struct{}{},
		topics:    map[string]struct{}{},
	}
}

func (s *Snapshot) clone() *Snapshot {
	c := &Snapshot{
		generation: s.generation,
		synonyms:   make(map[string]string, len(s.synonyms)),
		clusters:   make(map[string][]string, len(s.clusters)),
		order:      append([]string(nil), s.order...),
		phrases:    append([]string(nil), s.phrases...),
		multiWord:  make(map[string]struct{}, len(s.multiWord)),
		topics:     make(map[string]struct{}, len(s.topics)),
		topicOrder: append([]string(nil), s.topicOrder...),
	}
	for k, v := range s.synonyms {
		c.synonyms[k] = v
	}
	for k, v := range s.clusters {
		c.clusters[k] = v
	}
	for k := range s.multiWord {
		c.multiWord[k] = struct{}{}
	}
	for k := range s.topics {
		c.topics[k] = struct{}{}
	}
	return c
}

// Generation increases on every registry mutation.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Lookup returns the canonical lemma for an exact surface form.
func (s *Snapshot) Lookup(surface string) (string, bool) {
	if surface == "" {
		return "", false
	}
	lemma, ok := s.synonyms[surface]
	return lemma, ok
}

// IsClusterLemma reports whether lemma is a declared cluster name, defined
// or not.
func (s *Snapshot) IsClusterLemma(lemma string) bool {
	_, ok := s.clusters[lemma]
	return ok
}

// IsClusterDefined reports whether lemma is a cluster with at least one
// surface form.
func (s *Snapshot) IsClusterDefined(lemma string) bool {
	if !s.IsClusterLemma(lemma) {
		return false
	}
	_, placeholder := s.synonyms[undefinedPrefix+lemma]
	return !placeholder
}

// Clusters returns the declared clusters in declaration order.
func (s *Snapshot) Clusters() []Cluster {
	out := make([]Cluster, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Cluster{Name: name, Forms: append([]string(nil), s.clusters[name]...)})
	}
	return out
}

// ClusterNames returns the canonical lemmas in declaration order.
func (s *Snapshot) ClusterNames() []string {
	return append([]string(nil), s.order...)
}

// UndefinedClusters returns the declared clusters that have no forms.
func (s *Snapshot) UndefinedClusters() []string {
	var out []string
	for _, name := range s.order {
		if !s.IsClusterDefined(name) {
			out = append(out, name)
		}
	}
	return out
}

// IsTopic reports whether lemma is a forced single- or multi-word topic.
func (s *Snapshot) IsTopic(lemma string) bool {
	l := strings.ToLower(lemma)
	if _, ok := s.topics[l]; ok {
		return true
	}
	_, ok := s.multiWord[l]
	return ok
}

// Topics returns the forced single-word topics in insertion order.
func (s *Snapshot) Topics() []string { return append([]string(nil), s.topicOrder...) }

// MultiWordTopics returns the forced multi-word topics, longest first.
func (s *Snapshot) MultiWordTopics() []string {
	var out []string
	for _, p := range s.phrases {
		if _, ok := s.multiWord[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Phrases returns every multi-word string the normalizer should merge:
// forced multi-word topics and multi-word cluster forms, longest first.
func (s *Snapshot) Phrases() []string { return append([]string(nil), s.phrases...) }

// Counts returns the number of synonym forms, clusters and forced topics.
func (s *Snapshot) Counts() (synonyms, clusters, topics int) {
	for k := range s.synonyms {
		if !strings.HasPrefix(k, undefinedPrefix) {
			synonyms++
		}
	}
	return synonyms, len(s.clusters), len(s.topics) + len(s.multiWord)
}

// Registry holds the current Snapshot and serializes mutations.
type Registry struct {
	mu      sync.Mutex
	current *Snapshot
}

// NewRegistry returns an empty registry at generation 0.
func NewRegistry() *Registry {
	return &Registry{current: emptySnapshot()}
}

// Pin returns a registry fixed at s, for work that must see a single
// generation from start to finish.
func Pin(s *Snapshot) *Registry {
	if s == nil {
		s = emptySnapshot()
	}
	return &Registry{current: s}
}

// Casers carry state and are built per call.

func lowerCase(s string) string { return cases.Lower(language.Und).String(s) }

// normalizePhrase lowercases s and collapses inner whitespace.
func normalizePhrase(s string) string {
	return lowerCase(strings.Join(strings.Fields(s), " "))
}

// Snapshot returns the current immutable view.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Generation is shorthand for Snapshot().Generation().
func (r *Registry) Generation() uint64 { return r.Snapshot().Generation() }

func (r *Registry) update(fn func(s *Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.current.clone()
	fn(next)
	next.generation = r.current.generation + 1
	r.current = next
}

// variants returns the original, lowercase, capitalized and title-cased
// forms of surface.
func variants(surface string) []string {
	lower := lowerCase(surface)
	capitalized := lower
	if first, size := utf8.DecodeRuneInString(lower); first != utf8.RuneError {
		capitalized = cases.Upper(language.Und).String(string(first)) + lower[size:]
	}
	return []string{surface, lower, capitalized, cases.Title(language.Und).String(lower)}
}

// SetSynonyms replaces the synonym table.  A cluster without forms is kept
// under a placeholder key and reported by UndefinedClusters.
func (r *Registry) SetSynonyms(clusters []Cluster) error {
	seen := make(map[string]struct{}, len(clusters))
	for i, c := range clusters {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return errors.Newf(errors.ErrCodeInvalidCluster, "cluster %d has an empty name", i)
		}
		key := lowerCase(name)
		if _, dup := seen[key]; dup {
			return errors.Newf(errors.ErrCodeInvalidCluster, "cluster %q declared twice", name)
		}
		seen[key] = struct{}{}
	}

	r.update(func(s *Snapshot) {
		s.synonyms = make(map[string]string)
		s.clusters = make(map[string][]string, len(clusters))
		s.order = s.order[:0]

		for _, c := range clusters {
			name := lowerCase(strings.TrimSpace(c.Name))
			s.order = append(s.order, name)

			var forms []string
			for _, f := range c.Forms {
				f = strings.Join(strings.Fields(f), " ")
				if f == "" {
					continue
				}
				forms = append(forms, f)
				for _, v := range variants(f) {
					s.synonyms[v] = name
				}
			}
			s.clusters[name] = forms
			if len(forms) == 0 {
				s.synonyms[undefinedPrefix+name] = name
			}
		}
		rebuildPhrases(s)
	})
	return nil
}

// SetMultiWordTopics replaces the forced multi-word topic list.
func (r *Registry) SetMultiWordTopics(topics []string) {
	r.update(func(s *Snapshot) {
		s.multiWord = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			t = normalizePhrase(t)
			if strings.Contains(t, " ") {
				s.multiWord[t] = struct{}{}
			}
		}
		rebuildPhrases(s)
	})
}

// rebuildPhrases orders multi-word strings by descending word count so the
// longest candidate is matched first.  Ties break alphabetically.
func rebuildPhrases(s *Snapshot) {
	set := make(map[string]struct{}, len(s.multiWord))
	for p := range s.multiWord {
		set[p] = struct{}{}
	}
	for _, forms := range s.clusters {
		for _, f := range forms {
			if strings.Contains(f, " ") {
				set[lowerCase(f)] = struct{}{}
			}
		}
	}
	phrases := make([]string, 0, len(set))
	for p := range set {
		phrases = append(phrases, p)
	}
	sort.Slice(phrases, func(i, j int) bool {
		wi, wj := strings.Count(phrases[i], " "), strings.Count(phrases[j], " ")
		if wi != wj {
			return wi > wj
		}
		return phrases[i] < phrases[j]
	})
	s.phrases = phrases
}

// AddTopic adds a forced single-word topic.  Multi-word input is routed to
// the multi-word list.
func (r *Registry) AddTopic(topic string) {
	t := normalizePhrase(topic)
	if t == "" {
		return
	}
	r.update(func(s *Snapshot) {
		if strings.Contains(t, " ") {
			s.multiWord[t] = struct{}{}
			rebuildPhrases(s)
			return
		}
		if _, ok := s.topics[t]; !ok {
			s.topics[t] = struct{}{}
			s.topicOrder = append(s.topicOrder, t)
		}
	})
}

// RemoveTopic removes a forced topic of either kind.
func (r *Registry) RemoveTopic(topic string) {
	t := normalizePhrase(topic)
	r.update(func(s *Snapshot) {
		delete(s.topics, t)
		delete(s.multiWord, t)
		for i, o := range s.topicOrder {
			if o == t {
				s.topicOrder = append(s.topicOrder[:i], s.topicOrder[i+1:]...)
				break
			}
		}
		rebuildPhrases(s)
	})
}

// ClearTopics removes every forced single-word topic.
func (r *Registry) ClearTopics() {
	r.update(func(s *Snapshot) {
		s.topics = map[string]struct{}{}
		s.topicOrder = nil
	})
}

// SetTopics replaces all forced topics, splitting single- and multi-word.
func (r *Registry) SetTopics(topics []string) {
	var single, multi []string
	for _, t := range topics {
		t = normalizePhrase(t)
		switch {
		case t == "":
		case strings.Contains(t, " "):
			multi = append(multi, t)
		default:
			single = append(single, t)
		}
	}
	r.update(func(s *Snapshot) {
		s.topics = make(map[string]struct{}, len(single))
		s.topicOrder = nil
		for _, t := range single {
			if _, ok := s.topics[t]; !ok {
				s.topics[t] = struct{}{}
				s.topicOrder = append(s.topicOrder, t)
			}
		}
		s.multiWord = make(map[string]struct{}, len(multi))
		for _, t := range multi {
			s.multiWord[t] = struct{}{}
		}
		rebuildPhrases(s)
	})
}

// Replace installs clusters and topics in one generation step.
func (r *Registry) Replace(clusters []Cluster, topics []string) error {
	staging := NewRegistry()
	if err := staging.SetSynonyms(clusters); err != nil {
		return err
	}
	staging.SetTopics(topics)
	next := staging.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	next.generation = r.current.generation + 1
	r.current = next
	return nil
}
