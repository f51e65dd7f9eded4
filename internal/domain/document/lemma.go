package document

// LemmaKey identifies a lemma occurrence for deduplication and matching.
type LemmaKey struct {
	POS  POS
	Text string
}

// Lemma is one topic-eligible lemma occurrence.  Position is the global word
// position of the first token that produced it.
type Lemma struct {
	Text     string `json:"lemma"`
	POS      POS    `json:"pos"`
	Position int    `json:"position"`
}

// Key returns the (POS, lemma) identity of l.
func (l Lemma) Key() LemmaKey { return LemmaKey{POS: l.POS, Text: l.Text} }

// LemmaList is an ordered list of lemmas with no two entries sharing a key.
// The zero value is empty and ready to use.
type LemmaList []Lemma

// Contains reports whether an entry with key k is present.
func (ll LemmaList) Contains(k LemmaKey) bool {
	return ll.IndexOf(k) >= 0
}

// ContainsText reports whether an entry with lemma text s is present,
// regardless of POS.
func (ll LemmaList) ContainsText(s string) bool {
	for _, l := range ll {
		if l.Text == s {
			return true
		}
	}
	return false
}

// IndexOf returns the index of the entry with key k, or -1.
func (ll LemmaList) IndexOf(k LemmaKey) int {
	for i, l := range ll {
		if l.Key() == k {
			return i
		}
	}
	return -1
}

// Append adds l unless an entry with the same key exists and reports whether
// it was added.
func (ll *LemmaList) Append(l Lemma) bool {
	if ll.Contains(l.Key()) {
		return false
	}
	*ll = append(*ll, l)
	return true
}

// Union appends every entry of other not already present, in order.
func (ll *LemmaList) Union(other LemmaList) {
	for _, l := range other {
		ll.Append(l)
	}
}

// Clone returns a deep copy.  Display-side filtering must work on a clone so
// the given/new accumulation state is never mutated.
func (ll LemmaList) Clone() LemmaList {
	if ll == nil {
		return nil
	}
	out := make(LemmaList, len(ll))
	copy(out, ll)
	return out
}

// Filter returns a new list holding the entries for which keep is true.
func (ll LemmaList) Filter(keep func(Lemma) bool) LemmaList {
	out := make(LemmaList, 0, len(ll))
	for _, l := range ll {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// Texts returns the lemma strings in order.
func (ll LemmaList) Texts() []string {
	out := make([]string, len(ll))
	for i, l := range ll {
		out[i] = l.Text
	}
	return out
}
