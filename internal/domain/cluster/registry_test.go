package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DiscourseLens/pkg/errors"
)

func TestRegistry_SetSynonyms_CarAuto(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetSynonyms([]Cluster{{Name: "vehicle", Forms: []string{"auto", "car"}}}))
	s := r.Snapshot()

	for _, form := range []string{"car", "Car", "auto", "Auto"} {
		lemma, ok := s.Lookup(form)
		require.True(t, ok, form)
		assert.Equal(t, "vehicle", lemma)
	}
	_, ok := s.Lookup("CAR")
	assert.False(t, ok, "all-caps is not one of the registered variants")

	assert.True(t, s.IsClusterLemma("vehicle"))
	assert.True(t, s.IsClusterDefined("vehicle"))
	assert.False(t, s.IsClusterLemma("car"))
	assert.Empty(t, s.UndefinedClusters())
}

func TestRegistry_SetSynonyms_OriginalCasingKept(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetSynonyms([]Cluster{{Name: "Org", Forms: []string{"NASA"}}}))
	s := r.Snapshot()

	for _, form := range []string{"NASA", "nasa", "Nasa"} {
		lemma, ok := s.Lookup(form)
		require.True(t, ok, form)
		assert.Equal(t, "org", lemma, "canonical lemma is lowercased")
	}
}

func TestRegistry_UndefinedCluster(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetSynonyms([]Cluster{
		{Name: "vehicle", Forms: []string{"car"}},
		{Name: "weather"},
		{Name: "mood", Forms: []string{"  "}},
	}))
	s := r.Snapshot()

	assert.True(t, s.IsClusterLemma("weather"))
	assert.False(t, s.IsClusterDefined("weather"))
	assert.False(t, s.IsClusterDefined("mood"))
	assert.Equal(t, []string{"weather", "mood"}, s.UndefinedClusters())
	assert.Equal(t, []string{"vehicle", "weather", "mood"}, s.ClusterNames())

	synonyms, clusters, _ := s.Counts()
	assert.Equal(t, 2, synonyms, "car and Car; the title form collapses onto Car")
	assert.Equal(t, 3, clusters)
}

func TestRegistry_SetSynonyms_Invalid(t *testing.T) {
	r := NewRegistry()
	err := r.SetSynonyms([]Cluster{{Name: ""}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCluster))

	err = r.SetSynonyms([]Cluster{{Name: "A"}, {Name: "a"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCluster))
	assert.Equal(t, uint64(0), r.Generation(), "rejected edits do not bump the generation")
}

func TestRegistry_SetSynonyms_Replaces(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetSynonyms([]Cluster{{Name: "vehicle", Forms: []string{"car"}}}))
	require.NoError(t, r.SetSynonyms([]Cluster{{Name: "animal", Forms: []string{"cat"}}}))
	s := r.Snapshot()

	_, ok := s.Lookup("car")
	assert.False(t, ok)
	assert.False(t, s.IsClusterLemma("vehicle"))
	assert.True(t, s.IsClusterLemma("animal"))
}

func TestRegistry_MultiWordTopicsLongestFirst(t *testing.T) {
	r := NewRegistry()
	r.SetMultiWordTopics([]string{"climate change", "global climate change policy", "Carbon  Tax", "single"})
	s := r.Snapshot()

	assert.Equal(t, []string{"global climate change policy", "carbon tax", "climate change"}, s.MultiWordTopics())
	assert.True(t, s.IsTopic("Carbon Tax"))
	assert.False(t, s.IsTopic("single"), "single words are not multi-word topics")
}

func TestRegistry_PhrasesIncludeMultiWordForms(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetSynonyms([]Cluster{{Name: "vehicle", Forms: []string{"motor car", "car"}}}))
	r.SetMultiWordTopics([]string{"fuel economy rating"})

	assert.Equal(t, []string{"fuel economy rating", "motor car"}, r.Snapshot().Phrases())
	lemma, ok := r.Snapshot().Lookup("motor car")
	require.True(t, ok)
	assert.Equal(t, "vehicle", lemma)
}

func TestRegistry_ForcedTopics(t *testing.T) {
	r := NewRegistry()
	r.AddTopic("Engine")
	r.AddTopic("engine")
	r.AddTopic("fuel economy")
	r.AddTopic("   ")
	s := r.Snapshot()

	assert.Equal(t, []string{"engine"}, s.Topics())
	assert.True(t, s.IsTopic("ENGINE"))
	assert.True(t, s.IsTopic("fuel economy"))

	r.RemoveTopic("engine")
	assert.False(t, r.Snapshot().IsTopic("engine"))
	assert.True(t, r.Snapshot().IsTopic("fuel economy"))

	r.AddTopic("brake")
	r.ClearTopics()
	assert.Empty(t, r.Snapshot().Topics())
	assert.True(t, r.Snapshot().IsTopic("fuel economy"), "clear only affects single-word topics")
}

func TestRegistry_SetTopicsSplits(t *testing.T) {
	r := NewRegistry()
	r.SetTopics([]string{"engine", "Fuel Economy", "engine", ""})
	s := r.Snapshot()
	assert.Equal(t, []string{"engine"}, s.Topics())
	assert.Equal(t, []string{"fuel economy"}, s.MultiWordTopics())
}

func TestRegistry_GenerationAndSnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	before := r.Snapshot()
	assert.Equal(t, uint64(0), before.Generation())

	r.AddTopic("engine")
	require.NoError(t, r.SetSynonyms(nil))
	r.SetMultiWordTopics(nil)

	assert.Equal(t, uint64(3), r.Generation())
	assert.False(t, before.IsTopic("engine"), "older snapshots never change")
}

func TestPin(t *testing.T) {
	r := NewRegistry()
	r.AddTopic("engine")
	pinned := Pin(r.Snapshot())

	r.AddTopic("fuel")
	assert.Equal(t, uint64(1), pinned.Generation())
	assert.True(t, pinned.Snapshot().IsTopic("engine"))
	assert.False(t, pinned.Snapshot().IsTopic("fuel"))

	assert.Equal(t, uint64(0), Pin(nil).Generation())
}

func TestRegistry_Replace(t *testing.T) {
	r := NewRegistry()
	r.AddTopic("old")
	require.NoError(t, r.Replace([]Cluster{{Name: "vehicle", Forms: []string{"car"}}}, []string{"engine", "fuel economy"}))

	s := r.Snapshot()
	assert.Equal(t, uint64(2), s.Generation())
	assert.False(t, s.IsTopic("old"))
	assert.True(t, s.IsTopic("engine"))
	assert.True(t, s.IsClusterDefined("vehicle"))

	err := r.Replace([]Cluster{{Name: ""}}, nil)
	assert.Error(t, err)
	assert.Equal(t, uint64(2), r.Generation())
}
