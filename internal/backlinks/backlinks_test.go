package backlinks

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/models"
)

func record(p, name string, targets ...string) models.DocumentMetadata {
	d := models.DocumentMetadata{FileName: name, RelativePath: p}
	for _, t := range targets {
		d.Links = append(d.Links, models.NormalizedLink{Link: t, ResolvedPath: t})
	}
	return d
}

func corpus() []models.DocumentMetadata {
	return []models.DocumentMetadata{
		record("A.md", "A", "Notes/B.md", "Notes/B.md", "C.md"),
		record("Notes/B.md", "B", "A.md"),
		record("C.md", "C", "C.md", "Outside.md"),
		{FileName: "D", RelativePath: "D.md", Links: []models.NormalizedLink{{Link: "Missing"}}},
	}
}

// inbound maps target path to its sorted source paths.
func inbound(docs []models.DocumentMetadata) map[string][]string {
	out := make(map[string][]string)
	for _, d := range docs {
		var sources []string
		for _, b := range d.Backlinks {
			sources = append(sources, b.SourcePath)
		}
		sort.Strings(sources)
		out[d.RelativePath] = sources
	}
	return out
}

func TestCompute(t *testing.T) {
	docs, n := Compute(corpus())
	assert.Equal(t, 4, n)
	assert.Equal(t, map[string][]string{
		"A.md":       {"Notes/B.md"},
		"Notes/B.md": {"A.md"},
		"C.md":       {"A.md", "C.md"},
		"D.md":       nil,
	}, inbound(docs))
	assert.Equal(t, models.BacklinkEntry{SourcePath: "A.md", DisplayName: "A"}, docs[1].Backlinks[0])
}

func TestCompute_DedupesPerTargetAndSource(t *testing.T) {
	src := models.DocumentMetadata{FileName: "A", RelativePath: "A.md", Links: []models.NormalizedLink{
		{Link: "B", ResolvedPath: "B.md"},
		{Link: "B#Part", CleanTarget: "B", ResolvedPath: "B.md"},
		{Link: "B", DisplayText: "embed", ResolvedPath: "B.md"},
	}}
	other := record("C.md", "C", "B.md")
	docs, n := Compute([]models.DocumentMetadata{src, record("B.md", "B"), other})

	assert.Equal(t, 2, n, "one entry per (target, source) pair")
	assert.Equal(t, []models.BacklinkEntry{
		{SourcePath: "A.md", DisplayName: "A"},
		{SourcePath: "C.md", DisplayName: "C"},
	}, docs[1].Backlinks)
}

func TestCompute_PlainScenario(t *testing.T) {
	docs, _ := Compute([]models.DocumentMetadata{
		{FileName: "A", RelativePath: "A.md", Links: []models.NormalizedLink{{Link: "B", ResolvedPath: "Notes/B.md"}}},
		{FileName: "B", RelativePath: "Notes/B.md"},
	})
	assert.Empty(t, docs[0].Backlinks)
	assert.Equal(t, []models.BacklinkEntry{{SourcePath: "A.md", DisplayName: "A"}}, docs[1].Backlinks)
}

func TestCompute_OrderIndependent(t *testing.T) {
	want := inbound(func() []models.DocumentMetadata { d, _ := Compute(corpus()); return d }())
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		docs := corpus()
		rng.Shuffle(len(docs), func(a, b int) { docs[a], docs[b] = docs[b], docs[a] })
		got, _ := Compute(docs)
		assert.Equal(t, want, inbound(got))
	}
}

func TestCompute_Recomputes(t *testing.T) {
	docs, first := Compute(corpus())
	docs, second := Compute(docs)
	assert.Equal(t, first, second)
	assert.Len(t, docs[2].Backlinks, 2)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker")
	}
	return Result{}
}

func TestWorker_DeliversOnCopy(t *testing.T) {
	input := corpus()
	ch := NewWorker(quiet()).Submit(context.Background(), input)
	res := receive(t, ch)

	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.Backlinks)
	assert.Len(t, res.Documents[2].Backlinks, 2)
	for _, d := range input {
		assert.Empty(t, d.Backlinks, "input collection is not mutated")
	}

	_, open := <-ch
	assert.False(t, open, "worker closes its channel after one result")
}

func TestWorker_PanicBecomesResolutionError(t *testing.T) {
	w := NewWorker(quiet())
	w.compute = func([]models.DocumentMetadata) ([]models.DocumentMetadata, int) {
		panic("boom")
	}
	res := receive(t, w.Submit(context.Background(), corpus()))
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, apperr.ErrResolution)
	assert.Nil(t, res.Documents)
}
