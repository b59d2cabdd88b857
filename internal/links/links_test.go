package links

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultbridge/internal/models"
)

// stubResolver resolves by exact link path.
type stubResolver map[string]string

func (s stubResolver) Resolve(linkpath, _ string) (string, bool) {
	p, ok := s[linkpath]
	return p, ok
}

// panicResolver fails the test if resolution is attempted.
type panicResolver struct{ t *testing.T }

func (p panicResolver) Resolve(linkpath, _ string) (string, bool) {
	p.t.Fatalf("unexpected resolve of %q", linkpath)
	return "", false
}

var corpus = stubResolver{
	"B":             "Notes/B.md",
	"Notes/B":       "Notes/B.md",
	"photo.png":     "img/photo.png",
	"Deep/Dir/Page": "Deep/Dir/Page.md",
}

func TestNormalize_ResolvedPlainLink(t *testing.T) {
	got, ok := Normalize(models.LinkReference{Link: "B"}, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	require.True(t, ok)
	assert.Equal(t, models.NormalizedLink{Link: "B", ResolvedPath: "Notes/B.md"}, got)
}

func TestNormalize_UncreatedTargetKeepsAlias(t *testing.T) {
	ref := models.LinkReference{Link: "D", DisplayText: "Display D"}
	got, ok := Normalize(ref, Owner{Path: "C.md", Name: "C"}, corpus, Markdown)
	require.True(t, ok)
	assert.Equal(t, models.NormalizedLink{Link: "D", DisplayText: "Display D"}, got)
}

func TestNormalize_SelfFragment(t *testing.T) {
	ref := models.LinkReference{Link: "#Heading"}
	got, ok := Normalize(ref, Owner{Path: "E.md", Name: "E"}, panicResolver{t}, Markdown)
	require.True(t, ok)
	assert.Equal(t, models.NormalizedLink{Link: "#Heading", CleanTarget: "E", ResolvedPath: "E.md"}, got)
}

func TestNormalize_FragmentToOtherDocument(t *testing.T) {
	ref := models.LinkReference{Link: "Notes/B#Part 2", DisplayText: "part two"}
	got, ok := Normalize(ref, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	require.True(t, ok)
	assert.Equal(t, models.NormalizedLink{
		Link:         "B#Part 2",
		CleanTarget:  "B",
		DisplayText:  "part two",
		ResolvedPath: "Notes/B.md",
	}, got)
}

func TestNormalize_StripsDirectoriesOnlyFromPathPart(t *testing.T) {
	ref := models.LinkReference{Link: "Deep/Dir/Page#a/b"}
	got, ok := Normalize(ref, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	require.True(t, ok)
	assert.Equal(t, "Page#a/b", got.Link)
	assert.Equal(t, "Page", got.CleanTarget)
}

func TestStripDirs_FragmentKeepsSlashes(t *testing.T) {
	assert.Equal(t, "b#c/d", stripDirs("a/b#c/d"))
	assert.Equal(t, "b", stripDirs("a/b/"))
	assert.Equal(t, "#c/d", stripDirs("#c/d"))
}

func TestNormalize_AliasEqualToFinalTargetIsElided(t *testing.T) {
	ref := models.LinkReference{Link: "Deep/Dir/Page", DisplayText: "Page"}
	got, ok := Normalize(ref, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	require.True(t, ok)
	assert.Empty(t, got.DisplayText)

	ref = models.LinkReference{Link: "Deep/Dir/Page", DisplayText: "Deep/Dir/Page"}
	got, ok = Normalize(ref, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	require.True(t, ok)
	assert.Equal(t, "Deep/Dir/Page", got.DisplayText, "alias differs from the stripped target")
}

func TestNormalize_DropsUntrackedDestination(t *testing.T) {
	_, ok := Normalize(models.LinkReference{Link: "photo.png", Embed: true}, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	assert.False(t, ok)
}

func TestNormalize_Properties(t *testing.T) {
	refs := []models.LinkReference{
		{Link: "B"}, {Link: "B", DisplayText: "B"}, {Link: "B", DisplayText: "bee"},
		{Link: "Missing"}, {Link: "Missing#x"}, {Link: "#Top"}, {Link: "#Top", DisplayText: "top"},
		{Link: "#^block"}, {Link: "Notes/B#H", DisplayText: "B#H"}, {Link: "a/b/c"},
	}
	owner := Owner{Path: "dir/Self.md", Name: "Self"}
	for _, ref := range refs {
		got, ok := Normalize(ref, owner, corpus, Markdown)
		require.True(t, ok, ref.Link)

		if !strings.Contains(ref.Link, "#") {
			assert.Empty(t, got.CleanTarget, "no cleanTarget without a fragment: %q", ref.Link)
		}
		if strings.HasPrefix(ref.Link, "#") {
			assert.Equal(t, owner.Path, got.ResolvedPath, "self fragment resolves to owner: %q", ref.Link)
		}
		wantDisplay := ref.DisplayText != "" && ref.DisplayText != got.Link
		assert.Equal(t, wantDisplay, got.DisplayText != "", "displayText presence for %+v", ref)
	}
}

func TestNormalizeAll_CountsDropped(t *testing.T) {
	refs := []models.LinkReference{{Link: "B"}, {Link: "photo.png"}, {Link: "D"}}
	got, dropped := NormalizeAll(refs, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	assert.Equal(t, 1, dropped)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Link)
	assert.Equal(t, "D", got[1].Link)
}

func TestFilterEmbeds(t *testing.T) {
	embeds := []models.LinkReference{
		{Link: "photo.png", Embed: true},
		{Link: "B#Intro", Embed: true},
		{Link: "Nowhere", Embed: true},
		{Link: "#Local", Embed: true},
	}
	got := FilterEmbeds(embeds, Owner{Path: "A.md", Name: "A"}, corpus, Markdown)
	require.Len(t, got, 2)
	assert.Equal(t, "B#Intro", got[0].Link)
	assert.Equal(t, "#Local", got[1].Link)
}

func TestLinkPath(t *testing.T) {
	assert.Equal(t, "Note", LinkPath("Note#Heading"))
	assert.Equal(t, "Note", LinkPath("Note#^block"))
	assert.Equal(t, "", LinkPath("#Heading"))
	assert.Equal(t, "dir/Note", LinkPath("dir/Note"))
}

func TestMarkdown(t *testing.T) {
	assert.True(t, Markdown("a/B.md"))
	assert.True(t, Markdown("B.MD"))
	assert.False(t, Markdown("img/x.png"))
	assert.False(t, Markdown("dir.md/file"))
}
