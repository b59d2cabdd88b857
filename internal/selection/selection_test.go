package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultbridge/internal/apperr"
)

func tagsOf(tags ...string) func() []string {
	return func() []string { return tags }
}

func TestAccept_SubscriptionGate(t *testing.T) {
	p := MustCompile(`^Data/md/YouTube/.*`, GateSpec{
		Scope:      `^Data/md/YouTube/YouTubeSubscriptionData/.*`,
		RequireTag: "connection/people/sync",
	})

	sub := "Data/md/YouTube/YouTubeSubscriptionData/Channel.md"
	assert.False(t, p.Accept(sub, tagsOf("youtube")), "subscription without sync tag is excluded")
	assert.True(t, p.Accept(sub, tagsOf("#Connection/People/Sync")))
	assert.True(t, p.Accept("Data/md/YouTube/Videos/V.md", tagsOf()), "gate does not apply outside its scope")
	assert.False(t, p.Accept("Notes/V.md", tagsOf("connection/people/sync")), "gates never widen the pattern")
}

func TestAccept_OutsideGate(t *testing.T) {
	p := MustCompile(`.*`, GateSpec{Scope: `^Prompts/`, Outside: true, RequireTag: "#prompt/active"})

	assert.True(t, p.Accept("Prompts/Draft.md", tagsOf()))
	assert.False(t, p.Accept("Notes/Idea.md", tagsOf("prompt")))
	assert.True(t, p.Accept("Notes/Idea.md", tagsOf("prompt/active")))
}

func TestAccept_GateFoldsFinalSigma(t *testing.T) {
	p := MustCompile(`.*`, GateSpec{Scope: `^Greek/`, RequireTag: "ΟΔΟΣ"})

	assert.True(t, p.Accept("Greek/A.md", tagsOf("#οδος")))
	assert.True(t, p.Accept("Greek/A.md", tagsOf("Οδος")))
	assert.False(t, p.Accept("Greek/A.md", tagsOf("οδοσ")))
}

func TestAccept_GatesAreAnded(t *testing.T) {
	p := MustCompile(`^A/`,
		GateSpec{Scope: `^A/`, RequireTag: "x"},
		GateSpec{Scope: `^A/B/`, RequireTag: "y"},
	)
	assert.True(t, p.Accept("A/n.md", tagsOf("x")))
	assert.False(t, p.Accept("A/B/n.md", tagsOf("x")))
	assert.True(t, p.Accept("A/B/n.md", tagsOf("y", "x")))
}

func TestAccept_TagsLoadedOnlyWhenGated(t *testing.T) {
	p := MustCompile(`.*`, GateSpec{Scope: `^Gated/`, RequireTag: "x"})
	called := false
	p.Accept("Free/n.md", func() []string { called = true; return nil })
	assert.False(t, called)
}

func TestCompile_InvalidPattern(t *testing.T) {
	_, err := Compile(`(`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidPattern))

	_, err = Compile(`.*`, []GateSpec{{Scope: `[`}})
	assert.ErrorIs(t, err, apperr.ErrInvalidPattern)
}
