package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomPhrasesReplies(t *testing.T) {
	c := alex()

	for i, want := range []string{
		"That's a fantastic question! As your Mathematics tutor",
		"In my experience with Mathematics and Physics and Chemistry",
		"Alex here - I specialize in Mathematics and Physics, so",
		"Let me share some insights from Mathematics...",
		"focused on Mathematics, Physics, Chemistry, I'm here",
		"In Mathematics, we often see this pattern",
		"what you already know about Mathematics.",
		"walk you through this Mathematics concept...",
	} {
		p := NewRandomPhrases(func(int) int { return i })
		assert.Contains(t, p.Pick(PhraseContext{Kind: PhraseReply, Companion: c}), want)
	}
}

func TestRandomPhrasesPeriodic(t *testing.T) {
	seen := map[string]bool{}
	for i := range periodicPhrases {
		p := NewRandomPhrases(func(n int) int {
			assert.Equal(t, len(periodicPhrases), n)
			return i
		})
		seen[p.Pick(PhraseContext{Kind: PhrasePeriodic, Companion: alex()})] = true
	}
	assert.Len(t, seen, 5)
}

func TestRandomPhrasesGreeting(t *testing.T) {
	p := NewRandomPhrases(nil)
	assert.Equal(t, Greeting(alex()), p.Pick(PhraseContext{Kind: PhraseGreeting, Companion: alex()}))
}

func TestSingleSpecialtyTemplates(t *testing.T) {
	c := alex()
	c.Specialties = []string{"Art"}
	p := NewRandomPhrases(func(int) int { return 2 })
	assert.Contains(t, p.Pick(PhraseContext{Kind: PhraseReply, Companion: c}), "I specialize in Art, so")
}
