package call

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"companion-call-demo/backend/internal/models"
)

// PhraseKind says what triggered a companion message
type PhraseKind int

const (
	PhraseGreeting PhraseKind = iota
	PhrasePeriodic
	PhraseReply
)

// PhraseContext is what a PhraseSource may draw on
type PhraseContext struct {
	Kind      PhraseKind
	Companion models.CompanionProfile
	// UserText is the message being answered, empty for greeting and periodic.
	UserText string
}

// PhraseSource picks companion lines
type PhraseSource interface {
	Pick(ctx PhraseContext) string
}

var periodicPhrases = []string{
	"I'm here and ready to help! Feel free to ask me anything about my specialties.",
	"Don't hesitate to ask questions - that's how we learn best together!",
	"I'm enjoying our conversation! What would you like to explore next?",
	"Remember, there are no silly questions - every question is a step toward understanding!",
	"I'm here to support your learning journey. What interests you most right now?",
}

var replyTemplates = []func(c models.CompanionProfile) string{
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("That's a fantastic question! As your %s tutor, I'd love to help you understand this better. Let me break it down for you...", first(c))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("I'm excited you're thinking about this topic! In my experience with %s, this is a key concept that connects to many other ideas.", strings.Join(c.Specialties, " and "))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("Great question! You know, %s here - I specialize in %s, so I can definitely help you explore this further.", c.Name, strings.Join(firstN(c, 2), " and "))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("I appreciate your curiosity! This is exactly the kind of thinking that leads to deeper understanding. Let me share some insights from %s...", first(c))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("Wonderful! You're asking the right questions. As an AI companion focused on %s, I'm here to guide you through this step by step.", strings.Join(c.Specialties, ", "))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("That's a thoughtful approach! I love how you're connecting ideas. In %s, we often see this pattern, and here's why it matters...", first(c))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("Excellent! You're developing critical thinking skills. Let me explain this concept in a way that builds on what you already know about %s.", first(c))
	},
	func(c models.CompanionProfile) string {
		return fmt.Sprintf("I'm impressed by your question! This shows you're really engaging with the material. Let me walk you through this %s concept...", first(c))
	},
}

// Greeting is the opening line a companion says on joining
func Greeting(c models.CompanionProfile) string {
	return fmt.Sprintf("Hello! I'm %s. I'm excited to help you learn today. What would you like to explore?", c.Name)
}

// RandomPhrases picks uniformly from the built-in phrase sets
type RandomPhrases struct {
	intN func(n int) int
}

// NewRandomPhrases returns a source using intN for selection; nil uses math/rand/v2.
func NewRandomPhrases(intN func(n int) int) *RandomPhrases {
	if intN == nil {
		intN = rand.IntN
	}
	return &RandomPhrases{intN: intN}
}

// Pick implements PhraseSource
func (r *RandomPhrases) Pick(ctx PhraseContext) string {
	switch ctx.Kind {
	case PhraseGreeting:
		return Greeting(ctx.Companion)
	case PhrasePeriodic:
		return periodicPhrases[r.intN(len(periodicPhrases))]
	default:
		return replyTemplates[r.intN(len(replyTemplates))](ctx.Companion)
	}
}

func first(c models.CompanionProfile) string {
	if len(c.Specialties) == 0 {
		return "this subject"
	}
	return c.Specialties[0]
}

func firstN(c models.CompanionProfile, n int) []string {
	if len(c.Specialties) < n {
		n = len(c.Specialties)
	}
	return c.Specialties[:n]
}
