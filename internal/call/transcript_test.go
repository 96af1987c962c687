package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptAllIsRestartable(t *testing.T) {
	var tr Transcript
	tr.Append(Entry{Sender: SenderUser, Text: "a"})
	tr.Append(Entry{Sender: SenderCompanion, Text: "b"})

	collect := func() []string {
		var out []string
		for e := range tr.All() {
			out = append(out, e.Text)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b"}, collect())
	assert.Equal(t, []string{"a", "b"}, collect())

	tr.Append(Entry{Sender: SenderUser, Text: "c"})
	assert.Equal(t, []string{"a", "b", "c"}, collect())
	assert.Equal(t, 3, tr.Len())
}

func TestTranscriptAllStopsEarly(t *testing.T) {
	var tr Transcript
	for _, s := range []string{"a", "b", "c"} {
		tr.Append(Entry{Text: s})
	}

	var got []string
	for e := range tr.All() {
		got = append(got, e.Text)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestTranscriptEntriesIsACopy(t *testing.T) {
	var tr Transcript
	tr.Append(Entry{Text: "a"})

	copied := tr.Entries()
	copied[0].Text = "changed"
	assert.Equal(t, "a", tr.Entries()[0].Text)
}

func TestSessionAppend(t *testing.T) {
	h := startedHarness(t, nil)

	e, err := h.sess.Append(SenderUser, "typed elsewhere")
	assert.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, e, h.entries()[len(h.entries())-1])
	assert.Equal(t, e, h.rec.messages[len(h.rec.messages)-1])
}
