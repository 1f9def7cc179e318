package mitre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tech, ok := Lookup(WebProtocols)
	assert.True(t, ok)
	assert.Equal(t, "Application Layer Protocol: Web Protocols", tech.Name)
	assert.Equal(t, []string{TacticCommandAndControl}, tech.Tactics)

	// callers must not be able to mutate the table
	tech.Tactics[0] = "changed"
	assert.Equal(t, []string{TacticCommandAndControl}, Tactics(WebProtocols))

	_, ok = Lookup("T9999")
	assert.False(t, ok)
	assert.Equal(t, "T9999", Name("T9999"))
	assert.Nil(t, Tactics("T9999"))
}

func TestTableIsComplete(t *testing.T) {
	for _, id := range IDs() {
		tech, ok := Lookup(id)
		assert.True(t, ok, id)
		assert.Equal(t, id, tech.ID, "table key matches technique id")
		assert.NotEmpty(t, tech.Name, id)
		assert.NotEmpty(t, tech.Tactics, id)
		for _, tactic := range tech.Tactics {
			assert.NotEqual(t, tactic, TacticName(tactic), "tactic %s has a name", tactic)
		}
	}
}
