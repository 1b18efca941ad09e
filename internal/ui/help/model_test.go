package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/evaldash/internal/keys"
)

func TestHelpListsEveryGroup(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 60)
	view := m.View()

	for _, name := range sections {
		assert.Contains(t, view, name)
	}
	assert.Contains(t, view, "mark all read")
	assert.Contains(t, view, "pick filter")
}

func TestHelpSkipsDisabledBindings(t *testing.T) {
	k := keys.DefaultKeyMap()
	k.Archive.SetEnabled(false)

	assert.NotContains(t, New(k, 100, 60).View(), "archive")
}

func TestHelpShortHelp(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 200, 40)
	assert.Contains(t, m.ShortHelp(), "search")
}
