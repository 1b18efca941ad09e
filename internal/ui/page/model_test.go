package page

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/api/apitest"
	"github.com/nhle/evaldash/internal/keys"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/notify"
	"github.com/nhle/evaldash/internal/ui"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixtures() []api.RawNotification {
	return []api.RawNotification{
		{ID: "a", Type: "achievement", SchoolName: "Riverside Primary", Title: "Science fair winner", Timestamp: base},
		{ID: "b", Type: "performance", SchoolName: "Al Amal School", Title: "Term report", Timestamp: base.Add(-time.Hour)},
		{ID: "c", Type: "achievement", SchoolName: "Hillcrest", Title: "Reading award", StudentName: "Maya", Timestamp: base.Add(-2 * time.Hour)},
		{ID: "d", Type: "chatMessage", SchoolName: "Hillcrest", Title: "New message", Timestamp: base.Add(-3 * time.Hour), Read: true},
	}
}

func setup(t *testing.T) (Model, *notify.Store, *apitest.Fake) {
	t.Helper()
	fake := apitest.NewFake(fixtures()...)
	s := notify.New(fake)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background()))
	return New(s, keys.DefaultKeyMap(), 100, 30), s, fake
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "shift+tab":
			msg = tea.KeyMsg{Type: tea.KeyShiftTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func visibleIDs(m Model) []string {
	var out []string
	for _, n := range m.Visible() {
		out = append(out, n.ID)
	}
	return out
}

func TestPageShowsEverythingUntruncated(t *testing.T) {
	m, _, _ := setup(t)

	assert.Equal(t, []string{"a", "b", "c", "d"}, visibleIDs(m))
	assert.Equal(t, model.TypeAll, m.Filter())
	assert.Contains(t, m.View(), "All 4")
}

func TestPageChips(t *testing.T) {
	m, _, _ := setup(t)

	m, _ = press(m, "2")
	assert.Equal(t, model.TypeAchievement, m.Filter())
	assert.Equal(t, []string{"a", "c"}, visibleIDs(m))

	m, _ = press(m, "tab")
	assert.Equal(t, model.TypeImprovement, m.Filter())
	assert.Empty(t, m.Visible())
	assert.Contains(t, m.View(), "No matching notifications")

	m, _ = press(m, "shift+tab", "shift+tab", "shift+tab")
	assert.Equal(t, model.TypeAll, m.Filter())

	m, _ = press(m, "shift+tab")
	assert.Equal(t, model.TypeChatMessage, m.Filter())
	assert.Equal(t, []string{"d"}, visibleIDs(m))
}

func TestPageSearchFiltersAsYouType(t *testing.T) {
	m, _, _ := setup(t)

	m, _ = press(m, "/")
	assert.True(t, m.Searching())
	assert.True(t, m.CapturesBack())

	m, _ = press(m, "h", "i", "l", "l")
	assert.Equal(t, []string{"c", "d"}, visibleIDs(m))

	// Keys that are shortcuts outside search are plain text inside it.
	m, _ = press(m, "x")
	assert.Empty(t, m.Visible())
}

func TestPageSearchCombinesWithChip(t *testing.T) {
	m, _, _ := setup(t)

	m, _ = press(m, "2", "/", "m", "a", "y", "a", "enter")
	assert.False(t, m.Searching())
	assert.Equal(t, []string{"c"}, visibleIDs(m))

	// esc outside search clears the kept query first.
	assert.True(t, m.CapturesBack())
	m, _ = press(m, "esc")
	assert.Equal(t, []string{"a", "c"}, visibleIDs(m))
	assert.False(t, m.CapturesBack())
}

func TestPageSearchEscClears(t *testing.T) {
	m, _, _ := setup(t)

	m, _ = press(m, "/", "t", "e", "r", "m", "esc")
	assert.False(t, m.Searching())
	assert.Len(t, m.Visible(), 4)
}

func TestPageActions(t *testing.T) {
	m, s, fake := setup(t)

	_, cmd := press(m, "r")
	require.NotNil(t, cmd)
	msg := cmd().(ui.MutationResultMsg)
	assert.NoError(t, msg.Err)
	assert.Equal(t, notify.OpMarkRead, msg.Op)
	assert.Equal(t, "a", msg.ID)
	assert.Equal(t, 1, fake.CallCount("MarkRead"))

	m, _ = m.Update(ui.StoreChangedMsg{})
	_, cmd = press(m, "u")
	assert.Equal(t, notify.OpMarkUnread, cmd().(ui.MutationResultMsg).Op)

	_, cmd = press(m, "x")
	assert.NoError(t, cmd().(ui.MutationResultMsg).Err)
	m, _ = m.Update(ui.StoreChangedMsg{})
	assert.Equal(t, []string{"b", "c", "d"}, visibleIDs(m))

	_, cmd = press(m, "A")
	res := cmd().(ui.MutationResultMsg)
	assert.NoError(t, res.Err)
	assert.Equal(t, notify.OpMarkAllRead, res.Op)
	assert.Equal(t, 2, res.Count)
	assert.Zero(t, s.UnreadCount())
}

func TestPageActionOnEmptyListIsNoop(t *testing.T) {
	m, _, fake := setup(t)

	m, _ = press(m, "3")
	require.Empty(t, m.Visible())

	_, cmd := press(m, "r")
	assert.Nil(t, cmd)
	assert.Zero(t, fake.CallCount("MarkRead"))
}

func TestPageErrorBanner(t *testing.T) {
	m, s, fake := setup(t)

	fake.FailNext("FetchNotifications", errors.New("connection refused"))
	require.Error(t, s.Refresh(context.Background()))
	m, _ = m.Update(ui.StoreChangedMsg{})

	assert.Contains(t, m.View(), "Couldn't load notifications")
	assert.Len(t, m.Visible(), 4)
	assert.True(t, m.CapturesBack())

	m, _ = press(m, "esc")
	assert.NotContains(t, m.View(), "Couldn't load notifications")
	assert.False(t, m.CapturesBack())

	_, cmd := press(m, "R")
	assert.Equal(t, ui.RefreshRequestedMsg{}, cmd())
}

func TestPageEmptyStates(t *testing.T) {
	s := notify.New(apitest.NewFake())
	t.Cleanup(s.Close)

	m := New(s, keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "Loading notifications")

	require.NoError(t, s.Load(context.Background()))
	m, _ = m.Update(ui.StoreChangedMsg{})
	assert.Contains(t, m.View(), "No notifications yet")
}
