package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/model"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func rec(id string, t model.Type, age time.Duration) model.Notification {
	return model.Notification{
		ID:         id,
		Type:       t,
		SchoolID:   "s1",
		SchoolName: "Riverside Primary",
		Title:      "Title " + id,
		Timestamp:  base.Add(-age),
	}
}

func ids(records []model.Notification) []string {
	out := make([]string, len(records))
	for i, n := range records {
		out[i] = n.ID
	}
	return out
}

func TestFilterByType(t *testing.T) {
	records := []model.Notification{
		rec("a", model.TypeAchievement, time.Hour),
		rec("b", model.TypeChatMessage, 2*time.Hour),
		rec("c", model.TypeAchievement, 3*time.Hour),
	}

	tests := []struct {
		name string
		typ  model.Type
		want []string
	}{
		{name: "all", typ: model.TypeAll, want: []string{"a", "b", "c"}},
		{name: "empty is all", typ: "", want: []string{"a", "b", "c"}},
		{name: "achievement", typ: model.TypeAchievement, want: []string{"a", "c"}},
		{name: "no match", typ: model.TypePerformance, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterByType(records, tt.typ)))
		})
	}
}

func TestFilterByTypeDoesNotAliasInput(t *testing.T) {
	records := []model.Notification{rec("a", model.TypeAchievement, 0)}

	out := FilterByType(records, model.TypeAll)
	out[0].Title = "changed"

	assert.Equal(t, "Title a", records[0].Title)
}

func TestSearchMatchesArabicSchoolName(t *testing.T) {
	var records []model.Notification
	for i := 0; i < 10; i++ {
		n := rec(fmt.Sprintf("n%02d", i), model.TypePerformance, time.Duration(i)*time.Hour)
		n.SchoolName = "مدرسة النور"
		records = append(records, n)
	}
	records[3].SchoolName = "مدرسة الأمل الابتدائية"
	records[7].SchoolName = "ثانوية الأمل"

	got := Search(records, "الأمل")

	require.Len(t, got, 2)
	assert.Equal(t, []string{"n03", "n07"}, ids(got))
	assert.True(t, got[0].Timestamp.After(got[1].Timestamp))
}

func TestSearchFields(t *testing.T) {
	n := rec("a", model.TypeChatMessage, 0)
	n.SchoolName = "Hillcrest Academy"
	n.Title = "Weekly Update"
	n.Description = "Science fair results are in"
	n.StudentName = "Layla Hassan"
	records := []model.Notification{n}

	tests := []struct {
		term string
		hit  bool
	}{
		{term: "hillcrest", hit: true},
		{term: "WEEKLY", hit: true},
		{term: "fair", hit: true},
		{term: "layla", hit: true},
		{term: "  ", hit: true},
		{term: "", hit: true},
		{term: "orchard", hit: false},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := Search(records, tt.term)
			if tt.hit {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestApplyTruncatesAfterFiltering(t *testing.T) {
	var records []model.Notification
	for i := 0; i < 8; i++ {
		typ := model.TypeAchievement
		if i%2 == 1 {
			typ = model.TypeImprovement
		}
		records = append(records, rec(fmt.Sprintf("n%d", i), typ, time.Duration(i)*time.Minute))
	}

	got := Apply(records, Query{Type: model.TypeImprovement, Limit: 3})
	assert.Equal(t, []string{"n1", "n3", "n5"}, ids(got))

	// Truncation must not change the counts computed over the full set.
	counts := CountByType(records)
	assert.Equal(t, 8, counts[model.TypeAll])
	assert.Equal(t, 4, counts[model.TypeImprovement])

	assert.Len(t, Apply(records, Query{Limit: 0}), 8)
	assert.Len(t, Apply(records, Query{Limit: 100}), 8)
}

func TestCountByTypeHasEveryKey(t *testing.T) {
	counts := CountByType(nil)

	require.Len(t, counts, len(model.Types)+1)
	for _, typ := range model.Types {
		assert.Zero(t, counts[typ], typ)
	}
	assert.Zero(t, counts[model.TypeAll])
}

func TestCountByTypeSkipsInvalidTypes(t *testing.T) {
	records := []model.Notification{
		rec("a", model.TypeAchievement, 0),
		rec("b", model.Type("broadcast"), 0),
	}

	counts := CountByType(records)
	assert.Equal(t, 1, counts[model.TypeAll])
	assert.Equal(t, 1, counts[model.TypeAchievement])
}

func TestSortRecordsTieBreak(t *testing.T) {
	records := []model.Notification{
		rec("c", model.TypeAchievement, time.Hour),
		rec("b", model.TypeAchievement, 0),
		rec("a", model.TypeAchievement, time.Hour),
	}

	sortRecords(records)
	assert.Equal(t, []string{"b", "a", "c"}, ids(records))
}

func TestSchoolScope(t *testing.T) {
	assert.Nil(t, SchoolScope())

	scope := SchoolScope("s1", "s2")
	in := rec("a", model.TypeAchievement, 0)
	out := rec("b", model.TypeAchievement, 0)
	out.SchoolID = "s9"
	general := rec("c", model.TypeAchievement, 0)
	general.SchoolID = ""

	assert.True(t, scope.admits(in))
	assert.False(t, scope.admits(out))
	assert.True(t, scope.admits(general))

	var none Scope
	assert.True(t, none.admits(out))
}
