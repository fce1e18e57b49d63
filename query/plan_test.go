package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	plan := Build(url.Values{})

	assert.Equal(t, 1, plan.Page())
	assert.Equal(t, 10, plan.Limit())
	assert.Equal(t, int64(0), plan.Skip())
	assert.Equal(t, []SortKey{{Field: "createdAt", Descending: true}}, plan.sort)
	assert.Equal(t, bson.M{}, plan.Criteria(nil))
}

func TestFilterEqualityAndOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params url.Values
		want   bson.M
	}{
		{
			name:   "plain equality",
			params: url.Values{"difficulty": {"easy"}},
			want:   bson.M{"difficulty": "easy"},
		},
		{
			name:   "numeric equality coerced",
			params: url.Values{"duration": {"5"}},
			want:   bson.M{"duration": float64(5)},
		},
		{
			name:   "gte rewritten",
			params: url.Values{"price[gte]": {"100"}},
			want:   bson.M{"price": bson.M{"$gte": float64(100)}},
		},
		{
			name:   "range on one field",
			params: url.Values{"price[gte]": {"100"}, "price[lt]": {"500"}},
			want:   bson.M{"price": bson.M{"$gte": float64(100), "$lt": float64(500)}},
		},
		{
			name:   "unknown operator token stays literal",
			params: url.Values{"price[near]": {"100"}},
			want:   bson.M{"price[near]": float64(100)},
		},
		{
			name:   "control keys stripped",
			params: url.Values{"page": {"3"}, "limit": {"5"}, "sort": {"price"}, "fields": {"name"}, "duration": {"5"}},
			want:   bson.M{"duration": float64(5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan := Build(tt.params)
			assert.Equal(t, tt.want, plan.Criteria(nil))
		})
	}
}

func TestSortParsing(t *testing.T) {
	t.Parallel()

	plan := Plan{}.Sort("price,-ratingsAverage")
	require.Equal(t, []SortKey{
		{Field: "price"},
		{Field: "ratingsAverage", Descending: true},
	}, plan.sort)

	// Blank input falls back to newest first.
	plan = Plan{}.Sort("  ")
	require.Equal(t, []SortKey{{Field: "createdAt", Descending: true}}, plan.sort)
}

func TestPaginateCoercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, limit        string
		wantPage, wantLimit int
		wantSkip           int64
	}{
		{"2", "10", 2, 10, 10},
		{"3", "7", 3, 7, 14},
		{"", "", 1, 10, 0},
		{"abc", "xyz", 1, 10, 0},
		{"0", "-5", 1, 10, 0},
	}
	for _, tt := range tests {
		plan := Plan{}.Paginate(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, plan.Page())
		assert.Equal(t, tt.wantLimit, plan.Limit())
		assert.Equal(t, tt.wantSkip, plan.Skip())
	}
}

func TestSelectProjection(t *testing.T) {
	t.Parallel()

	plan := Plan{}.Select("name,price")
	require.Equal(t, []string{"name", "price"}, plan.fields)

	plan = Plan{}.Select("")
	require.Nil(t, plan.fields)
}

func TestAmbientFilterWins(t *testing.T) {
	t.Parallel()

	plan := Build(url.Values{"tour": {"sneaky"}, "rating": {"5"}})
	criteria := plan.Criteria(bson.M{"tour": "real-tour-id"})

	assert.Equal(t, "real-tour-id", criteria["tour"])
	assert.Equal(t, float64(5), criteria["rating"])
}

func TestTransformationsAreImmutable(t *testing.T) {
	t.Parallel()

	base := Build(url.Values{"price[gte]": {"100"}})
	derived := base.Sort("price").Paginate("4", "25")

	assert.Equal(t, 1, base.Page())
	assert.Equal(t, []SortKey{{Field: "createdAt", Descending: true}}, base.sort)
	assert.Equal(t, 4, derived.Page())
	assert.Equal(t, base.Criteria(nil), derived.Criteria(nil))
}
