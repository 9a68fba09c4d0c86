package query

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
)

func parse(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bson.M
	}{
		{
			name: "comparison operators",
			raw:  "price[gte]=100&duration[lt]=10",
			want: bson.M{"price": bson.M{"$gte": 100.0}, "duration": bson.M{"$lt": 10.0}},
		},
		{
			name: "range on one field",
			raw:  "price[gt]=100&price[lte]=500",
			want: bson.M{"price": bson.M{"$gt": 100.0, "$lte": 500.0}},
		},
		{
			name: "reserved keys dropped",
			raw:  "difficulty=easy&page=2&sort=price&limit=5&fields=name",
			want: bson.M{"difficulty": "easy"},
		},
		{
			name: "bool and number coercion",
			raw:  "secretTour=false&maxGroupSize=25",
			want: bson.M{"secretTour": false, "maxGroupSize": 25.0},
		},
		{
			name: "operator injection dropped",
			raw:  "$where=1&price[$ne]=1&startLocation.type=Point&name[regex]=x",
			want: bson.M{},
		},
		{
			name: "last value wins for non repeatable",
			raw:  "name=a&name=b",
			want: bson.M{"name": "b"},
		},
		{
			name: "repeatable becomes $in",
			raw:  "difficulty=easy&difficulty=medium",
			want: bson.M{"difficulty": bson.M{"$in": bson.A{"easy", "medium"}}},
		},
		{
			name: "hidden fields are not filterable",
			raw:  "password[gt]=a&name=x",
			want: bson.M{"name": "x"},
		},
	}

	opts := Options{Repeatable: []string{"difficulty"}, Hidden: []string{"password"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New(parse(t, tt.raw), opts).Filter().Query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Filter)
		})
	}
}

func TestFilterDeclaredKinds(t *testing.T) {
	id := bson.NewObjectID()
	opts := Options{Fields: map[string]Kind{"tour": KindObjectID, "name": KindString, "price": KindNumber}}

	q, err := New(parse(t, "tour="+id.Hex()+"&name=1234"), opts).Filter().Query()
	require.NoError(t, err)
	assert.Equal(t, bson.M{"tour": id, "name": "1234"}, q.Filter)

	_, err = New(parse(t, "price[gte]=cheap"), opts).Filter().Query()
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Contains(t, err.Error(), "Invalid price: cheap.")
}

func TestScopeIsAndedWithFilter(t *testing.T) {
	opts := Options{Scope: domain.VisibleTours()}

	q, err := New(parse(t, ""), opts).Scope().Filter().Query()
	require.NoError(t, err)
	assert.Equal(t, domain.VisibleTours(), q.Filter)

	tourID := bson.NewObjectID()
	q, err = Build(parse(t, "rating[gte]=4"), opts, bson.M{"tour": tourID})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": bson.A{
		domain.VisibleTours(),
		bson.M{"tour": tourID},
		bson.M{"rating": bson.M{"$gte": 4.0}},
	}}, q.Filter)
}

func TestSort(t *testing.T) {
	tests := []struct {
		raw  string
		want bson.D
	}{
		{"", bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{"sort=-price", bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: -1}}},
		{"sort=price,-ratingsAverage", bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}, {Key: "_id", Value: 1}}},
		{"sort=name,_id", bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}},
		{"sort=$natural,price,price", bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}},
		{"sort=,", bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := New(parse(t, tt.raw), Options{}).Sort().Query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Sort)
		})
	}
}

func TestLimitFields(t *testing.T) {
	opts := Options{Hidden: []string{"password", "active"}}
	tests := []struct {
		raw  string
		want bson.M
	}{
		{"", bson.M{"__v": 0, "password": 0, "active": 0}},
		{"fields=name,price", bson.M{"name": 1, "price": 1}},
		{"fields=name,password", bson.M{"name": 1}},
		{"fields=name,-_id", bson.M{"name": 1, "_id": 0}},
		{"fields=-summary", bson.M{"summary": 0, "password": 0, "active": 0}},
		{"fields=password", bson.M{"__v": 0, "password": 0, "active": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := New(parse(t, tt.raw), opts).LimitFields().Query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Projection)
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		raw       string
		skip, lim int64
	}{
		{"", 0, 100},
		{"page=3&limit=10", 20, 10},
		{"page=0&limit=-5", 0, 100},
		{"page=abc&limit=xyz", 0, 100},
		{"limit=50000", 0, MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := New(parse(t, tt.raw), Options{}).Paginate().Query()
			require.NoError(t, err)
			assert.Equal(t, tt.skip, q.Skip)
			assert.Equal(t, tt.lim, q.Limit)
		})
	}
}

func TestPaginateSkipProperty(t *testing.T) {
	for page := int64(1); page <= 40; page++ {
		for _, limit := range []int64{1, 2, 7, 10, 100, 999} {
			raw := fmt.Sprintf("page=%d&limit=%d", page, limit)
			q, err := New(parse(t, raw), Options{}).Paginate().Query()
			require.NoError(t, err)
			assert.Equal(t, (page-1)*limit, q.Skip, raw)
			assert.Equal(t, limit, q.Limit, raw)
		}
	}
}

func TestPaginateHugePageDoesNotOverflow(t *testing.T) {
	for _, raw := range []string{
		"page=9223372036854775807&limit=1000",
		"page=9223372036854775807&limit=1",
		"page=9223372036854775807&limit=7",
	} {
		t.Run(raw, func(t *testing.T) {
			q, err := New(parse(t, raw), Options{}).Paginate().Query()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, q.Page, int64(1))
			assert.GreaterOrEqual(t, q.Skip, int64(0))
			assert.Equal(t, (q.Page-1)*q.Limit, q.Skip)
		})
	}
}

func TestPaginateSingleItemPages(t *testing.T) {
	first, err := New(parse(t, "page=1&limit=1"), Options{}).Paginate().Query()
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Page)
	assert.Equal(t, int64(0), first.Skip)

	second, err := New(parse(t, "page=2&limit=1"), Options{}).Paginate().Query()
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Page)
	assert.Equal(t, int64(1), second.Skip)
}

func TestFindOptions(t *testing.T) {
	q, err := Build(parse(t, "sort=-price&limit=2&page=2&fields=name"), Options{}, nil)
	require.NoError(t, err)

	var fo options.FindOptions
	for _, set := range q.FindOptions().List() {
		require.NoError(t, set(&fo))
	}
	require.NotNil(t, fo.Skip)
	require.NotNil(t, fo.Limit)
	assert.Equal(t, int64(2), *fo.Skip)
	assert.Equal(t, int64(2), *fo.Limit)
	assert.Equal(t, q.Sort, fo.Sort)
	assert.Equal(t, bson.M{"name": 1}, fo.Projection)
}
