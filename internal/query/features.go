// Package query turns an HTTP query string into a bounded MongoDB query.
//
// A list request runs through the stages in order: Scope, Filter, Sort,
// LimitFields, Paginate. Each stage only reads the parameters it owns, so a
// stage can be skipped without affecting the others.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
)

const (
	DefaultLimit int64 = 100
	MaxLimit     int64 = 1000
	DefaultSort        = "-createdAt"

	// VersionField is the internal document version, hidden by default.
	VersionField = "__v"
)

// Parameters owned by Sort, LimitFields and Paginate; never used as filters.
var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var comparisons = map[string]string{"gte": "$gte", "gt": "$gt", "lte": "$lte", "lt": "$lt"}

// Kind tells Filter how to coerce a raw query value.
type Kind int

const (
	KindAuto Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindObjectID
)

// Options describe one resource.
type Options struct {
	// Scope is AND-ed into every query, e.g. soft-delete or secret filters.
	Scope bson.M
	// Fields declares value kinds; undeclared fields are coerced heuristically.
	Fields map[string]Kind
	// Repeatable fields turn repeated parameters into $in instead of keeping the last value.
	Repeatable []string
	// Hidden fields are never projected.
	Hidden []string

	DefaultSort  string
	DefaultLimit int64
	MaxLimit     int64
}

// Query is a composed, not yet executed, find.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Page       int64
	Skip       int64
	Limit      int64
}

// FindOptions converts q into driver options.
func (q Query) FindOptions() *options.FindOptionsBuilder {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return opts
}

// Features accumulates the stages. Use New(...).Scope(...).Filter()... then Query().
type Features struct {
	params url.Values
	opts   Options
	conds  []bson.M
	q      Query
	err    error
}

func New(params url.Values, opts Options) *Features {
	if params == nil {
		params = url.Values{}
	}
	if opts.DefaultSort == "" {
		opts.DefaultSort = DefaultSort
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	return &Features{params: params, opts: opts}
}

// Build runs every stage with an optional ambient filter, e.g. a parent id
// taken from the route.
func Build(params url.Values, opts Options, ambient bson.M) (Query, error) {
	return New(params, opts).Scope(ambient).Filter().Sort().LimitFields().Paginate().Query()
}

// Scope adds the resource scope plus any ambient filters.
func (f *Features) Scope(ambient ...bson.M) *Features {
	if len(f.opts.Scope) > 0 {
		f.conds = append(f.conds, f.opts.Scope)
	}
	for _, m := range ambient {
		if len(m) > 0 {
			f.conds = append(f.conds, m)
		}
	}
	return f
}

// Filter turns the remaining parameters into exact matches and comparisons.
func (f *Features) Filter() *Features {
	eq := bson.M{}
	ops := map[string]bson.M{}

	for key, values := range f.params {
		if len(values) == 0 {
			continue
		}
		field, op, ok := splitKey(key)
		if !ok || reserved[field] || f.hidden(field) {
			continue
		}

		if op == "" {
			if len(values) > 1 && f.repeatable(field) {
				in := make(bson.A, 0, len(values))
				for _, raw := range values {
					v, err := f.coerce(field, raw)
					if err != nil {
						f.fail(err)
						return f
					}
					in = append(in, v)
				}
				ops[field] = mergeOp(ops[field], "$in", in)
				continue
			}
			v, err := f.coerce(field, values[len(values)-1])
			if err != nil {
				f.fail(err)
				return f
			}
			eq[field] = v
			continue
		}

		mongoOp, known := comparisons[op]
		if !known {
			continue
		}
		v, err := f.coerce(field, values[len(values)-1])
		if err != nil {
			f.fail(err)
			return f
		}
		ops[field] = mergeOp(ops[field], mongoOp, v)
	}

	filter := bson.M{}
	for field, v := range eq {
		filter[field] = v
	}
	for field, m := range ops {
		if v, ok := eq[field]; ok {
			m["$eq"] = v
		}
		filter[field] = m
	}
	if len(filter) > 0 {
		f.conds = append(f.conds, filter)
	}
	return f
}

// Sort reads a comma list such as "-price,ratingsAverage". _id is always the
// final key so equal values page deterministically.
func (f *Features) Sort() *Features {
	raw := f.params.Get("sort")
	if vals := f.params["sort"]; len(vals) > 1 {
		raw = vals[len(vals)-1]
	}
	if strings.TrimSpace(raw) == "" {
		raw = f.opts.DefaultSort
	}

	sort := bson.D{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = part[1:]
		}
		if !validField(part) || seen[part] {
			continue
		}
		seen[part] = true
		sort = append(sort, bson.E{Key: part, Value: dir})
	}
	if len(sort) == 0 {
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	}
	if !seen["_id"] {
		sort = append(sort, bson.E{Key: "_id", Value: sort[0].Value})
	}
	f.q.Sort = sort
	return f
}

// LimitFields projects "fields=name,price" (inclusion) or "fields=-summary"
// (exclusion). Without it every field except __v and hidden ones is returned.
func (f *Features) LimitFields() *Features {
	hidden := map[string]bool{}
	for _, h := range f.opts.Hidden {
		hidden[h] = true
	}

	include := bson.M{}
	exclude := bson.M{}
	for _, part := range strings.Split(f.params.Get("fields"), ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "-") {
			name := part[1:]
			if validField(name) {
				exclude[name] = 0
			}
			continue
		}
		if validField(part) && !hidden[part] {
			include[part] = 1
		}
	}

	switch {
	case len(include) > 0:
		// Mongo only allows _id exclusion alongside inclusions.
		if _, ok := exclude["_id"]; ok {
			include["_id"] = 0
		}
		f.q.Projection = include
	case len(exclude) > 0:
		for h := range hidden {
			exclude[h] = 0
		}
		f.q.Projection = exclude
	default:
		proj := bson.M{VersionField: 0}
		for h := range hidden {
			proj[h] = 0
		}
		f.q.Projection = proj
	}
	return f
}

// Paginate sets skip/limit from page (default 1) and limit (default 100,
// capped). Invalid values fall back to the defaults.
func (f *Features) Paginate() *Features {
	page := positive(f.params.Get("page"), 1)
	limit := positive(f.params.Get("limit"), f.opts.DefaultLimit)
	if limit > f.opts.MaxLimit {
		limit = f.opts.MaxLimit
	}
	// Keeps (page-1)*limit from overflowing.
	if maxPage := math.MaxInt64 / limit; page > maxPage {
		page = maxPage
	}
	f.q.Page = page
	f.q.Limit = limit
	f.q.Skip = (page - 1) * limit
	return f
}

// Query returns the composed query, or the first coercion error.
func (f *Features) Query() (Query, error) {
	if f.err != nil {
		return Query{}, f.err
	}
	q := f.q
	switch len(f.conds) {
	case 0:
		q.Filter = bson.M{}
	case 1:
		q.Filter = f.conds[0]
	default:
		and := make(bson.A, 0, len(f.conds))
		for _, c := range f.conds {
			and = append(and, c)
		}
		q.Filter = bson.M{"$and": and}
	}
	return q, nil
}

func (f *Features) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *Features) hidden(field string) bool {
	for _, h := range f.opts.Hidden {
		if h == field {
			return true
		}
	}
	return false
}

func (f *Features) repeatable(field string) bool {
	for _, r := range f.opts.Repeatable {
		if r == field {
			return true
		}
	}
	return false
}

func (f *Features) coerce(field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.opts.Fields[field] {
	case KindString:
		return raw, nil
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, castError(field, raw)
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, castError(field, raw)
		}
		return b, nil
	case KindDate:
		t, err := parseDate(raw)
		if err != nil {
			return nil, castError(field, raw)
		}
		return t, nil
	case KindObjectID:
		id, err := bson.ObjectIDFromHex(raw)
		if err != nil {
			return nil, castError(field, raw)
		}
		return id, nil
	}

	if field == "_id" {
		if id, err := bson.ObjectIDFromHex(raw); err == nil {
			return id, nil
		}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n, nil
	}
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return raw, nil
}

func castError(field, raw string) error {
	return domain.Errorf(domain.KindValidation, "Invalid %s: %s.", field, raw)
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// splitKey parses "price[gte]" into ("price", "gte"). Keys that could inject
// operators or reach into sub-documents are rejected.
func splitKey(key string) (field, op string, ok bool) {
	field = key
	if i := strings.IndexByte(key, '['); i >= 0 {
		if !strings.HasSuffix(key, "]") {
			return "", "", false
		}
		field, op = key[:i], key[i+1:len(key)-1]
	}
	if !validField(field) {
		return "", "", false
	}
	return field, op, true
}

func validField(name string) bool {
	return name != "" && !strings.ContainsAny(name, "$.[] ")
}

func mergeOp(m bson.M, op string, v any) bson.M {
	if m == nil {
		m = bson.M{}
	}
	m[op] = v
	return m
}

func positive(raw string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}
