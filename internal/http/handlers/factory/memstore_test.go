package factory_test

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/query"
)

var testNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory Store understanding the subset of the query
// language the builder produces.
type memStore struct {
	mu    sync.Mutex
	scope bson.M
	docs  []bson.M
}

func (s *memStore) add(doc bson.M) bson.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := doc["_id"].(bson.ObjectID)
	if !ok {
		id = bson.NewObjectID()
		doc["_id"] = id
	}
	s.docs = append(s.docs, doc)
	return id
}

func (s *memStore) raw(id bson.ObjectID) bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d["_id"] == id {
			return d
		}
	}
	return nil
}

func (s *memStore) Find(_ context.Context, q query.Query, _ ...query.Relation) ([]bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []bson.M{}
	for _, d := range s.docs {
		if match(d, q.Filter) {
			out = append(out, clone(d))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j], q.Sort) })

	if q.Skip >= int64(len(out)) {
		return []bson.M{}, nil
	}
	out = out[q.Skip:]
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	for i := range out {
		out[i] = project(out[i], q.Projection)
	}
	return out, nil
}

func (s *memStore) locate(id string) (int, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return -1, &domain.InvalidIDError{Value: id}
	}
	for i, d := range s.docs {
		if d["_id"] == oid && match(d, s.scope) {
			return i, nil
		}
	}
	return -1, domain.ErrNotFound
}

func (s *memStore) FindByID(_ context.Context, id string, _ ...query.Relation) (bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	return project(clone(s.docs[i]), nil), nil
}

func (s *memStore) Insert(_ context.Context, doc bson.M) (bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := doc["_id"].(bson.ObjectID); !ok {
		doc["_id"] = bson.NewObjectID()
	}
	s.docs = append(s.docs, clone(doc))
	return project(clone(doc), nil), nil
}

func (s *memStore) UpdateByID(_ context.Context, id string, set bson.M) (bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		s.docs[i][k] = v
	}
	return project(clone(s.docs[i]), nil), nil
}

func (s *memStore) DeleteByID(_ context.Context, id string) (bson.M, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	doc := s.docs[i]
	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	return doc, nil
}

func clone(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func match(doc, filter bson.M) bool {
	for key, cond := range filter {
		if key == "$and" {
			for _, sub := range cond.(bson.A) {
				if !match(doc, sub.(bson.M)) {
					return false
				}
			}
			continue
		}
		ops, isOps := cond.(bson.M)
		if !isOps {
			if !equal(doc[key], cond) {
				return false
			}
			continue
		}
		for op, want := range ops {
			if !apply(op, doc[key], want) {
				return false
			}
		}
	}
	return true
}

func apply(op string, have, want any) bool {
	switch op {
	case "$eq":
		return equal(have, want)
	case "$ne":
		return !equal(have, want)
	case "$in":
		for _, w := range want.(bson.A) {
			if equal(have, w) {
				return true
			}
		}
		return false
	}
	c, ok := compare(have, want)
	if !ok {
		return false
	}
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	case "$lte":
		return c <= 0
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case bson.ObjectID:
		y, ok := b.(bson.ObjectID)
		return strings.Compare(x.Hex(), y.Hex()), ok
	case bson.DateTime:
		return compare(x.Time(), b)
	case time.Time:
		var y time.Time
		switch t := b.(type) {
		case time.Time:
			y = t
		case bson.DateTime:
			y = t.Time()
		default:
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func less(a, b bson.M, keys bson.D) bool {
	for _, k := range keys {
		c, ok := compare(a[k.Key], b[k.Key])
		if !ok || c == 0 {
			continue
		}
		if k.Value.(int) < 0 {
			return c > 0
		}
		return c < 0
	}
	return false
}

func project(doc, proj bson.M) bson.M {
	if proj == nil {
		proj = bson.M{query.VersionField: 0}
	}
	inclusion := false
	for k, v := range proj {
		if v == 1 && k != "_id" {
			inclusion = true
		}
	}
	if !inclusion {
		for k := range proj {
			delete(doc, k)
		}
		return doc
	}
	out := bson.M{}
	if proj["_id"] != 0 {
		out["_id"] = doc["_id"]
	}
	for k, v := range proj {
		if v == 1 {
			if val, ok := doc[k]; ok {
				out[k] = val
			}
		}
	}
	return out
}
