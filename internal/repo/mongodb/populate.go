package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/diagnosis/luxsuv-tours/internal/query"
)

// populate resolves each relation with one query per relation, not per document.
func (c *Collection) populate(ctx context.Context, docs []bson.M, rels []query.Relation) error {
	if len(docs) == 0 {
		return nil
	}
	for _, rel := range rels {
		var err error
		if rel.IsVirtual() {
			err = c.populateVirtual(ctx, docs, rel)
		} else {
			err = c.populateRef(ctx, docs, rel)
		}
		if err != nil {
			return fmt.Errorf("populate %s: %w", rel.Path, err)
		}
	}
	return nil
}

func (c *Collection) populateRef(ctx context.Context, docs []bson.M, rel query.Relation) error {
	var ids bson.A
	seen := map[bson.ObjectID]bool{}
	for _, doc := range docs {
		for _, id := range objectIDs(doc[rel.Path]) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	targets, err := c.fetch(ctx, rel, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	byID := make(map[bson.ObjectID]bson.M, len(targets))
	for _, t := range targets {
		if id, ok := t["_id"].(bson.ObjectID); ok {
			byID[id] = t
		}
	}

	for _, doc := range docs {
		switch v := doc[rel.Path].(type) {
		case bson.ObjectID:
			if t, ok := byID[v]; ok {
				doc[rel.Path] = t
			} else {
				doc[rel.Path] = nil
			}
		case bson.A:
			resolved := make([]bson.M, 0, len(v))
			for _, id := range objectIDs(v) {
				if t, ok := byID[id]; ok {
					resolved = append(resolved, t)
				}
			}
			doc[rel.Path] = resolved
		}
	}
	return nil
}

func (c *Collection) populateVirtual(ctx context.Context, docs []bson.M, rel query.Relation) error {
	var ids bson.A
	for _, doc := range docs {
		if id, ok := doc["_id"].(bson.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	targets, err := c.fetch(ctx, rel, bson.M{rel.ForeignField: bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	grouped := map[bson.ObjectID][]bson.M{}
	for _, t := range targets {
		if id, ok := t[rel.ForeignField].(bson.ObjectID); ok {
			grouped[id] = append(grouped[id], t)
		}
	}
	for _, doc := range docs {
		id, _ := doc["_id"].(bson.ObjectID)
		if list, ok := grouped[id]; ok {
			doc[rel.Path] = list
		} else {
			doc[rel.Path] = []bson.M{}
		}
	}
	return nil
}

func (c *Collection) fetch(ctx context.Context, rel query.Relation, filter bson.M) ([]bson.M, error) {
	if len(rel.Scope) > 0 {
		filter = bson.M{"$and": bson.A{rel.Scope, filter}}
	}
	opts := options.Find()
	proj := rel.Projection
	if len(proj) == 0 {
		proj = bson.M{query.VersionField: 0}
	}
	opts.SetProjection(proj)

	cur, err := c.db.Collection(rel.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []bson.M{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func objectIDs(v any) []bson.ObjectID {
	switch t := v.(type) {
	case bson.ObjectID:
		return []bson.ObjectID{t}
	case bson.A:
		out := make([]bson.ObjectID, 0, len(t))
		for _, e := range t {
			if id, ok := e.(bson.ObjectID); ok {
				out = append(out, id)
			}
		}
		return out
	case []bson.ObjectID:
		return t
	}
	return nil
}
