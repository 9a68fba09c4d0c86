// Package seed loads the development data set into MongoDB.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
)

// Hasher turns plain seed passwords into stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
}

// Data is one development data set.
type Data struct {
	Tours   []bson.M
	Users   []bson.M
	Reviews []bson.M
}

// files maps each collection to its JSON file in the data directory.
var files = map[string]string{
	mongodb.ToursCollection:   "tours.json",
	mongodb.UsersCollection:   "users.json",
	mongodb.ReviewsCollection: "reviews.json",
}

// Fields holding ids or dates in the JSON files.
var (
	idFields   = map[string]bool{"_id": true, "guides": true, "tour": true, "user": true}
	dateFields = map[string]bool{"startDates": true, "createdAt": true, "passwordChangedAt": true}
)

// Load reads tours.json, users.json and reviews.json from dir.
func Load(dir string) (*Data, error) {
	read := func(collection string) ([]bson.M, error) {
		raw, err := os.ReadFile(filepath.Join(dir, files[collection]))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", collection, err)
		}
		return Parse(raw)
	}
	var (
		d   Data
		err error
	)
	if d.Tours, err = read(mongodb.ToursCollection); err != nil {
		return nil, err
	}
	if d.Users, err = read(mongodb.UsersCollection); err != nil {
		return nil, err
	}
	if d.Reviews, err = read(mongodb.ReviewsCollection); err != nil {
		return nil, err
	}
	return &d, nil
}

// Parse decodes a JSON array of documents, converting hex ids and RFC 3339
// dates into their BSON types.
func Parse(raw []byte) ([]bson.M, error) {
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	out := make([]bson.M, 0, len(docs))
	for i, doc := range docs {
		m := bson.M{}
		for k, v := range doc {
			conv, err := convert(k, v)
			if err != nil {
				return nil, fmt.Errorf("document %d field %s: %w", i, k, err)
			}
			m[k] = conv
		}
		out = append(out, m)
	}
	return out, nil
}

func convert(key string, v any) (any, error) {
	switch {
	case idFields[key]:
		return mapScalar(v, func(s string) (any, error) { return bson.ObjectIDFromHex(s) })
	case dateFields[key]:
		return mapScalar(v, func(s string) (any, error) {
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02,15:04", "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), nil
				}
			}
			return nil, fmt.Errorf("invalid date %q", s)
		})
	}
	return v, nil
}

// mapScalar applies fn to a string or to every string in an array.
func mapScalar(v any, fn func(string) (any, error)) (any, error) {
	switch x := v.(type) {
	case string:
		return fn(x)
	case []any:
		out := bson.A{}
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			conv, err := fn(s)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	}
	return v, nil
}

// PrepareTours fills the fields the API derives on create.
func PrepareTours(tours []bson.M, now time.Time) {
	for _, t := range tours {
		if name, ok := t["name"].(string); ok {
			t["slug"] = domain.Slugify(name)
		}
		if _, ok := t["ratingsAverage"]; !ok {
			t["ratingsAverage"] = 4.5
		}
		if _, ok := t["secretTour"]; !ok {
			t["secretTour"] = false
		}
		if _, ok := t["createdAt"]; !ok {
			t["createdAt"] = now
		}
	}
}

// PrepareUsers hashes plain passwords and drops the confirmation field.
func PrepareUsers(users []bson.M, hasher Hasher, now time.Time) error {
	for _, u := range users {
		if pw, ok := u["password"].(string); ok {
			hash, err := hasher.Hash(pw)
			if err != nil {
				return fmt.Errorf("hash password for %v: %w", u["email"], err)
			}
			u["password"] = hash
		}
		delete(u, "passwordConfirm")
		if email, ok := u["email"].(string); ok {
			u["email"] = domain.NormalizeEmail(email)
		}
		if _, ok := u["role"]; !ok {
			u["role"] = string(domain.RoleUser)
		}
		if _, ok := u["active"]; !ok {
			u["active"] = true
		}
		if _, ok := u["createdAt"]; !ok {
			u["createdAt"] = now
		}
	}
	return nil
}

// Import inserts the data set and recomputes every tour's ratings.
func Import(ctx context.Context, db *mongo.Database, d *Data, hasher Hasher) error {
	now := time.Now().UTC()
	PrepareTours(d.Tours, now)
	if err := PrepareUsers(d.Users, hasher, now); err != nil {
		return err
	}
	for _, r := range d.Reviews {
		if _, ok := r["createdAt"]; !ok {
			r["createdAt"] = now
		}
	}

	for _, set := range []struct {
		collection string
		docs       []bson.M
	}{
		{mongodb.ToursCollection, d.Tours},
		{mongodb.UsersCollection, d.Users},
		{mongodb.ReviewsCollection, d.Reviews},
	} {
		if len(set.docs) == 0 {
			continue
		}
		if _, err := db.Collection(set.collection).InsertMany(ctx, set.docs); err != nil {
			return fmt.Errorf("insert %s: %w", set.collection, err)
		}
	}

	tours := mongodb.NewToursRepo(db)
	for _, t := range d.Tours {
		if id, ok := t["_id"].(bson.ObjectID); ok {
			if err := tours.RecalculateRatings(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete empties the seeded collections.
func Delete(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{mongodb.ToursCollection, mongodb.UsersCollection, mongodb.ReviewsCollection} {
		if _, err := db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}
