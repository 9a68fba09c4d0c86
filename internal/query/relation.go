package query

import "go.mongodb.org/mongo-driver/v2/bson"

// Relation names a document set to resolve into a field of the parent
// after the parent is loaded.
type Relation struct {
	// Path is the parent field that is replaced (reference) or added (virtual).
	Path       string
	Collection string
	// ForeignField is empty for references: Path holds one id or an array
	// of ids of the target. Otherwise the relation is virtual and collects
	// targets whose ForeignField equals the parent _id.
	ForeignField string
	Projection   bson.M
	Scope        bson.M
}

// Ref resolves ids stored in path against collection.
func Ref(path, collection string, projection bson.M) Relation {
	return Relation{Path: path, Collection: collection, Projection: projection}
}

// Virtual collects documents of collection pointing back at the parent.
func Virtual(path, collection, foreignField string) Relation {
	return Relation{Path: path, Collection: collection, ForeignField: foreignField}
}

// WithScope returns r restricted by the target's implicit filter.
func (r Relation) WithScope(scope bson.M) Relation {
	r.Scope = scope
	return r
}

func (r Relation) IsVirtual() bool { return r.ForeignField != "" }
