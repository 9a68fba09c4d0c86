package factory

import (
	"reflect"
	"strings"
)

// field describes one client-updatable struct field.
type field struct {
	goName   string
	bsonName string
	index    []int
}

// updatableFields maps JSON names to fields of t. Fields tagged patch:"-"
// or json:"-" cannot be set through an update.
func updatableFields(t reflect.Type) map[string]field {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]field{}
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("patch") == "-" {
			continue
		}
		jsonName := tagName(sf.Tag.Get("json"))
		if jsonName == "-" {
			continue
		}
		if jsonName == "" {
			jsonName = sf.Name
		}
		bsonName := tagName(sf.Tag.Get("bson"))
		if bsonName == "-" {
			continue
		}
		if bsonName == "" {
			bsonName = strings.ToLower(sf.Name)
		}
		out[jsonName] = field{goName: sf.Name, bsonName: bsonName, index: sf.Index}
	}
	return out
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}
