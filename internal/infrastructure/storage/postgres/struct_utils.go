package postgres

import (
	"reflect"
	"sync"
)

// columnIndex maps a "db" tag to the field index path inside a struct.
type columnIndex struct {
	name  string
	index []int
}

var columnCache sync.Map // map[reflect.Type][]columnIndex

func columnsOf(t reflect.Type) []columnIndex {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]columnIndex)
	}
	cols := collectColumns(t, nil)
	columnCache.Store(t, cols)
	return cols
}

func collectColumns(t reflect.Type, prefix []int) []columnIndex {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var cols []columnIndex
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)
		if f.Anonymous {
			cols = append(cols, collectColumns(f.Type, path)...)
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, columnIndex{name: tag, index: path})
	}
	return cols
}

// Columns lists the "db" tagged columns of T, embedded structs included,
// in field order.
func Columns[T any]() []string {
	var zero T
	idx := columnsOf(reflect.TypeOf(zero))
	out := make([]string, len(idx))
	for i, c := range idx {
		out[i] = c.name
	}
	return out
}

// StructToMap converts a struct (or pointer to one) to column values.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	idx := columnsOf(rv.Type())
	res := make(map[string]any, len(idx))
	for _, c := range idx {
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}

// RowValues returns the values of cols from v in the given order, for COPY.
func RowValues(v any, cols []string) []any {
	m := StructToMap(v)
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = m[c]
	}
	return out
}

// Without returns cols minus the excluded names.
func Without(cols []string, exclude ...string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		skip := false
		for _, e := range exclude {
			if c == e {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out
}
