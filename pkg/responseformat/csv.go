package responseformat

import (
	"encoding"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrNotTabular is returned when CSV output is requested for data that is not a slice
// of structs.
var ErrNotTabular = errors.New("csv output needs a list of records")

var timeType = reflect.TypeOf(time.Time{})

// column is a path of field indexes from the record struct to a scalar value.
type column struct {
	name  string
	index [][]int
}

// writeCSV writes a header row named after json tags followed by one row per element.
// Nested structs are flattened with an underscore-joined prefix.
func writeCSV(w io.Writer, data any) error {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ErrNotTabular
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("%w: got %s", ErrNotTabular, v.Kind())
	}

	elem := v.Type().Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct || elem == timeType {
		return fmt.Errorf("%w: elements are %s", ErrNotTabular, elem.Kind())
	}

	cols := columns(elem, "", nil)
	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		for j, c := range cols {
			record[j] = cell(row, c.index)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// scalar reports whether t is written as a single cell.
func scalar(t reflect.Type) bool {
	if t == timeType || t.Implements(textMarshaler) {
		return true
	}
	return t.Kind() != reflect.Struct
}

func columns(t reflect.Type, prefix string, path [][]int) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || !f.IsExported() {
			continue
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		// Collections have no single cell.
		if ft.Kind() == reflect.Slice || ft.Kind() == reflect.Map || ft.Kind() == reflect.Array {
			continue
		}
		fieldPath := append(append([][]int{}, path...), f.Index)

		if !scalar(ft) {
			sub := prefix
			if !f.Anonymous || name != "" {
				if name == "" {
					name = f.Name
				}
				sub = prefix + name + "_"
			}
			cols = append(cols, columns(ft, sub, fieldPath)...)
			continue
		}
		if name == "" {
			name = f.Name
		}
		cols = append(cols, column{name: prefix + name, index: fieldPath})
	}
	return cols
}

func cell(v reflect.Value, path [][]int) string {
	for _, idx := range path {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return ""
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(idx)
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		if v.Type().Implements(textMarshaler) && v.Kind() != reflect.Interface {
			break
		}
		v = v.Elem()
	}

	switch x := v.Interface().(type) {
	case time.Time:
		return x.Format(time.RFC3339)
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return ""
		}
		return string(b)
	}

	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.String:
		return v.String()
	}
	return fmt.Sprint(v.Interface())
}
