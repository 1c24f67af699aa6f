// Package csvexport turns lists of flat records into CSV where every field is quoted.
package csvexport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type (
	Field struct {
		Key   string
		Value string
	}

	// Row keeps its fields in column order.
	Row []Field
)

func (r Row) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Write writes a header line with the keys of the first row, then one line per row.
// Fields missing from a row are written empty; keys absent from the first row are dropped.
func Write(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	header := make([]string, 0, len(rows[0]))
	for _, f := range rows[0] {
		header = append(header, f.Key)
	}
	writeLine(bw, header)

	vals := make([]string, len(header))
	for _, row := range rows {
		for i, key := range header {
			vals[i], _ = row.Get(key)
		}
		writeLine(bw, vals)
	}
	return errors.Wrap(bw.Flush(), "writing csv")
}

func writeLine(w *bufio.Writer, vals []string) {
	for i, v := range vals {
		if i > 0 {
			_ = w.WriteByte(',')
		}
		_ = w.WriteByte('"')
		_, _ = w.WriteString(strings.ReplaceAll(v, `"`, `""`))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('\n')
}

var timeType = reflect.TypeOf(time.Time{})

// Rows converts a slice of structs to rows, one column per exported field named after its json tag.
// Slices of scalars are joined with "; "; other composite values are JSON-encoded.
func Rows(list interface{}) ([]Row, error) {
	v := reflect.ValueOf(list)
	if v.Kind() != reflect.Slice {
		return nil, errors.Errorf("csvexport: want a slice, got %T", list)
	}
	rows := make([]Row, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := reflect.Indirect(v.Index(i))
		if item.Kind() != reflect.Struct {
			return nil, errors.Errorf("csvexport: want a slice of structs, got %T", list)
		}
		row, err := structRow(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func structRow(v reflect.Value) (Row, error) {
	t := v.Type()
	row := make(Row, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		key := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if key == "-" {
			continue
		}
		if key == "" {
			key = sf.Name
		}
		val, err := format(v.Field(i))
		if err != nil {
			return nil, errors.Wrapf(err, "formatting %s", key)
		}
		row = append(row, Field{Key: key, Value: val})
	}
	return row, nil
}

func format(v reflect.Value) (string, error) {
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", nil
		}
		v = v.Elem()
	}
	if v.Type() == timeType {
		tm := v.Interface().(time.Time)
		if tm.IsZero() {
			return "", nil
		}
		return tm.Format(time.RFC3339), nil
	}
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v.Interface()), nil
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			el := v.Index(i)
			switch el.Kind() {
			case reflect.Struct, reflect.Map, reflect.Slice, reflect.Ptr:
				return encode(v)
			}
			parts = append(parts, fmt.Sprint(el.Interface()))
		}
		return strings.Join(parts, "; "), nil
	default:
		return encode(v)
	}
}

func encode(v reflect.Value) (string, error) {
	data, err := json.Marshal(v.Interface())
	return string(data), err
}
