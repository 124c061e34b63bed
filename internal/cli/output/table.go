package output

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
)

// Table is pre-built tabular output.
type Table struct {
	Headers []string
	Rows    [][]string
}

func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table with columns aligned by tabwriter.
func (t *Table) Render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// TableFormatter renders structs, slices of structs and maps as tables.
// Struct fields tagged `table:"wide"` only appear with Wide; `table:"-"`
// never appears. Headers come from the json tag.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	switch t := data.(type) {
	case *Table:
		return t.Render(w, f.NoHeaders)
	case Table:
		return t.Render(w, f.NoHeaders)
	}

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	var table *Table
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		table = f.sliceTable(v)
	case reflect.Struct:
		table = structTable(v)
	case reflect.Map:
		table = mapTable(v)
	default:
		_, err := fmt.Fprintln(w, cell(v))
		return err
	}
	return table.Render(w, f.NoHeaders)
}

type column struct {
	index  int
	header string
}

func (f *TableFormatter) columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" || (tag == "wide" && !f.Wide) {
			continue
		}
		cols = append(cols, column{index: i, header: strings.ToUpper(fieldName(field))})
	}
	return cols
}

func (f *TableFormatter) sliceTable(v reflect.Value) *Table {
	elemType := v.Type().Elem()
	for elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct || isScalarStruct(elemType) {
		table := &Table{Headers: []string{"VALUE"}}
		for i := 0; i < v.Len(); i++ {
			table.AddRow(cell(v.Index(i)))
		}
		return table
	}

	cols := f.columns(elemType)
	table := &Table{}
	for _, c := range cols {
		table.Headers = append(table.Headers, c.header)
	}
	for i := 0; i < v.Len(); i++ {
		elem := reflect.Indirect(v.Index(i))
		row := make([]string, 0, len(cols))
		for _, c := range cols {
			row = append(row, cell(elem.Field(c.index)))
		}
		table.AddRow(row...)
	}
	return table
}

func structTable(v reflect.Value) *Table {
	table := &Table{Headers: []string{"FIELD", "VALUE"}}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("table") == "-" {
			continue
		}
		table.AddRow(fieldName(field), cell(v.Field(i)))
	}
	return table
}

func mapTable(v reflect.Value) *Table {
	table := &Table{Headers: []string{"KEY", "VALUE"}}
	iter := v.MapRange()
	for iter.Next() {
		table.AddRow(cell(iter.Key()), cell(iter.Value()))
	}
	sort.Slice(table.Rows, func(i, j int) bool { return table.Rows[i][0] < table.Rows[j][0] })
	return table
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// isScalarStruct reports struct types that print as a single value.
func isScalarStruct(t reflect.Type) bool {
	return t.Implements(stringerType)
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

func cell(v reflect.Value) string {
	if !v.IsValid() {
		return "-"
	}
	if (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil() {
		return "-"
	}
	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			if text := s.String(); text != "" {
				return text
			}
			return "-"
		}
	}
	v = reflect.Indirect(v)
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		if v.String() == "" {
			return "-"
		}
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
