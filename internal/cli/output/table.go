package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"
)

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without the header row.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return nil
}

// TableFormatter formats data as an ASCII table.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format renders data as a table. Accepts a Table directly, or derives one
// from a slice of structs/maps, a map, or a single struct; anything else
// falls back to indented JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	switch t := data.(type) {
	case *Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	}

	table, err := buildTable(data, f.Wide)
	if err != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return table.RenderWithOptions(w, f.NoHeaders)
}

// buildTable derives a Table from a slice, map, or struct value.
func buildTable(data any, wide bool) (*Table, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return tableFromSlice(v, wide)
	case reflect.Map:
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		appendMapRows(t, v)
		return t, nil
	case reflect.Struct:
		return tableFromStruct(v)
	}
	return nil, fmt.Errorf("unsupported type: %s", v.Kind())
}

// column describes one table column derived from a struct field.
type column struct {
	header string
	index  int
}

// structColumns selects the visible fields of a struct type. Fields tagged
// table:"-" are skipped, table:"wide" fields only show in wide mode, and
// the json tag (when set) names the column.
func structColumns(t reflect.Type, wide bool) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" {
			continue
		}
		if strings.Contains(tag, "wide") && !wide {
			continue
		}
		cols = append(cols, column{header: columnHeader(field), index: i})
	}
	return cols
}

// columnHeader picks the display name for a struct field: the json tag
// name when present, else the field name, uppercased with underscores
// between camel-case words.
func columnHeader(field reflect.StructField) string {
	name := field.Name
	if jsonTag := field.Tag.Get("json"); jsonTag != "" {
		if tagName, _, _ := strings.Cut(jsonTag, ","); tagName != "" && tagName != "-" {
			name = tagName
		}
	}

	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func tableFromSlice(v reflect.Value, wide bool) (*Table, error) {
	if v.Len() == 0 {
		return &Table{}, nil
	}

	first := v.Index(0)
	if first.Kind() == reflect.Ptr {
		first = first.Elem()
	}

	table := &Table{}
	var cols []column
	switch first.Kind() {
	case reflect.Struct:
		cols = structColumns(first.Type(), wide)
		for _, c := range cols {
			table.Headers = append(table.Headers, c.header)
		}
	case reflect.Map:
		table.Headers = []string{"KEY", "VALUE"}
	default:
		table.Headers = []string{"VALUE"}
	}

	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		switch elem.Kind() {
		case reflect.Struct:
			row := make([]string, 0, len(cols))
			for _, c := range cols {
				row = append(row, renderCell(elem.Field(c.index)))
			}
			table.AddRow(row...)
		case reflect.Map:
			appendMapRows(table, elem)
		default:
			table.AddRow(renderCell(elem))
		}
	}
	return table, nil
}

func appendMapRows(t *Table, v reflect.Value) {
	iter := v.MapRange()
	for iter.Next() {
		t.AddRow(renderCell(iter.Key()), renderCell(iter.Value()))
	}
}

// tableFromStruct renders a single struct as FIELD/VALUE pairs.
func tableFromStruct(v reflect.Value) (*Table, error) {
	table := &Table{Headers: []string{"FIELD", "VALUE"}}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			if tagName, _, _ := strings.Cut(jsonTag, ","); tagName != "" && tagName != "-" {
				name = tagName
			}
		}
		table.AddRow(name, renderCell(v.Field(i)))
	}
	return table, nil
}

// renderCell formats one value for a table cell. Empty strings and empty
// containers render as "-"; nested containers show only their size.
func renderCell(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	if v.Type() == reflect.TypeOf(time.Time{}) {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	}

	switch v.Kind() {
	case reflect.String:
		if s := v.String(); s != "" {
			return s
		}
		return "-"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", v.Float())
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
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
	}
	return fmt.Sprintf("%v", v.Interface())
}
