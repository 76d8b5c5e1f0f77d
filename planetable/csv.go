package planetable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Separator is the field separator of plane table CSV files.
const Separator = ';'

// Columns is the CSV header, in order.
var Columns = []string{
	"Subblock", "S", "M", "T", "C", "Z",
	"X[micron]", "Y[micron]", "Z[micron]", "Time[s]",
	"xstart", "ystart", "width", "height",
}

// ErrMissingColumn is returned by ReadCSV when the header lacks a column.
var ErrMissingColumn = errors.New("planetable: missing column")

// WriteCSV writes tbl with a header row.
func WriteCSV(w io.Writer, tbl Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range tbl {
		row := []string{
			strconv.Itoa(r.Subblock),
			strconv.Itoa(r.S), strconv.Itoa(r.M),
			strconv.Itoa(r.T), strconv.Itoa(r.C), strconv.Itoa(r.Z),
			formatFloat(r.X), formatFloat(r.Y), formatFloat(r.ZPos), formatFloat(r.Time),
			strconv.Itoa(r.XStart), strconv.Itoa(r.YStart),
			strconv.Itoa(r.Width), strconv.Itoa(r.Height),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCSV reads a plane table written by WriteCSV or by other tools using the
// same column names. Column order is free and unknown columns are ignored.
// A leading unnamed index column, as written by pandas, is tolerated.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("planetable: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var tbl Table
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("planetable: line %d: %w", line, err)
		}
		rec, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("planetable: line %d: %w", line, err)
		}
		tbl = append(tbl, rec)
	}
	return tbl, nil
}

func parseRow(row []string, idx map[string]int) (Record, error) {
	var (
		rec Record
		err error
	)
	field := func(name string) string {
		i := idx[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	intCol := func(name string, dst *int) {
		if err != nil {
			return
		}
		var v int
		if v, err = strconv.Atoi(field(name)); err != nil {
			err = fmt.Errorf("column %s: %w", name, err)
			return
		}
		*dst = v
	}
	floatCol := func(name string, dst *float64) {
		if err != nil {
			return
		}
		var v float64
		if v, err = strconv.ParseFloat(field(name), 64); err != nil {
			err = fmt.Errorf("column %s: %w", name, err)
			return
		}
		*dst = v
	}

	intCol("Subblock", &rec.Subblock)
	intCol("S", &rec.S)
	intCol("M", &rec.M)
	intCol("T", &rec.T)
	intCol("C", &rec.C)
	intCol("Z", &rec.Z)
	floatCol("X[micron]", &rec.X)
	floatCol("Y[micron]", &rec.Y)
	floatCol("Z[micron]", &rec.ZPos)
	floatCol("Time[s]", &rec.Time)
	intCol("xstart", &rec.XStart)
	intCol("ystart", &rec.YStart)
	intCol("width", &rec.Width)
	intCol("height", &rec.Height)
	return rec, err
}
