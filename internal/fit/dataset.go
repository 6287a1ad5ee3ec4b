// Package fit turns a model, a measured dataset and a parameter set into
// objectives an optimiser can minimize, and drives complete estimation
// runs over them.
package fit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Dataset holds one measured time series: the applied current and the
// observed terminal voltage on a shared time base.
type Dataset struct {
	Time    []float64
	Current []float64
	Voltage []float64
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Time)
}

// Validate checks that the series are non-empty, equally long and strictly
// increasing in time.
func (d *Dataset) Validate() error {
	if len(d.Time) == 0 {
		return fmt.Errorf("dataset is empty")
	}
	if len(d.Current) != len(d.Time) || len(d.Voltage) != len(d.Time) {
		return fmt.Errorf("series lengths differ: time=%d current=%d voltage=%d",
			len(d.Time), len(d.Current), len(d.Voltage))
	}
	for k := 1; k < len(d.Time); k++ {
		if d.Time[k] <= d.Time[k-1] {
			return fmt.Errorf("time must be strictly increasing at sample %d", k)
		}
	}
	return nil
}

// LoadCSV reads a dataset from a CSV file with time, current and voltage
// columns.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses dataset rows from r. The header row names the columns;
// time, current and voltage may appear in any order.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{}
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		t, err := strconv.ParseFloat(record[cols["time"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time value %q", row, record[cols["time"]])
		}
		i, err := strconv.ParseFloat(record[cols["current"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad current value %q", row, record[cols["current"]])
		}
		v, err := strconv.ParseFloat(record[cols["voltage"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad voltage value %q", row, record[cols["voltage"]])
		}
		ds.Time = append(ds.Time, t)
		ds.Current = append(ds.Current, i)
		ds.Voltage = append(ds.Voltage, v)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// WriteCSV writes the dataset with a time,current,voltage header.
func (d *Dataset) WriteCSV(w io.Writer) error {
	if err := d.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "current", "voltage"}); err != nil {
		return err
	}
	for k := range d.Time {
		record := []string{
			strconv.FormatFloat(d.Time[k], 'g', -1, 64),
			strconv.FormatFloat(d.Current[k], 'g', -1, 64),
			strconv.FormatFloat(d.Voltage[k], 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range []string{"time", "current", "voltage"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q in header %v", want, header)
		}
	}
	return cols, nil
}
