package ncstore

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

const timeUnits = "seconds since 1970-01-01 00:00:00"

// variable is one float64 netCDF variable to be written.
type variable struct {
	name  string
	dims  []string
	data  []float64
	units string
}

// dataset collects dimensions, global attributes and variables before they
// are written in a single pass.
type dataset struct {
	dims    []string
	lengths []int
	attrs   [][2]string
	vars    []variable
}

func (d *dataset) dim(name string, n int) {
	d.dims = append(d.dims, name)
	d.lengths = append(d.lengths, n)
}

// attr adds a global attribute. Empty values are skipped.
func (d *dataset) attr(name, value string) {
	if value == "" {
		return
	}
	d.attrs = append(d.attrs, [2]string{name, value})
}

func (d *dataset) add(name string, dims []string, data []float64, units string) {
	d.vars = append(d.vars, variable{name: name, dims: dims, data: data, units: units})
}

func (d *dataset) addTimes(name, dim string, times []time.Time) {
	d.add(name, []string{dim}, encodeTimes(times), timeUnits)
}

func (d *dataset) addArray(name string, dims []string, arr *sparse.DenseArray, units string) {
	d.add(name, dims, arr.Elements, units)
}

func (d *dataset) lengthOf(dim string) int {
	for i, n := range d.dims {
		if n == dim {
			return d.lengths[i]
		}
	}
	return -1
}

// write creates path and writes the dataset to it as netCDF classic.
func (d *dataset) write(path string) error {
	for i, n := range d.lengths {
		// A zero length would turn the dimension into the record dimension.
		if n <= 0 {
			return fmt.Errorf("dimension %s is empty", d.dims[i])
		}
	}
	for _, v := range d.vars {
		n := 1
		for _, dim := range v.dims {
			l := d.lengthOf(dim)
			if l < 0 {
				return fmt.Errorf("variable %s: unknown dimension %s", v.name, dim)
			}
			n *= l
		}
		if len(v.data) != n {
			return fmt.Errorf("variable %s: dims are %d but array length is %d", v.name, n, len(v.data))
		}
	}

	h := cdf.NewHeader(d.dims, d.lengths)
	for _, a := range d.attrs {
		h.AddAttribute("", a[0], a[1])
	}
	for _, v := range d.vars {
		h.AddVariable(v.name, v.dims, []float64{0})
		if v.units != "" {
			h.AddAttribute(v.name, "units", v.units)
		}
	}
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, v := range d.vars {
		end := f.Header.Lengths(v.name)
		start := make([]int, len(end))
		if _, err := f.Writer(v.name, start, end).Write(v.data); err != nil {
			return fmt.Errorf("write variable %s: %w", v.name, err)
		}
	}
	return w.Close()
}

// reader wraps an open netCDF file.
type reader struct {
	path string
	file *os.File
	nc   *cdf.File
}

func open(path string) (*reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	nc, err := cdf.Open(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &reader{path: path, file: file, nc: nc}, nil
}

func (r *reader) Close() error { return r.file.Close() }

// attr returns a global string attribute, or "" when it is absent.
func (r *reader) attr(name string) string {
	if s, ok := r.nc.Header.GetAttribute("", name).(string); ok {
		return s
	}
	return ""
}

func (r *reader) has(name string) bool {
	return len(r.nc.Header.Lengths(name)) > 0
}

func (r *reader) varUnits(name string) string {
	if s, ok := r.nc.Header.GetAttribute(name, "units").(string); ok {
		return s
	}
	return ""
}

// floats reads a whole variable and returns its values and shape.
func (r *reader) floats(name string) ([]float64, []int, error) {
	shape := r.nc.Header.Lengths(name)
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("%s: variable %s not in file", r.path, name)
	}
	rd := r.nc.Reader(name, nil, nil)
	buf := rd.Zero(-1)
	if _, err := rd.Read(buf); err != nil {
		return nil, nil, fmt.Errorf("%s: read variable %s: %w", r.path, name, err)
	}
	switch vals := buf.(type) {
	case []float64:
		return vals, shape, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, shape, nil
	default:
		return nil, nil, fmt.Errorf("%s: variable %s has unsupported type %T", r.path, name, buf)
	}
}

func (r *reader) array(name string) (*sparse.DenseArray, error) {
	vals, shape, err := r.floats(name)
	if err != nil {
		return nil, err
	}
	arr := sparse.ZerosDense(shape...)
	copy(arr.Elements, vals)
	return arr, nil
}

func (r *reader) times(name string) ([]time.Time, error) {
	vals, _, err := r.floats(name)
	if err != nil {
		return nil, err
	}
	return decodeTimes(vals), nil
}

func encodeTimes(times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = float64(t.Unix())
	}
	return out
}

func decodeTimes(vals []float64) []time.Time {
	out := make([]time.Time, len(vals))
	for i, v := range vals {
		out[i] = time.Unix(int64(math.Round(v)), 0).UTC()
	}
	return out
}
