// Package turbidity provides Linke turbidity values from the climatological monthly grid
// and from a simple seasonal heuristic.
package turbidity

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
)

// Months is the number of monthly layers in a grid.
const Months = 12

// Scale is the factor the grid stores turbidity values multiplied by.
const Scale = 20.0

var (
	ErrGridMissing = errors.New("linke turbidity grid not found")
	ErrGridSize    = errors.New("linke turbidity grid has unexpected size")
)

// GridSpec describes the layout of a turbidity grid. Values are stored as one byte per
// cell with the month varying fastest, then longitude, then latitude.
type GridSpec struct {
	Lats     int
	Lons     int
	LatStart float64 // latitude of row 0
	LatEnd   float64 // latitude of the last row
	LonStart float64
	LonEnd   float64
}

// DefaultSpec is the 5 arc-minute global grid: 2160 rows from 90°N to 90°S and 4320
// columns from 180°W to 180°E.
func DefaultSpec() GridSpec {
	return GridSpec{
		Lats:     2160,
		Lons:     4320,
		LatStart: 90,
		LatEnd:   -90,
		LonStart: -180,
		LonEnd:   180,
	}
}

// Size returns the grid's size in bytes.
func (s GridSpec) Size() int64 {
	return int64(s.Lats) * int64(s.Lons) * Months
}

// Index returns the nearest grid row and column for a coordinate, clamped to the grid.
func (s GridSpec) Index(lat, lon float64) (row, col int) {
	return axisIndex(lat, s.LatStart, s.LatEnd, s.Lats), axisIndex(lon, s.LonStart, s.LonEnd, s.Lons)
}

func axisIndex(v, start, end float64, n int) int {
	if n <= 1 {
		return 0
	}
	spacing := (end - start) / float64(n-1)
	i := int(math.Round((v - start) / spacing))
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// offset is the byte offset of January for a cell.
func (s GridSpec) offset(row, col int) int64 {
	return (int64(row)*int64(s.Lons) + int64(col)) * Months
}

// Source returns the 12 raw monthly values (turbidity × Scale) for the grid cell
// nearest to a coordinate.
type Source interface {
	Monthly(lat, lon float64) ([Months]uint8, error)
}

// FileGrid reads a grid file on demand. Every Monthly call opens, reads and closes the
// file, so a FileGrid holds no handle and is safe for concurrent use.
type FileGrid struct {
	path string
	spec GridSpec
}

// Open checks that path holds a grid laid out per spec.
func Open(path string, spec GridSpec) (*FileGrid, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrGridMissing, path)
		}
		return nil, fmt.Errorf("error checking turbidity grid %s: %w", path, err)
	}
	if fi.Size() != spec.Size() {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrGridSize, path, fi.Size(), spec.Size())
	}
	return &FileGrid{path: path, spec: spec}, nil
}

// Path returns the grid file path.
func (g *FileGrid) Path() string { return g.path }

// Spec returns the grid layout.
func (g *FileGrid) Spec() GridSpec { return g.spec }

func (g *FileGrid) Monthly(lat, lon float64) ([Months]uint8, error) {
	var out [Months]uint8

	f, err := os.Open(g.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, fmt.Errorf("%w: %s", ErrGridMissing, g.path)
		}
		return out, fmt.Errorf("error opening turbidity grid: %w", err)
	}
	defer f.Close()

	row, col := g.spec.Index(lat, lon)
	if _, err := f.ReadAt(out[:], g.spec.offset(row, col)); err != nil {
		return out, fmt.Errorf("error reading turbidity grid at row %d col %d: %w", row, col, err)
	}
	return out, nil
}

var (
	defaultOnce sync.Once
	defaultGrid *FileGrid
	defaultErr  error
)

// Default returns the process-wide grid, resolving path with DefaultSpec on the first
// call. Later calls return the first result whatever path they pass.
func Default(path string) (*FileGrid, error) {
	defaultOnce.Do(func() {
		defaultGrid, defaultErr = Open(path, DefaultSpec())
	})
	return defaultGrid, defaultErr
}

// MemoryGrid is an in-memory grid, used for tests and for building grid files.
type MemoryGrid struct {
	spec GridSpec
	data []byte
}

// NewMemoryGrid returns a zeroed grid laid out per spec.
func NewMemoryGrid(spec GridSpec) *MemoryGrid {
	return &MemoryGrid{spec: spec, data: make([]byte, spec.Size())}
}

// Set stores the raw monthly values of the cell nearest to (lat, lon).
func (g *MemoryGrid) Set(lat, lon float64, months [Months]uint8) {
	row, col := g.spec.Index(lat, lon)
	copy(g.data[g.spec.offset(row, col):], months[:])
}

// Fill stores the same raw monthly values in every cell.
func (g *MemoryGrid) Fill(months [Months]uint8) {
	for off := 0; off < len(g.data); off += Months {
		copy(g.data[off:], months[:])
	}
}

func (g *MemoryGrid) Monthly(lat, lon float64) ([Months]uint8, error) {
	var out [Months]uint8
	row, col := g.spec.Index(lat, lon)
	copy(out[:], g.data[g.spec.offset(row, col):])
	return out, nil
}

// WriteTo writes the grid in file layout.
func (g *MemoryGrid) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(g.data)
	return int64(n), err
}
