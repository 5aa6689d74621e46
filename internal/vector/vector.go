package vector

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/c2h5oh/datasize"
)

const minCapacity = 16

var (
	ErrCapacity      = errors.New("vector capacity exceeded")
	ErrDuplicateName = errors.New("duplicate column name")
)

// Numeric is the set of fixed-width element types a column can hold.
type Numeric interface {
	~int8 | ~uint8 | ~int32 | ~uint32 | ~int64 | ~float32 | ~float64
}

// Metadata names and sizes one column of a Vector.
type Metadata struct {
	Name     string
	ElemSize int
}

// DeviceBuffer is the device-side counterpart of a Vector, created by a
// device when the vector is uploaded.
type DeviceBuffer interface {
	DeviceName() string
}

type column interface {
	metadata() Metadata
	reserve(capacity int)
	setLength(n int)
	byteSize() int64
}

// Column is one typed field array of a Vector. Data always has the length
// of the owning vector.
type Column[T Numeric] struct {
	md   Metadata
	Data []T
}

func (c *Column[T]) metadata() Metadata {
	return c.md
}

func (c *Column[T]) reserve(capacity int) {
	if capacity <= cap(c.Data) {
		return
	}
	grown := make([]T, len(c.Data), capacity)
	copy(grown, c.Data)
	c.Data = grown
}

func (c *Column[T]) setLength(n int) {
	old := len(c.Data)
	c.Data = c.Data[:n]
	if n > old {
		clear(c.Data[old:n])
	}
}

func (c *Column[T]) byteSize() int64 {
	return int64(cap(c.Data)) * int64(c.md.ElemSize)
}

// Fill sets every row in [from, to) to value.
func (c *Column[T]) Fill(from, to int, value T) {
	for i := from; i < to; i++ {
		c.Data[i] = value
	}
}

// Vector is an append-only flat buffer of fixed-width records stored as
// parallel columns sharing one length.
type Vector struct {
	name     string
	columns  []column
	byName   map[string]column
	length   int
	capacity int
	limit    int
	device   DeviceBuffer
}

// New creates an empty vector. A positive limit caps the number of rows.
func New(name string, limit int) *Vector {
	return &Vector{
		name:   name,
		byName: make(map[string]column),
		limit:  limit,
	}
}

// AddColumn registers a named typed column sized to the vector's current
// length and capacity.
func AddColumn[T Numeric](v *Vector, name string) (*Column[T], error) {
	var zero T
	c := &Column[T]{md: Metadata{Name: name, ElemSize: int(unsafe.Sizeof(zero))}}
	if err := v.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

func mustColumn[T Numeric](v *Vector, name string) *Column[T] {
	c, err := AddColumn[T](v, name)
	if err != nil {
		panic(err)
	}
	return c
}

func (v *Vector) Add(c column) error {
	md := c.metadata()
	if _, exists := v.byName[md.Name]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateName, v.name, md.Name)
	}
	c.reserve(v.capacity)
	c.setLength(v.length)
	v.columns = append(v.columns, c)
	v.byName[md.Name] = c
	return nil
}

func (v *Vector) Name() string {
	return v.name
}

func (v *Vector) Len() int {
	return v.length
}

func (v *Vector) Cap() int {
	return v.capacity
}

func (v *Vector) Limit() int {
	return v.limit
}

func (v *Vector) Metadata() []Metadata {
	out := make([]Metadata, 0, len(v.columns))
	for _, c := range v.columns {
		out = append(out, c.metadata())
	}
	return out
}

// Resize grows the capacity of every column to at least capacity, keeping
// existing rows. Capacity never shrinks.
func (v *Vector) Resize(capacity int) error {
	if capacity <= v.capacity {
		return nil
	}
	if v.limit > 0 && capacity > v.limit {
		return fmt.Errorf("%w: %s needs %d rows, limit %d", ErrCapacity, v.name, capacity, v.limit)
	}
	for _, c := range v.columns {
		c.reserve(capacity)
	}
	v.capacity = capacity
	return nil
}

// Extend appends n zeroed rows and returns the index of the first one.
func (v *Vector) Extend(n int) (int, error) {
	start := v.length
	if n <= 0 {
		return start, nil
	}
	if err := v.grow(start + n); err != nil {
		return 0, err
	}
	v.setLength(start + n)
	return start, nil
}

func (v *Vector) grow(needed int) error {
	if needed <= v.capacity {
		return nil
	}
	next := max(needed, v.capacity*2, minCapacity)
	if v.limit > 0 && next > v.limit {
		next = v.limit
	}
	return v.Resize(max(next, needed))
}

func (v *Vector) setLength(n int) {
	for _, c := range v.columns {
		c.setLength(n)
	}
	v.length = n
}

// ByteSize is the allocated footprint of all columns.
func (v *Vector) ByteSize() int64 {
	var total int64
	for _, c := range v.columns {
		total += c.byteSize()
	}
	return total
}

func (v *Vector) SetDeviceBuffer(buf DeviceBuffer) {
	v.device = buf
}

func (v *Vector) DeviceBuffer() DeviceBuffer {
	return v.device
}

// SyncLength extends every vector to the longest length among them.
func SyncLength(vectors ...*Vector) error {
	longest := 0
	for _, v := range vectors {
		longest = max(longest, v.length)
	}
	for _, v := range vectors {
		if _, err := v.Extend(longest - v.length); err != nil {
			return err
		}
	}
	return nil
}

// SizeReport renders one line per vector with its rows and footprint.
func SizeReport(vectors ...*Vector) string {
	var b strings.Builder
	var total int64
	for _, v := range vectors {
		size := v.ByteSize()
		total += size
		fmt.Fprintf(&b, "%-12s rows=%-8d cap=%-8d %s\n", v.name, v.length, v.capacity, datasize.ByteSize(size).HumanReadable())
	}
	fmt.Fprintf(&b, "%-12s %s\n", "total", datasize.ByteSize(total).HumanReadable())
	return b.String()
}
