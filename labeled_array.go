package dtanet

import (
	"fmt"
)

// LabeledArray is a dense 3D array whose axes are addressed by external keys. Each axis maps key to index
type LabeledArray struct {
	axes   [3][]int
	index  [3]map[int]int
	shape  [3]int
	values []float64
}

// NewLabeledArray creates zeroed array with given axis keys. Keys of each axis must be unique
func NewLabeledArray(axis0, axis1, axis2 []int) (*LabeledArray, error) {
	arr := &LabeledArray{}
	for i, keys := range [3][]int{axis0, axis1, axis2} {
		arr.axes[i] = append([]int{}, keys...)
		arr.index[i] = make(map[int]int, len(keys))
		for idx, key := range keys {
			if _, ok := arr.index[i][key]; ok {
				return nil, dtaErrorf("duplicate key %d on axis %d", key, i)
			}
			arr.index[i][key] = idx
		}
		arr.shape[i] = len(keys)
	}
	arr.values = make([]float64, arr.shape[0]*arr.shape[1]*arr.shape[2])
	return arr, nil
}

// Shape returns sizes of the axes
func (arr *LabeledArray) Shape() [3]int {
	return arr.shape
}

// Keys returns keys of axis
func (arr *LabeledArray) Keys(axis int) []int {
	return append([]int{}, arr.axes[axis]...)
}

func (arr *LabeledArray) HasKey(axis, key int) bool {
	_, ok := arr.index[axis][key]
	return ok
}

func (arr *LabeledArray) offset(i, j, k int) int {
	return (i*arr.shape[1]+j)*arr.shape[2] + k
}

func (arr *LabeledArray) indices(k0, k1, k2 int) (int, int, int, error) {
	i, ok := arr.index[0][k0]
	if !ok {
		return 0, 0, 0, dtaErrorf("key %d is not on axis 0", k0)
	}
	j, ok := arr.index[1][k1]
	if !ok {
		return 0, 0, 0, dtaErrorf("key %d is not on axis 1", k1)
	}
	k, ok := arr.index[2][k2]
	if !ok {
		return 0, 0, 0, dtaErrorf("key %d is not on axis 2", k2)
	}
	return i, j, k, nil
}

// Get returns element addressed by keys
func (arr *LabeledArray) Get(k0, k1, k2 int) (float64, error) {
	i, j, k, err := arr.indices(k0, k1, k2)
	if err != nil {
		return 0, err
	}
	return arr.values[arr.offset(i, j, k)], nil
}

// Set assigns element addressed by keys
func (arr *LabeledArray) Set(k0, k1, k2 int, value float64) error {
	i, j, k, err := arr.indices(k0, k1, k2)
	if err != nil {
		return err
	}
	arr.values[arr.offset(i, j, k)] = value
	return nil
}

// Add adds value to element addressed by keys
func (arr *LabeledArray) Add(k0, k1, k2 int, value float64) error {
	i, j, k, err := arr.indices(k0, k1, k2)
	if err != nil {
		return err
	}
	arr.values[arr.offset(i, j, k)] += value
	return nil
}

// Sum returns sum of all elements
func (arr *LabeledArray) Sum() float64 {
	total := 0.0
	for _, v := range arr.values {
		total += v
	}
	return total
}

// Slice returns live 2D view for key on axis 0. Changes made through the view are visible in the array
func (arr *LabeledArray) Slice(k0 int) (*LabeledSlice, error) {
	i, ok := arr.index[0][k0]
	if !ok {
		return nil, dtaErrorf("key %d is not on axis 0", k0)
	}
	return &LabeledSlice{arr: arr, i: i, key: k0}, nil
}

// Select returns copy of array restricted to keys on axis, in the order of keys. Other axes are kept whole
func (arr *LabeledArray) Select(axis int, keys ...int) (*LabeledArray, error) {
	if axis < 0 || axis > 2 {
		return nil, dtaErrorf("axis %d is out of range", axis)
	}
	picked := make([]int, len(keys))
	for n, key := range keys {
		idx, ok := arr.index[axis][key]
		if !ok {
			return nil, dtaErrorf("key %d is not on axis %d", key, axis)
		}
		picked[n] = idx
	}
	axes := arr.axes
	axes[axis] = keys
	sub, err := NewLabeledArray(axes[0], axes[1], axes[2])
	if err != nil {
		return nil, err
	}
	for i := 0; i < sub.shape[0]; i++ {
		for j := 0; j < sub.shape[1]; j++ {
			for k := 0; k < sub.shape[2]; k++ {
				src := [3]int{i, j, k}
				src[axis] = picked[src[axis]]
				sub.values[sub.offset(i, j, k)] = arr.values[arr.offset(src[0], src[1], src[2])]
			}
		}
	}
	return sub, nil
}

// Copy returns deep copy of array
func (arr *LabeledArray) Copy() *LabeledArray {
	cp, _ := NewLabeledArray(arr.axes[0], arr.axes[1], arr.axes[2])
	copy(cp.values, arr.values)
	return cp
}

func (arr *LabeledArray) String() string {
	return fmt.Sprintf("labeled array %dx%dx%d, sum %f", arr.shape[0], arr.shape[1], arr.shape[2], arr.Sum())
}

// LabeledSlice is a live view of one axis-0 layer of LabeledArray
type LabeledSlice struct {
	arr *LabeledArray
	i   int
	key int
}

func (sl *LabeledSlice) Key() int {
	return sl.key
}

func (sl *LabeledSlice) cell(k1, k2 int) (int, error) {
	j, ok := sl.arr.index[1][k1]
	if !ok {
		return 0, dtaErrorf("key %d is not on axis 1", k1)
	}
	k, ok := sl.arr.index[2][k2]
	if !ok {
		return 0, dtaErrorf("key %d is not on axis 2", k2)
	}
	return sl.arr.offset(sl.i, j, k), nil
}

func (sl *LabeledSlice) Get(k1, k2 int) (float64, error) {
	off, err := sl.cell(k1, k2)
	if err != nil {
		return 0, err
	}
	return sl.arr.values[off], nil
}

func (sl *LabeledSlice) Set(k1, k2 int, value float64) error {
	off, err := sl.cell(k1, k2)
	if err != nil {
		return err
	}
	sl.arr.values[off] = value
	return nil
}

// Sum returns sum of the layer
func (sl *LabeledSlice) Sum() float64 {
	n := sl.arr.shape[1] * sl.arr.shape[2]
	start := sl.i * n
	total := 0.0
	for _, v := range sl.arr.values[start : start+n] {
		total += v
	}
	return total
}

// Row returns values of the layer for key on axis 1 ordered as axis 2
func (sl *LabeledSlice) Row(k1 int) ([]float64, error) {
	j, ok := sl.arr.index[1][k1]
	if !ok {
		return nil, dtaErrorf("key %d is not on axis 1", k1)
	}
	start := sl.arr.offset(sl.i, j, 0)
	return append([]float64{}, sl.arr.values[start:start+sl.arr.shape[2]]...), nil
}
