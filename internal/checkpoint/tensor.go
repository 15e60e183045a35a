// Package checkpoint implements the universal checkpoint transcoder: it
// inverts a PP/TP/DP-sharded training checkpoint into one contiguous tensor
// per parameter, suitable for reloading under any other topology.
package checkpoint

import (
	"fmt"

	"github.com/ucp-transcoder/pkg/errors"
)

// Tensor is an n-d float32 array stored row-major, matching the narrow /
// concat / reshape primitives the module's tensor file format exposes.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor builds a Tensor, validating that Data's length matches Shape's
// element count.
func NewTensor(shape []int, data []float32) (Tensor, error) {
	n := numel(shape)
	if n != len(data) {
		return Tensor{}, errors.Wrap(errors.CodeShapeMismatch, "tensor shape/data mismatch",
			fmt.Errorf("shape %v wants %d elements, got %d", shape, n, len(data)))
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// numel returns the element count of a shape, 1 for an empty (scalar) shape.
func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// NumEl returns the tensor's element count.
func (t Tensor) NumEl() int { return len(t.Data) }

// Reshape returns a copy of t with a new shape over the same underlying
// elements. The element count must be unchanged.
func (t Tensor) Reshape(shape []int) (Tensor, error) {
	if numel(shape) != t.NumEl() {
		return Tensor{}, errors.Wrap(errors.CodeShapeMismatch, "reshape element count mismatch",
			fmt.Errorf("tensor has %d elements, target shape %v wants %d", t.NumEl(), shape, numel(shape)))
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: t.Data}, nil
}

// Narrow returns a contiguous 1-D copy of t.Data[offset:offset+numel]. t must
// itself be 1-D (the flat per-group optimizer tensors the extractor reads
// fragments from).
func (t Tensor) Narrow(offset, n int) (Tensor, error) {
	if offset < 0 || n < 0 || offset+n > len(t.Data) {
		return Tensor{}, errors.Wrap(errors.CodeIOFailure, "fragment out of bounds",
			fmt.Errorf("offset=%d numel=%d len=%d", offset, n, len(t.Data)))
	}
	out := make([]float32, n)
	copy(out, t.Data[offset:offset+n])
	return Tensor{Shape: []int{n}, Data: out}, nil
}

// ConcatDim0 concatenates 1-D tensors end to end. Used by the TP merger to
// rebuild a TP-local slice from its lexicographically DP-ordered fragments.
func ConcatDim0(tensors []Tensor) Tensor {
	total := 0
	for _, t := range tensors {
		total += t.NumEl()
	}
	data := make([]float32, 0, total)
	for _, t := range tensors {
		data = append(data, t.Data...)
	}
	return Tensor{Shape: []int{total}, Data: data}
}

// ConcatAxis concatenates same-rank, same-shape-except-dim tensors along
// dimension dim. Used for the TP merger's column/row-parallel combination
// rule.
func ConcatAxis(tensors []Tensor, dim int) (Tensor, error) {
	if len(tensors) == 0 {
		return Tensor{}, errors.New(errors.CodeShapeMismatch, "cannot concat zero tensors")
	}
	rank := len(tensors[0].Shape)
	if dim < 0 || dim >= rank {
		return Tensor{}, errors.Wrap(errors.CodeShapeMismatch, "concat dim out of range",
			fmt.Errorf("dim=%d rank=%d", dim, rank))
	}
	outShape := append([]int(nil), tensors[0].Shape...)
	outShape[dim] = 0
	for _, t := range tensors {
		if len(t.Shape) != rank {
			return Tensor{}, errors.New(errors.CodeShapeMismatch, "concat operands have mismatched rank")
		}
		for i, d := range t.Shape {
			if i != dim && d != tensors[0].Shape[i] {
				return Tensor{}, errors.Wrap(errors.CodeShapeMismatch, "concat operands disagree outside the concat dim",
					fmt.Errorf("dim %d: %d vs %d", i, d, tensors[0].Shape[i]))
			}
		}
		outShape[dim] += t.Shape[dim]
	}

	if dim == 0 {
		flat := ConcatDim0(tensors)
		return Tensor{Shape: outShape, Data: flat.Data}, nil
	}

	// Generic row-major concat along an inner dimension: split each operand
	// into outer blocks (everything before dim) and stitch the dim-sized
	// pieces of each block back together in operand order.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= outShape[i]
	}
	inner := 1
	for i := dim + 1; i < rank; i++ {
		inner *= outShape[i]
	}

	out := make([]float32, numel(outShape))
	outRowLen := outShape[dim] * inner
	for o := 0; o < outer; o++ {
		rowStart := o * outRowLen
		col := 0
		for _, t := range tensors {
			rowLen := t.Shape[dim] * inner
			copy(out[rowStart+col:rowStart+col+rowLen], t.Data[o*rowLen:o*rowLen+rowLen])
			col += rowLen
		}
	}
	return Tensor{Shape: outShape, Data: out}, nil
}

// Equal reports whether a and b are bitwise identical (same shape and
// elements), per the tp_replicated invariant.
func Equal(a, b Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

// Mean returns the elementwise average of same-shape tensors.
func Mean(tensors []Tensor) (Tensor, error) {
	if len(tensors) == 0 {
		return Tensor{}, errors.New(errors.CodeShapeMismatch, "cannot average zero tensors")
	}
	n := tensors[0].NumEl()
	for _, t := range tensors {
		if t.NumEl() != n {
			return Tensor{}, errors.New(errors.CodeShapeMismatch, "average operands have mismatched size")
		}
	}
	sum := make([]float32, n)
	for _, t := range tensors {
		for i, v := range t.Data {
			sum[i] += v
		}
	}
	denom := float32(len(tensors))
	for i := range sum {
		sum[i] /= denom
	}
	return Tensor{Shape: append([]int(nil), tensors[0].Shape...), Data: sum}, nil
}

// LastRow returns the tensor's final row along dimension 0, i.e. the slice
// with shape t.Shape[1:]. Used for vocabulary-padding annotation.
func LastRow(t Tensor) (Tensor, error) {
	if len(t.Shape) == 0 || t.Shape[0] == 0 {
		return Tensor{}, errors.New(errors.CodeShapeMismatch, "cannot take last row of an empty tensor")
	}
	rowShape := append([]int(nil), t.Shape[1:]...)
	rowLen := numel(rowShape)
	start := (t.Shape[0] - 1) * rowLen
	data := make([]float32, rowLen)
	copy(data, t.Data[start:start+rowLen])
	return Tensor{Shape: rowShape, Data: data}, nil
}

// ZerosRow returns a 1-D zero tensor of the given length, the padding
// placeholder for vocabulary parameters that were not actually padded.
func ZerosRow(n int) Tensor {
	return Tensor{Shape: []int{n}, Data: make([]float32, n)}
}
