package checkpoint

import "testing"

func TestNewTensor_ShapeMismatch(t *testing.T) {
	if _, err := NewTensor([]int{2, 2}, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for mismatched shape/data length")
	}
}

func TestTensor_Reshape(t *testing.T) {
	tensor, err := NewTensor([]int{6}, []float32{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	reshaped, err := tensor.Reshape([]int{2, 3})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if len(reshaped.Shape) != 2 || reshaped.Shape[0] != 2 || reshaped.Shape[1] != 3 {
		t.Errorf("unexpected reshaped shape %v", reshaped.Shape)
	}

	if _, err := tensor.Reshape([]int{4}); err == nil {
		t.Error("expected error reshaping to a mismatched element count")
	}
}

func TestTensor_Narrow(t *testing.T) {
	tensor := Tensor{Shape: []int{5}, Data: []float32{10, 20, 30, 40, 50}}

	frag, err := tensor.Narrow(1, 3)
	if err != nil {
		t.Fatalf("Narrow: %v", err)
	}
	want := []float32{20, 30, 40}
	for i, v := range want {
		if frag.Data[i] != v {
			t.Errorf("Data[%d] = %v, want %v", i, frag.Data[i], v)
		}
	}

	if _, err := tensor.Narrow(3, 5); err == nil {
		t.Error("expected out-of-bounds narrow to fail")
	}
}

func TestConcatDim0(t *testing.T) {
	a := Tensor{Shape: []int{2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int{3}, Data: []float32{3, 4, 5}}

	out := ConcatDim0([]Tensor{a, b})
	if out.NumEl() != 5 {
		t.Fatalf("expected 5 elements, got %d", out.NumEl())
	}
	for i, v := range []float32{1, 2, 3, 4, 5} {
		if out.Data[i] != v {
			t.Errorf("Data[%d] = %v, want %v", i, out.Data[i], v)
		}
	}
}

func TestConcatAxis_Dim0(t *testing.T) {
	a := Tensor{Shape: []int{1, 2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int{1, 2}, Data: []float32{3, 4}}

	out, err := ConcatAxis([]Tensor{a, b}, 0)
	if err != nil {
		t.Fatalf("ConcatAxis: %v", err)
	}
	if out.Shape[0] != 2 || out.Shape[1] != 2 {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
}

func TestConcatAxis_Dim1RowParallel(t *testing.T) {
	// Two (2,2) tensors concatenated along dim 1 interleave row-major:
	// row 0 of a, row 0 of b, then row 1 of a, row 1 of b.
	a := Tensor{Shape: []int{2, 2}, Data: []float32{1, 2, 5, 6}}
	b := Tensor{Shape: []int{2, 2}, Data: []float32{3, 4, 7, 8}}

	out, err := ConcatAxis([]Tensor{a, b}, 1)
	if err != nil {
		t.Fatalf("ConcatAxis: %v", err)
	}
	if out.Shape[0] != 2 || out.Shape[1] != 4 {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
	want := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("Data[%d] = %v, want %v", i, out.Data[i], v)
		}
	}
}

func TestConcatAxis_MismatchedOuterDims(t *testing.T) {
	a := Tensor{Shape: []int{2, 2}, Data: []float32{1, 2, 3, 4}}
	b := Tensor{Shape: []int{3, 2}, Data: []float32{1, 2, 3, 4, 5, 6}}

	if _, err := ConcatAxis([]Tensor{a, b}, 1); err == nil {
		t.Error("expected error concatenating tensors with mismatched outer dims")
	}
}

func TestEqual(t *testing.T) {
	a := Tensor{Shape: []int{2}, Data: []float32{1, 2}}
	b := Tensor{Shape: []int{2}, Data: []float32{1, 2}}
	c := Tensor{Shape: []int{2}, Data: []float32{1, 3}}

	if !Equal(a, b) {
		t.Error("expected identical tensors to be equal")
	}
	if Equal(a, c) {
		t.Error("expected tensors with differing data to be unequal")
	}
}

func TestMean(t *testing.T) {
	a := Tensor{Shape: []int{2}, Data: []float32{2, 4}}
	b := Tensor{Shape: []int{2}, Data: []float32{4, 8}}

	avg, err := Mean([]Tensor{a, b})
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if avg.Data[0] != 3 || avg.Data[1] != 6 {
		t.Errorf("unexpected mean %v", avg.Data)
	}
}

func TestLastRow(t *testing.T) {
	tensor := Tensor{Shape: []int{3, 2}, Data: []float32{1, 2, 3, 4, 5, 6}}

	row, err := LastRow(tensor)
	if err != nil {
		t.Fatalf("LastRow: %v", err)
	}
	if row.Data[0] != 5 || row.Data[1] != 6 {
		t.Errorf("unexpected last row %v", row.Data)
	}
}

func TestZerosRow(t *testing.T) {
	row := ZerosRow(4)
	if row.NumEl() != 4 {
		t.Fatalf("expected 4 elements, got %d", row.NumEl())
	}
	for _, v := range row.Data {
		if v != 0 {
			t.Errorf("expected zero padding, got %v", v)
		}
	}
}
