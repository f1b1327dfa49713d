package registration

import (
	"errors"
	"testing"
)

// TestClampExcessBins verifies that a bin count beyond the int16 range is
// rejected with an InvalidArgument error
func TestClampExcessBins(t *testing.T) {
	_, _, err := Clamp([]float64{1, 2, 3}, maxBins+1, nil)
	if err == nil {
		t.Fatal("Expected an error for an excess bin count")
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

// TestClampConstantVolume verifies the zero-dynamic-range fallback: a
// constant image collapses to a single bin
func TestClampConstantVolume(t *testing.T) {
	data := make([]float64, 64)
	for i := range data {
		data[i] = 7.0
	}

	clamped, bins, err := Clamp(data, 256, nil)
	if err != nil {
		t.Fatalf("Clamp failed: %v", err)
	}
	if bins != 1 {
		t.Errorf("Expected 1 adjusted bin for a constant image, got %d", bins)
	}
	for i, v := range clamped {
		if v != 0 {
			t.Fatalf("Expected every clamped value to be 0, got %d at %d", v, i)
		}
	}
}

// TestClampLosslessShift verifies that integer data whose range fits within
// the requested bins is shifted without loss and the bin count shrinks
func TestClampLosslessShift(t *testing.T) {
	data := []float64{10, 12, 15, 20, 11, 10, 20}

	clamped, bins, err := Clamp(data, 256, nil)
	if err != nil {
		t.Fatalf("Clamp failed: %v", err)
	}
	if bins != 11 {
		t.Errorf("Expected 11 adjusted bins for range [10,20], got %d", bins)
	}
	for i, v := range clamped {
		// Round trip: shifted value plus the minimum recovers the input
		if float64(v)+10 != data[i] {
			t.Errorf("Value %d: expected lossless shift of %v, got bin %d", i, data[i], v)
		}
	}
}

// TestClampCompression verifies linear compression of non-integral data
// onto [0, bins-1]
func TestClampCompression(t *testing.T) {
	data := []float64{0.0, 0.25, 0.5, 0.75, 1.0}

	clamped, bins, err := Clamp(data, 256, nil)
	if err != nil {
		t.Fatalf("Clamp failed: %v", err)
	}
	if bins != 256 {
		t.Errorf("Expected the full 256 bins, got %d", bins)
	}
	expected := []int16{0, 64, 128, 191, 255}
	for i, v := range clamped {
		if v != expected[i] {
			t.Errorf("Value %d: expected bin %d, got %d", i, expected[i], v)
		}
	}
}

// TestClampRange verifies that for assorted inputs every clamped value lies
// in [-1, adjustedBins-1] and adjustedBins never exceeds the request
func TestClampRange(t *testing.T) {
	inputs := [][]float64{
		{1.5, -3.25, 100, 42.01, 0},
		{-5, -4, -3, -2, -1},
		{1e6, 2e6, 3e6},
		{0.001, 0.002, 0.003},
	}
	for _, data := range inputs {
		clamped, bins, err := Clamp(data, 64, nil)
		if err != nil {
			t.Fatalf("Clamp failed: %v", err)
		}
		if bins > 64 {
			t.Errorf("Adjusted bins %d exceeds requested 64", bins)
		}
		for i, v := range clamped {
			if v < -1 || int(v) > bins-1 {
				t.Errorf("Clamped value %d at %d outside [-1, %d]", v, i, bins-1)
			}
		}
	}
}

// TestClampMask verifies that masked-out voxels become the sentinel and do
// not influence the min/max computation
func TestClampMask(t *testing.T) {
	data := []float64{1000, 10, 11, 12, 2000}
	mask := []bool{false, true, true, true, false}

	clamped, bins, err := Clamp(data, 256, mask)
	if err != nil {
		t.Fatalf("Clamp failed: %v", err)
	}
	// The outliers are excluded, so the selected range is [10,12]
	if bins != 3 {
		t.Errorf("Expected 3 adjusted bins, got %d", bins)
	}
	if clamped[0] != -1 || clamped[4] != -1 {
		t.Errorf("Masked voxels should be -1, got %d and %d", clamped[0], clamped[4])
	}
	for i := 1; i <= 3; i++ {
		if clamped[i] != int16(data[i]-10) {
			t.Errorf("Voxel %d: expected bin %v, got %d", i, data[i]-10, clamped[i])
		}
	}
}

// TestClampFullyMasked verifies that a fully-masked volume yields all
// sentinels without error
func TestClampFullyMasked(t *testing.T) {
	data := []float64{1, 2, 3}
	mask := []bool{false, false, false}

	clamped, bins, err := Clamp(data, 256, mask)
	if err != nil {
		t.Fatalf("Clamp failed: %v", err)
	}
	if bins != 1 {
		t.Errorf("Expected 1 bin for a fully-masked volume, got %d", bins)
	}
	for _, v := range clamped {
		if v != -1 {
			t.Fatalf("Expected all sentinels, got %d", v)
		}
	}
}

// TestPadClamped verifies the one-voxel sentinel border around the
// reference volume
func TestPadClamped(t *testing.T) {
	data := []int16{0, 1, 2, 3, 4, 5, 6, 7}
	padded := padClamped(data, 2, 2, 2)

	if padded.width != 4 || padded.height != 4 || padded.depth != 4 {
		t.Fatalf("Expected 4x4x4 padded volume, got %dx%dx%d",
			padded.width, padded.height, padded.depth)
	}
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				v := padded.data[z*16+y*4+x]
				border := x == 0 || y == 0 || z == 0 || x == 3 || y == 3 || z == 3
				if border && v != -1 {
					t.Errorf("Border voxel (%d,%d,%d) should be -1, got %d", x, y, z, v)
				}
				if !border {
					want := data[(z-1)*4+(y-1)*2+(x-1)]
					if v != want {
						t.Errorf("Interior voxel (%d,%d,%d): expected %d, got %d", x, y, z, want, v)
					}
				}
			}
		}
	}
}
