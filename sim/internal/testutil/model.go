// Package testutil provides shared test infrastructure for the simulator
// packages: the reference disease model and float assertions.
package testutil

import (
	"math"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ull-isaatc/sighos-sub008/sim/disease"
)

// ModelPath returns the path of the reference test model.
// The path is resolved relative to this source file: sim/internal/testutil/ → sim/disease/testdata/.
func ModelPath(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "disease", "testdata", "model.yaml")
}

// LoadModel loads the reference test model: two chronic complications
// (NEU, RET), one acute complication (SHE) and the CONV and INTENSIVE
// interventions.
func LoadModel(t *testing.T) *disease.Model {
	t.Helper()
	m, err := disease.LoadModel(ModelPath(t))
	if err != nil {
		t.Fatalf("Failed to load test model: %v", err)
	}
	return m
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
