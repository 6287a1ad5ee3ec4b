package opt

import (
	"errors"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// countingObjective records evaluations so tests can prove that input
// validation happens before the first cost call.
type countingObjective struct {
	calls int
}

func (c *countingObjective) Cost(x []float64) float64 {
	c.calls++
	return sphere(x)
}

func testAdapters() []Optimizer {
	return []Optimizer{
		NewDefaultMinimizer(),
		NewMayfly(50, 20, 7),
	}
}

func TestRunRejectsEmptyX0(t *testing.T) {
	bounds := &Bounds{Lower: []float64{0}, Upper: []float64{1}}
	for _, adapter := range testAdapters() {
		obj := &countingObjective{}
		_, err := adapter.Run(obj, nil, bounds)
		if err == nil {
			t.Fatalf("%s: expected error for empty x0", adapter.Name())
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected invalid input error, got %v", adapter.Name(), err)
		}
		if obj.calls != 0 {
			t.Errorf("%s: objective evaluated %d times before validation", adapter.Name(), obj.calls)
		}
	}
}

func TestRunRejectsBoundsLengthMismatch(t *testing.T) {
	bounds := &Bounds{Lower: []float64{0, 0}, Upper: []float64{1, 1, 1}}
	for _, adapter := range testAdapters() {
		obj := &countingObjective{}
		_, err := adapter.Run(obj, []float64{0.5}, bounds)
		if err == nil {
			t.Fatalf("%s: expected error for mismatched bounds", adapter.Name())
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected invalid input error, got %v", adapter.Name(), err)
		}
		if obj.calls != 0 {
			t.Errorf("%s: objective evaluated %d times before validation", adapter.Name(), obj.calls)
		}
	}
}

func TestRunRejectsInvertedBounds(t *testing.T) {
	bounds := &Bounds{Lower: []float64{2}, Upper: []float64{1}}
	for _, adapter := range testAdapters() {
		obj := &countingObjective{}
		_, err := adapter.Run(obj, []float64{1.5}, bounds)
		if err == nil {
			t.Fatalf("%s: expected error for inverted bounds", adapter.Name())
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected invalid input error, got %v", adapter.Name(), err)
		}
		if obj.calls != 0 {
			t.Errorf("%s: objective evaluated %d times before validation", adapter.Name(), obj.calls)
		}
	}
}

func TestNeedsSensitivities(t *testing.T) {
	for _, adapter := range testAdapters() {
		if adapter.NeedsSensitivities() {
			t.Errorf("%s: gradients are produced internally, NeedsSensitivities must be false", adapter.Name())
		}
	}
}

func TestInputErrorMatchesSentinel(t *testing.T) {
	var err error = &InputError{Field: "x0", Reason: "must not be empty"}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("InputError should match ErrInvalidInput")
	}
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Error("InputError should be extractable with errors.As")
	}
	if inputErr.Field != "x0" {
		t.Errorf("Expected field x0, got %q", inputErr.Field)
	}
}

func TestBackendErrorUnwraps(t *testing.T) {
	cause := errors.New("factorization failed")
	var err error = &BackendError{Backend: "lbfgsb", Err: cause}
	if !errors.Is(err, ErrBackend) {
		t.Error("BackendError should match ErrBackend")
	}
	if !errors.Is(err, cause) {
		t.Error("BackendError should unwrap to the original backend error")
	}
}
