package sparse

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPenaltyModeOrthonormalSoftThreshold(t *testing.T) {
	// With an orthonormal dictionary the gram is the identity and the lasso
	// solution is the soft-thresholded correlation, coordinate by coordinate.
	gram := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	cross := mat.NewDense(3, 2, []float64{
		2.0, -2.0,
		0.3, 0.3,
		-1.5, 1.5,
	})

	codes, err := LassoCoder{}.Code(gram, cross, nil, []float64{0.5}, CodeParams{Mode: PenaltyMode})
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}

	want := [][]float64{
		{1.5, 0, -1.0},
		{-1.5, 0, 1.0},
	}
	v := make([]float64, 3)
	for j, wcol := range want {
		codes.Col(v, j)
		for k := range v {
			if math.Abs(v[k]-wcol[k]) > 1e-6 {
				t.Errorf("column %d coefficient %d = %v, want %v", j, k, v[k], wcol[k])
			}
		}
	}
	if codes.NNZ(0) != 2 {
		t.Errorf("column 0 has %d nonzeros, want 2", codes.NNZ(0))
	}
}

func TestPenaltyModePositiveClampsNegatives(t *testing.T) {
	gram := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	cross := mat.NewDense(2, 1, []float64{2, -2})

	codes, err := LassoCoder{}.Code(gram, cross, nil, []float64{0.5}, CodeParams{Mode: PenaltyMode, Positive: true})
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	v := make([]float64, 2)
	codes.Col(v, 0)
	if math.Abs(v[0]-1.5) > 1e-6 || v[1] != 0 {
		t.Errorf("positive code = %v, want [1.5 0]", v)
	}
}

func TestResidualModeMeetsBudget(t *testing.T) {
	// Orthonormal dictionary, x = D * [3 1]: xsq = 10, correlations [3 1].
	gram := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	cross := mat.NewDense(2, 1, []float64{3, 1})
	xsq := []float64{10}

	target := 0.5
	codes, err := LassoCoder{}.Code(gram, cross, xsq, []float64{target}, CodeParams{Mode: ResidualMode, Positive: true})
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	v := make([]float64, 2)
	codes.Col(v, 0)
	res := xsq[0]
	for k := range v {
		res -= 2*v[k]*cross.At(k, 0) - v[k]*v[k]
	}
	if res > target+1e-9 {
		t.Errorf("residual %v exceeds budget %v (code %v)", res, target, v)
	}
	if v[0] <= 0 {
		t.Errorf("dominant atom not selected: code %v", v)
	}
}

func TestResidualModeGenerousBudgetGivesZero(t *testing.T) {
	gram := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	cross := mat.NewDense(2, 1, []float64{3, 1})

	codes, err := LassoCoder{}.Code(gram, cross, []float64{10}, []float64{20}, CodeParams{Mode: ResidualMode})
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if codes.NNZ(0) != 0 {
		t.Errorf("budget above ||x||^2 should give the zero code, got %d nonzeros", codes.NNZ(0))
	}
}

func TestCodeRejectsMismatchedShapes(t *testing.T) {
	gram := mat.NewDense(2, 3, nil)
	cross := mat.NewDense(2, 1, nil)
	if _, err := (LassoCoder{}).Code(gram, cross, nil, []float64{1}, CodeParams{Mode: PenaltyMode}); err == nil {
		t.Error("non-square gram was accepted")
	}

	gram = mat.NewDense(2, 2, nil)
	if _, err := (LassoCoder{}).Code(gram, cross, nil, []float64{1, 2, 3}, CodeParams{Mode: PenaltyMode}); err == nil {
		t.Error("mismatched lambda count was accepted")
	}
}
