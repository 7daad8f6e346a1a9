package sparse

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// trainingSet builds noisy non-negative combinations of a few ground-truth
// patterns.
func trainingSet(rows, samples int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	patterns := mat.NewDense(rows, 3, nil)
	for j := 0; j < 3; j++ {
		for i := 0; i < rows; i++ {
			patterns.Set(i, j, rng.Float64())
		}
	}
	x := mat.NewDense(rows, samples, nil)
	for c := 0; c < samples; c++ {
		p := rng.Intn(3)
		scale := 0.5 + rng.Float64()
		for i := 0; i < rows; i++ {
			x.Set(i, c, scale*patterns.At(i, p)+0.01*rng.Float64())
		}
	}
	return x
}

func TestDictLearnerAtomsAreUnitNorm(t *testing.T) {
	x := trainingSet(8, 40, 1)
	dict, err := DictLearner{}.Train(x, DictParams{
		Atoms:        6,
		Lambda:       0.1,
		Iterations:   10,
		BatchSize:    20,
		PositiveDict: true,
		PositiveCode: true,
		Seed:         7,
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	rows, atoms := dict.Dims()
	if rows != 8 || atoms != 6 {
		t.Fatalf("dictionary is %dx%d, want 8x6", rows, atoms)
	}
	col := make([]float64, rows)
	for j := 0; j < atoms; j++ {
		mat.Col(col, j, dict)
		norm := 0.0
		for _, v := range col {
			if v < 0 {
				t.Errorf("atom %d has a negative entry %v", j, v)
			}
			norm += v * v
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
			t.Errorf("atom %d norm = %v, want 1", j, math.Sqrt(norm))
		}
	}
}

func TestDictLearnerIsDeterministicPerSeed(t *testing.T) {
	x := trainingSet(6, 30, 2)
	p := DictParams{Atoms: 4, Lambda: 0.1, Iterations: 5, BatchSize: 10, Seed: 3}

	d1, err := DictLearner{}.Train(x, p)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	d2, err := DictLearner{}.Train(x, p)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if !mat.EqualApprox(d1, d2, 0) {
		t.Error("same seed produced different dictionaries")
	}
}

func TestDictLearnerRejectsBadParams(t *testing.T) {
	if _, err := (DictLearner{}).Train(mat.NewDense(4, 1, nil), DictParams{Atoms: 0}); err == nil {
		t.Error("zero atoms accepted")
	}
}
