package denoise

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"nlsam/pkg/sparse"
	"nlsam/pkg/volume"
)

// recordingLearner captures the training matrix and returns atoms with a
// deliberately wrong scale, so the trainer's re-normalization is visible.
type recordingLearner struct {
	gotCols int
	gotRows int
	params  sparse.DictParams
}

func (r *recordingLearner) Train(x *mat.Dense, p sparse.DictParams) (*mat.Dense, error) {
	r.gotRows, r.gotCols = x.Dims()
	r.params = p

	// Columns must arrive unit-norm.
	col := make([]float64, r.gotRows)
	for j := 0; j < r.gotCols; j++ {
		mat.Col(col, j, x)
		norm := 0.0
		for _, v := range col {
			norm += v * v
		}
		if math.Abs(norm-1) > 1e-9 {
			return nil, errors.New("training column not normalized")
		}
	}

	dict := mat.NewDense(r.gotRows, p.Atoms, nil)
	for j := 0; j < p.Atoms; j++ {
		dict.Set(j%r.gotRows, j, 2.5) // unit direction, wrong length
	}
	return dict, nil
}

func trainerFixture() (*volume.Volume, *volume.Mask) {
	data := volume.NewVolume(4, 4, 2, 2)
	for i := range data.Data {
		data.Data[i] = float64(1 + i%7)
	}
	return data, volume.FullMask(4, 4, 2)
}

func TestTrainerNormalizesAndSizesDictionary(t *testing.T) {
	data, mask := trainerFixture()
	learner := &recordingLearner{}

	dict, err := DictionaryTrainer{Learner: learner, Seed: 1}.Train(data, mask, [3]int{2, 2, 2})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	rows := 2 * 2 * 2 * 2 // spatial block times direction count
	if learner.gotRows != rows {
		t.Errorf("training rows = %d, want %d", learner.gotRows, rows)
	}
	if learner.gotCols != 4 {
		t.Errorf("training columns = %d, want 4 non-overlapping blocks", learner.gotCols)
	}
	if learner.params.Atoms != 2*rows {
		t.Errorf("atom count = %d, want %d", learner.params.Atoms, 2*rows)
	}
	if want := 1.2 / math.Sqrt(float64(rows)); math.Abs(learner.params.Lambda-want) > 1e-12 {
		t.Errorf("lambda = %v, want %v", learner.params.Lambda, want)
	}
	if !learner.params.PositiveDict || !learner.params.PositiveCode {
		t.Error("non-negativity constraints not requested")
	}

	dr, atoms := dict.Dims()
	if dr != rows || atoms != 2*rows {
		t.Fatalf("dictionary is %dx%d, want %dx%d", dr, atoms, rows, 2*rows)
	}
	col := make([]float64, dr)
	for j := 0; j < atoms; j++ {
		mat.Col(col, j, dict)
		norm := 0.0
		for _, v := range col {
			norm += v * v
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
			t.Errorf("atom %d not re-normalized: norm %v", j, math.Sqrt(norm))
		}
	}
}

func TestTrainerEmptyMaskIsInsufficientData(t *testing.T) {
	data, _ := trainerFixture()
	mask := volume.NewMask(4, 4, 2)

	_, err := DictionaryTrainer{Learner: &recordingLearner{}}.Train(data, mask, [3]int{2, 2, 2})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("empty mask gave %v, want ErrInsufficientData", err)
	}
}

func TestTrainerAllZeroVolumeIsInsufficientData(t *testing.T) {
	data := volume.NewVolume(4, 4, 2, 2)
	mask := volume.FullMask(4, 4, 2)

	_, err := DictionaryTrainer{Learner: &recordingLearner{}}.Train(data, mask, [3]int{2, 2, 2})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("all-zero volume gave %v, want ErrInsufficientData", err)
	}
}
