package anomaly

import (
	"math/rand"
	"testing"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

// FitBaseline draws the training sample before building trees, so reseeding
// reproduces the identical sample.
func seededRNG(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

var testBaseline = map[string]Baseline{
	"temperature": {Mean: 22, Stddev: 5},
	"humidity":    {Mean: 50, Stddev: 10},
	"pressure":    {Mean: 1013, Stddev: 5},
}

func TestClassifyExtremesAndCenter(t *testing.T) {
	f, err := FitBaseline(testBaseline, Options{})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	outlier := model.Reading{"temperature": 10000.0, "humidity": 50.0, "pressure": 1013.0}
	got, err := f.Classify(outlier)
	if err != nil || !got {
		t.Fatalf("Classify(outlier) = %v, %v; want anomalous", got, err)
	}

	center := model.Reading{"temperature": 22.0, "humidity": 50.0, "pressure": 1013.0}
	got, err = f.Classify(center)
	if err != nil || got {
		t.Fatalf("Classify(center) = %v, %v; want normal", got, err)
	}
}

func TestMissingFieldsScoreAsZero(t *testing.T) {
	f, err := FitBaseline(testBaseline, Options{})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	// all-zero vector sits far below every baseline mean
	got, err := f.Classify(model.Reading{"timestamp": "2024-01-01T00:00:00Z"})
	if err != nil || !got {
		t.Fatalf("Classify(empty) = %v, %v; want anomalous via zero-default features", got, err)
	}
}

func TestFitDeterministicWithSeed(t *testing.T) {
	a, err := FitBaseline(testBaseline, Options{Seed: 42})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	b, err := FitBaseline(testBaseline, Options{Seed: 42})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if a.Threshold() != b.Threshold() {
		t.Fatalf("thresholds differ for same seed: %v vs %v", a.Threshold(), b.Threshold())
	}
	r := model.Reading{"temperature": 35.0, "humidity": 80.0, "pressure": 990.0}
	ga, _ := a.Classify(r)
	gb, _ := b.Classify(r)
	if ga != gb {
		t.Fatalf("same seed, different verdicts: %v vs %v", ga, gb)
	}
}

func TestContaminationBoundsInSampleFlags(t *testing.T) {
	opt := Options{}.withDefaults()
	f, err := FitBaseline(testBaseline, opt)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	// re-draw the same training sample and count in-sample flags
	train := SyntheticSample(testBaseline, opt.TrainSamples, seededRNG(opt.Seed))
	flagged := 0
	for _, x := range train {
		if f.Score(x) > f.Threshold() {
			flagged++
		}
	}
	if max := opt.TrainSamples / 10; flagged > max {
		t.Fatalf("flagged %d of %d training points, want <= %d", flagged, opt.TrainSamples, max)
	}
}

func TestFitEmptyTrainingSet(t *testing.T) {
	if _, err := Fit(nil, Options{}); err == nil {
		t.Fatal("Fit(nil) should fail")
	}
}
