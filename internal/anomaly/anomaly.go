// Package anomaly scores readings with a pre-fit unsupervised outlier model.
package anomaly

import (
	"errors"
	"math/rand"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

// Classifier decides whether a reading is anomalous. Implementations are
// read-only after construction and safe for concurrent Classify calls.
type Classifier interface {
	Classify(r model.Reading) (bool, error)
}

// Baseline describes the assumed-clean distribution of one feature, used to
// synthesize the training sample the forest is fit on at startup.
type Baseline struct {
	Mean   float64
	Stddev float64
}

// Options configure the fit. Zero values take the defaults below.
type Options struct {
	Contamination float64 // fraction of training points flagged in-sample
	Seed          int64
	Trees         int
	SampleSize    int // subsample per tree
	TrainSamples  int // synthetic baseline sample size
}

func (o Options) withDefaults() Options {
	if o.Contamination == 0 { o.Contamination = 0.05 }
	if o.Seed == 0 { o.Seed = 42 }
	if o.Trees == 0 { o.Trees = 100 }
	if o.SampleSize == 0 { o.SampleSize = 256 }
	if o.TrainSamples == 0 { o.TrainSamples = 512 }
	return o
}

var ErrNotFitted = errors.New("anomaly: model not fitted")

// SyntheticSample draws n feature vectors from the per-feature baselines,
// ordered by model.FeatureFields. Missing baselines draw as constant 0.
func SyntheticSample(base map[string]Baseline, n int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, len(model.FeatureFields))
		for j, f := range model.FeatureFields {
			b := base[f]
			row[j] = b.Mean + rng.NormFloat64()*b.Stddev
		}
		out[i] = row
	}
	return out
}
