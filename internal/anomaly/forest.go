package anomaly

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

// IsolationForest is a fixed-seed isolation forest. Anomalies isolate in few
// random splits, so short average path lengths score high; the decision
// threshold is the (1-contamination) quantile of the training scores.
type IsolationForest struct {
	trees     []*itNode
	sample    int
	cNorm     float64
	threshold float64
}

type itNode struct {
	left, right *itNode
	feature     int
	split       float64
	size        int // external node: points that ended here
}

// Fit builds a forest over train and sets the decision threshold so that
// ~contamination of the training points score as outliers.
func Fit(train [][]float64, opt Options) (*IsolationForest, error) {
	opt = opt.withDefaults()
	if len(train) == 0 { return nil, ErrNotFitted }
	rng := rand.New(rand.NewSource(opt.Seed))
	return fit(train, opt, rng)
}

// FitBaseline fits on a synthetic sample drawn from the configured baselines.
// A fixed seed makes the sample, the forest and the threshold reproducible.
func FitBaseline(base map[string]Baseline, opt Options) (*IsolationForest, error) {
	opt = opt.withDefaults()
	rng := rand.New(rand.NewSource(opt.Seed))
	train := SyntheticSample(base, opt.TrainSamples, rng)
	return fit(train, opt, rng)
}

func fit(train [][]float64, opt Options, rng *rand.Rand) (*IsolationForest, error) {
	sample := opt.SampleSize
	if sample > len(train) { sample = len(train) }
	maxDepth := int(math.Ceil(math.Log2(float64(sample)))) + 1

	f := &IsolationForest{
		trees:  make([]*itNode, opt.Trees),
		sample: sample,
		cNorm:  avgPathLength(sample),
	}
	for i := range f.trees {
		sub := subsample(train, sample, rng)
		f.trees[i] = buildTree(sub, 0, maxDepth, rng)
	}

	// in-sample scores fix the decision threshold
	scores := make([]float64, len(train))
	for i, x := range train {
		scores[i] = f.Score(x)
	}
	sort.Float64s(scores)
	q := int(float64(len(scores)) * (1 - opt.Contamination))
	if q >= len(scores) { q = len(scores) - 1 }
	f.threshold = scores[q]
	return f, nil
}

// Score returns the anomaly score in (0,1); higher means more isolated.
func (f *IsolationForest) Score(x []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += pathLength(t, x, 0)
	}
	mean := sum / float64(len(f.trees))
	return math.Exp2(-mean / f.cNorm)
}

// Classify extracts the fixed feature vector and compares against the fitted
// threshold. Missing or non-numeric fields score as 0 (model.Feature).
func (f *IsolationForest) Classify(r model.Reading) (bool, error) {
	if len(f.trees) == 0 { return false, ErrNotFitted }
	return f.Score(r.Features()) > f.threshold, nil
}

// Threshold exposes the fitted decision boundary.
func (f *IsolationForest) Threshold() float64 { return f.threshold }

func subsample(train [][]float64, n int, rng *rand.Rand) [][]float64 {
	if n >= len(train) { return train }
	idx := rng.Perm(len(train))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = train[j]
	}
	return out
}

func buildTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *itNode {
	if depth >= maxDepth || len(data) <= 1 {
		return &itNode{size: len(data)}
	}
	feat := rng.Intn(len(data[0]))
	lo, hi := data[0][feat], data[0][feat]
	for _, row := range data {
		if row[feat] < lo { lo = row[feat] }
		if row[feat] > hi { hi = row[feat] }
	}
	if lo == hi {
		return &itNode{size: len(data)}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range data {
		if row[feat] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &itNode{
		feature: feat,
		split:   split,
		left:    buildTree(left, depth+1, maxDepth, rng),
		right:   buildTree(right, depth+1, maxDepth, rng),
	}
}

func pathLength(n *itNode, x []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if x[n.feature] < n.split {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 { return 0 }
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}
