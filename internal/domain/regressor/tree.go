package regressor

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Ensemble aggregation modes.
const (
	AggregationSum  = "sum"  // boosted trees: base_score + sum of leaves
	AggregationMean = "mean" // random forest: mean of leaves
)

// Node is one entry of a flattened tree. Node 0 is the root. Internal nodes
// send x to Left when x[Feature] <= Threshold, otherwise to Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// TreeEnsemble is a sum or mean of regression trees.
type TreeEnsemble struct {
	meta        Metadata
	aggregation string
	baseScore   float64
	trees       [][]Node
}

func newTreeEnsemble(doc document) (*TreeEnsemble, error) {
	agg := doc.Aggregation
	if agg == "" {
		agg = AggregationSum
	}
	if agg != AggregationSum && agg != AggregationMean {
		return nil, fmt.Errorf("%w: unknown aggregation %q", ErrMalformedModel, agg)
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrMalformedModel)
	}
	if math.IsNaN(doc.BaseScore) || math.IsInf(doc.BaseScore, 0) {
		return nil, fmt.Errorf("%w: non-finite base_score", ErrMalformedModel)
	}
	trees := make([][]Node, len(doc.Trees))
	for t, nodes := range doc.Trees {
		if err := checkTree(nodes); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %w", ErrMalformedModel, t, err)
		}
		trees[t] = slices.Clone(nodes)
	}
	return &TreeEnsemble{
		meta:        doc.Metadata.clone(),
		aggregation: agg,
		baseScore:   doc.BaseScore,
		trees:       trees,
	}, nil
}

func checkTree(nodes []Node) error {
	if len(nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range nodes {
		if n.Leaf {
			if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
				return fmt.Errorf("node %d: non-finite leaf value", i)
			}
			continue
		}
		if n.Feature < 0 {
			return fmt.Errorf("node %d: negative feature index", i)
		}
		// Children must point forward; this also rules out cycles.
		if n.Left <= i || n.Left >= len(nodes) || n.Right <= i || n.Right >= len(nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

// Predict implements Model.
func (m *TreeEnsemble) Predict(x []float64) (float64, error) {
	var sum float64
	for t, nodes := range m.trees {
		v, err := walk(nodes, x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", t, err)
		}
		sum += v
	}
	if m.aggregation == AggregationMean {
		return sum / float64(len(m.trees)), nil
	}
	return m.baseScore + sum, nil
}

func walk(nodes []Node, x []float64) (float64, error) {
	idx := 0
	for {
		n := nodes[idx]
		if n.Leaf {
			return n.Value, nil
		}
		if n.Feature >= len(x) {
			return 0, fmt.Errorf("%w: node %d reads feature %d of %d", ErrFeatureCount, idx, n.Feature, len(x))
		}
		if x[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// FeatureNames implements Model.
func (m *TreeEnsemble) FeatureNames() []string { return slices.Clone(m.meta.FeatureNames) }

// Metadata implements Model.
func (m *TreeEnsemble) Metadata() Metadata { return m.meta.clone() }

// Validate implements Model. Every split must read a feature below n.
func (m *TreeEnsemble) Validate(n int) error {
	if err := m.meta.checkNames(n); err != nil {
		return err
	}
	for t, nodes := range m.trees {
		for i, node := range nodes {
			if !node.Leaf && node.Feature >= n {
				return fmt.Errorf("%w: tree %d node %d reads feature %d, schema has %d",
					ErrFeatureCount, t, i, node.Feature, n)
			}
		}
	}
	return nil
}

// Trees returns the number of trees.
func (m *TreeEnsemble) Trees() int { return len(m.trees) }
