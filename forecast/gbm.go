package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// GBMParams are the boosting hyperparameters. Splits are exact greedy and
// column-wise with no row or feature sampling, so training is reproducible
// from the data alone; the seed is recorded in the artifact for completeness.
type GBMParams struct {
	NumIterations int     `json:"num_iterations"`
	NumLeaves     int     `json:"num_leaves"`
	MinDataInLeaf int     `json:"min_data_in_leaf"`
	LearningRate  float64 `json:"learning_rate"`
	Seed          int64   `json:"seed"`
}

// DefaultGBMParams mirror the fixed training configuration.
func DefaultGBMParams() GBMParams {
	return GBMParams{
		NumIterations: 300,
		NumLeaves:     63,
		MinDataInLeaf: 20,
		LearningRate:  0.05,
		Seed:          42,
	}
}

// treeNode is one node of a regression tree. Feature == -1 marks a leaf.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// GBMModel is a gradient-boosted regression tree ensemble with squared loss.
// FeatureCols and TargetTransform pin the contract the model was trained
// under, so older artifacts stay loadable even if the pipeline evolves.
type GBMModel struct {
	Params          GBMParams        `json:"params"`
	BaseScore       float64          `json:"base_score"`
	Trees           []regressionTree `json:"trees"`
	FeatureCols     []string         `json:"feature_cols"`
	TargetTransform string           `json:"target_transform"`
}

// PredictRaw returns ensemble outputs in the training target space.
func (m *GBMModel) PredictRaw(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		p := m.BaseScore
		for t := range m.Trees {
			p += m.Params.LearningRate * m.Trees[t].predict(x)
		}
		out[i] = p
	}
	return out
}

// FitGBM trains the ensemble on X/y. Each iteration fits one tree to the
// current residuals using leaf-wise growth: the leaf with the largest
// variance-gain split is expanded until the leaf budget is spent or no
// split clears the minimum leaf size.
func FitGBM(X [][]float64, y []float64, params GBMParams) *GBMModel {
	m := &GBMModel{Params: params}
	n := len(y)
	if n == 0 {
		return m
	}

	sum := 0.0
	for _, v := range y {
		sum += v
	}
	m.BaseScore = sum / float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.BaseScore
	}
	resid := make([]float64, n)

	for it := 0; it < params.NumIterations; it++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		tree := fitTree(X, resid, params)
		m.Trees = append(m.Trees, tree)
		for i := range pred {
			pred[i] += params.LearningRate * tree.predict(X[i])
		}
	}
	return m
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// bestSplit scans every feature in order for the variance-reduction-optimal
// threshold over the given row set. Ties keep the first candidate found,
// which keeps training deterministic.
func bestSplit(X [][]float64, resid []float64, idx []int, minLeaf int) split {
	best := split{}
	if len(idx) < 2*minLeaf {
		return best
	}
	total := 0.0
	for _, i := range idx {
		total += resid[i]
	}
	nTot := float64(len(idx))
	baseScore := total * total / nTot

	order := make([]int, len(idx))
	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return X[order[a]][f] < X[order[b]][f]
		})
		leftSum := 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftSum += resid[i]
			nL := float64(k + 1)
			nR := nTot - nL
			if k+1 < minLeaf || int(nR) < minLeaf {
				continue
			}
			v, next := X[i][f], X[order[k+1]][f]
			if v == next {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/nL + rightSum*rightSum/nR - baseScore
			if gain > 0 && gain > best.gain {
				best = split{feature: f, threshold: (v + next) / 2, gain: gain, ok: true}
			}
		}
	}
	return best
}

func fitTree(X [][]float64, resid []float64, params GBMParams) regressionTree {
	type leaf struct {
		node int
		idx  []int
		sp   split
	}

	all := make([]int, len(resid))
	for i := range all {
		all[i] = i
	}

	tree := regressionTree{Nodes: []treeNode{leafNode(resid, all)}}
	leaves := []leaf{{node: 0, idx: all, sp: bestSplit(X, resid, all, params.MinDataInLeaf)}}

	for len(leaves) < params.NumLeaves {
		bi := -1
		for i := range leaves {
			if !leaves[i].sp.ok {
				continue
			}
			if bi < 0 || leaves[i].sp.gain > leaves[bi].sp.gain {
				bi = i
			}
		}
		if bi < 0 {
			break
		}

		l := leaves[bi]
		var leftIdx, rightIdx []int
		for _, i := range l.idx {
			if X[i][l.sp.feature] <= l.sp.threshold {
				leftIdx = append(leftIdx, i)
			} else {
				rightIdx = append(rightIdx, i)
			}
		}

		leftNo := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, leafNode(resid, leftIdx))
		rightNo := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, leafNode(resid, rightIdx))
		tree.Nodes[l.node].Feature = l.sp.feature
		tree.Nodes[l.node].Threshold = l.sp.threshold
		tree.Nodes[l.node].Left = leftNo
		tree.Nodes[l.node].Right = rightNo

		leaves[bi] = leaf{node: leftNo, idx: leftIdx, sp: bestSplit(X, resid, leftIdx, params.MinDataInLeaf)}
		leaves = append(leaves, leaf{node: rightNo, idx: rightIdx, sp: bestSplit(X, resid, rightIdx, params.MinDataInLeaf)})
	}
	return tree
}

func leafNode(resid []float64, idx []int) treeNode {
	v := 0.0
	if len(idx) > 0 {
		for _, i := range idx {
			v += resid[i]
		}
		v /= float64(len(idx))
	}
	return treeNode{Feature: -1, Left: -1, Right: -1, Value: v}
}

// SaveModel serializes the model to a JSON file.
func SaveModel(m *GBMModel, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// LoadModel reads a serialized model from disk. A missing or corrupt file
// surfaces as ErrModelUnavailable.
func LoadModel(path string) (*GBMModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	var m GBMModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: corrupt model file %s: %v", ErrModelUnavailable, path, err)
	}
	if len(m.Trees) == 0 && m.Params.NumIterations > 0 {
		return nil, fmt.Errorf("%w: empty model file %s", ErrModelUnavailable, path)
	}
	return &m, nil
}

// expm1 guards against overflow the way the inference path needs it.
func expm1(v float64) float64 {
	if v > 700 {
		return math.Inf(1)
	}
	return math.Expm1(v)
}
