package checkpoint

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ucp-transcoder/pkg/errors"
	"github.com/ucp-transcoder/pkg/filter"
)

// Merger is the TP Merger (C3): for one parameter, it rebuilds each TP
// rank's slice from its DP-ordered fragments, then combines the TP slices
// per the parameter's classification.
type Merger struct {
	idx        *Index
	classifier *filter.ClassFilter
	tmpDir     string
	outputRoot string
}

// NewMerger builds a Merger reading fragments from tmpDir and writing merged
// records under outputRoot.
func NewMerger(idx *Index, classifier *filter.ClassFilter, tmpDir, outputRoot string) *Merger {
	return &Merger{idx: idx, classifier: classifier, tmpDir: tmpDir, outputRoot: outputRoot}
}

// MergeParam processes one manifest entry: it reassembles and combines all
// three moments of spec and writes one OutputRecord per moment.
//
// Step A reconstructs each TP rank's slice by concatenating its fragments in
// lexicographic (DP-rank) order. Step B combines the TP slices according to
// the parameter's classification. Step C annotates vocabulary parameters
// with the padding row a consumer must drop or recompute.
func (m *Merger) MergeParam(ctx context.Context, spec ParamSpec) error {
	class := m.classifier.Classify(spec.Name)
	isVocab := m.classifier.IsVocabulary(spec.Name)

	for _, moment := range Moments {
		tpSlices, err := m.reassembleTPSlices(spec.Name, spec.Shape, moment)
		if err != nil {
			return err
		}

		merged, catDim, hasCatDim, err := combineTPSlices(tpSlices, class)
		if err != nil {
			return errors.Wrap(errors.CodeShapeMismatch, "combine TP slices for "+spec.Name, err)
		}

		rec := OutputRecord{Param: merged, HasCatDim: hasCatDim, CatDim: catDim}
		if isVocab {
			if merged.Shape[0] > m.idx.Descriptor().OriginalVocabSize {
				pad, padErr := LastRow(merged)
				if padErr != nil {
					return padErr
				}
				rec.HasVocabPad = true
				rec.VocabPad = pad
			} else {
				rowLen := 1
				if len(merged.Shape) > 1 {
					rowLen = numel(merged.Shape[1:])
				}
				rec.HasVocabPad = true
				rec.VocabPad = ZerosRow(rowLen)
			}
		}

		if err := SaveOutputRecord(OutputRecordPath(m.outputRoot, spec.Name, moment), rec); err != nil {
			return err
		}
	}

	return nil
}

// reassembleTPSlices returns, for each TP rank in ascending order, the
// parameter slice rebuilt from that rank's DP-ordered fragments and reshaped
// to expectedShape — the parameter's shape as seen by one TP rank (spec.md
// §4.3 Step A). Reshaping here, before Step B's cross-TP combination, is
// required: for the concat family the combined tensor is TP times larger
// along cat_dim than expectedShape, so reshaping after combination (as
// opposed to before) cannot work in general.
func (m *Merger) reassembleTPSlices(param string, expectedShape []int, moment string) ([]Tensor, error) {
	_, tpDegree, _ := m.idx.Degrees()
	slices := make([]Tensor, 0, tpDegree)

	for tp := 0; tp < tpDegree; tp++ {
		dir := filepath.Dir(FragmentPath(m.tmpDir, param, tp, moment, 0))
		fragments, err := globSorted(dir, moment)
		if err != nil {
			return nil, err
		}
		if len(fragments) == 0 {
			// Pipeline-replicated parameters are skipped by C2 only for pp>0;
			// pp=0 still writes them for every tp, and every pp stage shares
			// the same tp axis, so an empty tp slot is a gap in the tree.
			return nil, errors.Wrap(errors.CodeIOFailure,
				"no fragments found for parameter "+param+" at tp="+strconv.Itoa(tp), nil)
		}

		parts := make([]Tensor, 0, len(fragments))
		for _, f := range fragments {
			t, loadErr := LoadTensor(f)
			if loadErr != nil {
				return nil, loadErr
			}
			parts = append(parts, t)
		}
		flat := ConcatDim0(parts)

		if len(expectedShape) > 0 {
			flat, err = flat.Reshape(expectedShape)
			if err != nil {
				return nil, err
			}
		}
		slices = append(slices, flat)
	}

	if len(slices) == 0 {
		return nil, errors.Wrap(errors.CodeIOFailure, "no fragments found for parameter "+param, nil)
	}
	return slices, nil
}

func globSorted(dir, moment string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, moment+".*"))
	if err != nil {
		return nil, errors.Wrap(errors.CodeIOFailure, "glob fragments in "+dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// combineTPSlices applies the fixed cross-TP combination rule for class,
// returning the combined tensor and, for the concat family, the dimension it
// concatenated along.
func combineTPSlices(slices []Tensor, class filter.ParamClass) (Tensor, int, bool, error) {
	switch class {
	case filter.ClassReplicated:
		first := slices[0]
		for _, s := range slices[1:] {
			if !Equal(first, s) {
				return Tensor{}, 0, false, errors.New(errors.CodeReplicationViolation, "tp_replicated slices are not bitwise equal")
			}
		}
		return first, 0, false, nil
	case filter.ClassAveraged:
		avg, err := Mean(slices)
		return avg, 0, false, err
	case filter.ClassRowParallel:
		t, err := ConcatAxis(slices, 1)
		return t, 1, true, err
	default:
		t, err := ConcatAxis(slices, 0)
		return t, 0, true, err
	}
}
