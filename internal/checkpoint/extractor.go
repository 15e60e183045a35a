package checkpoint

import (
	"context"
	"fmt"
	"sort"

	"github.com/ucp-transcoder/pkg/collections"
	"github.com/ucp-transcoder/pkg/errors"
	"github.com/ucp-transcoder/pkg/filter"
)

// Extractor is the Shard Extractor (C2): it splits each (pp,tp,dp) rank's
// flat optimizer tensors into per-parameter fragments and persists them to
// the intermediate tree keyed by (param, tp, dp).
type Extractor struct {
	idx        *Index
	classifier *filter.ClassFilter
	tmpDir     string
}

// NewExtractor builds an Extractor over idx's optimizer shards, writing
// fragments under tmpDir.
func NewExtractor(idx *Index, classifier *filter.ClassFilter, tmpDir string) *Extractor {
	return &Extractor{idx: idx, classifier: classifier, tmpDir: tmpDir}
}

// ExtractShard processes one (pp,tp,dp) work item: it loads that rank's
// optimizer file and, for every parameter fragment it owns, writes one
// tensor file per moment under tmp/<param>/<tp>/<moment>.<dp>.
//
// Output file sets across distinct work items are disjoint (paths are keyed
// by tp and dp), so this requires no cross-worker coordination.
func (e *Extractor) ExtractShard(ctx context.Context, item WorkItem) error {
	path := e.idx.OptimizerFilePath(item.PP, item.TP, item.DP)
	if path == "" {
		return errors.Wrap(errors.CodeIOFailure, "missing optimizer shard",
			fmt.Errorf("pp=%d tp=%d dp=%d", item.PP, item.TP, item.DP))
	}

	of, err := LoadOptimizerFile(path)
	if err != nil {
		return err
	}

	for _, group := range of.ParamGroups {
		state := map[string][]float32{
			"fp32":       group.FP32,
			"exp_avg":    group.ExpAvg,
			"exp_avg_sq": group.ExpAvgSq,
		}

		names := make([]string, 0, len(group.SliceMappings))
		for name := range group.SliceMappings {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			mapping := group.SliceMappings[name]

			if item.PP > 0 && e.classifier.IsPipelineReplicated(name) {
				continue
			}

			for _, moment := range Moments {
				flat := state[moment]
				if mapping.Offset+mapping.Numel > len(flat) {
					return errors.Wrap(errors.CodeShapeMismatch, "fragment exceeds flat tensor bounds",
						fmt.Errorf("param=%s moment=%s offset=%d numel=%d len=%d", name, moment, mapping.Offset, mapping.Numel, len(flat)))
				}

				bufPtr := collections.GetFloat32Slice()
				buf := (*bufPtr)[:0]
				buf = append(buf, flat[mapping.Offset:mapping.Offset+mapping.Numel]...)

				t := Tensor{Shape: []int{mapping.Numel}, Data: buf}
				outPath := FragmentPath(e.tmpDir, name, item.TP, moment, item.DP)
				saveErr := SaveTensor(outPath, t)

				*bufPtr = buf
				collections.PutFloat32Slice(bufPtr)

				if saveErr != nil {
					return saveErr
				}
			}
		}
	}

	return nil
}
