package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ucp-transcoder/pkg/errors"
)

func init() {
	gob.Register(map[string]interface{}{})
	gob.Register(float64(0))
	gob.Register(int64(0))
	gob.Register("")
	gob.Register(false)
}

// UniversalMetadata is the descriptor a source checkpoint must carry: five
// regex pattern lists that classify parameters for cross-TP combination, plus
// the pre-padding vocabulary size. Its absence is a fatal precondition
// failure (spec MissingUniversalMetadata).
type UniversalMetadata struct {
	PipelineReplicatedParameterPatterns []string
	TPReplicatedParameterPatterns       []string
	ParameterToAveragePatterns          []string
	ParameterWithRowParallelismPatterns []string
	VocabularyParameterPatterns         []string
	OriginalVocabSize                   int
}

// ParamSliceMapping locates a parameter's fragment inside a flat optimizer
// tensor: offset + numel must not exceed the tensor's length.
type ParamSliceMapping struct {
	Offset int
	Numel  int
}

// ParamGroupState is one DeepSpeed-style parameter group's flat optimizer
// state: three equally fragmented 1-D moments, plus the mapping that locates
// each parameter's bytes within them.
type ParamGroupState struct {
	SliceMappings map[string]ParamSliceMapping
	FP32          []float32
	ExpAvg        []float32
	ExpAvgSq      []float32
}

// ModelFile is the per-(pp,tp) "model" file: `model_optim_rng.pt`. It
// carries the parameter shape manifest contributed by that rank, and (for at
// least one rank) the universal-metadata descriptor.
type ModelFile struct {
	ParamShapes map[string][]int
	Descriptor  *UniversalMetadata
}

// OptimizerFile is the per-(pp,tp,dp) optimizer shard: the flat, partitioned
// Adam state for every parameter group owned by that rank, plus (for rank
// (0,0,0) only) the non-sharded optimizer extras C5 copies verbatim.
type OptimizerFile struct {
	ParamGroups []ParamGroupState
	Extra       map[string]interface{}
}

// OutputRecord is the merged per-(param, moment) record C3 writes to
// `out/zero/<param>/<moment>.pt`.
type OutputRecord struct {
	Param       Tensor
	HasCatDim   bool
	CatDim      int
	HasVocabPad bool
	VocabPad    Tensor
}

func writeGob(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("mkdir for %s", path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("create %s", path), err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("encode %s", path), err)
	}
	return nil
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("decode %s", path), err)
	}
	return nil
}

// SaveModelFile persists a ModelFile, creating parent directories as needed.
func SaveModelFile(path string, mf ModelFile) error { return writeGob(path, &mf) }

// LoadModelFile reads a ModelFile written by SaveModelFile.
func LoadModelFile(path string) (ModelFile, error) {
	var mf ModelFile
	err := readGob(path, &mf)
	return mf, err
}

// SaveOptimizerFile persists an OptimizerFile.
func SaveOptimizerFile(path string, of OptimizerFile) error { return writeGob(path, &of) }

// LoadOptimizerFile reads an OptimizerFile written by SaveOptimizerFile.
func LoadOptimizerFile(path string) (OptimizerFile, error) {
	var of OptimizerFile
	err := readGob(path, &of)
	return of, err
}

// SaveTensor persists a bare Tensor, the intermediate fragment format C2
// writes to `tmp/<param>/<tp>/<moment>.<dp>`.
func SaveTensor(path string, t Tensor) error { return writeGob(path, &t) }

// LoadTensor reads a Tensor written by SaveTensor.
func LoadTensor(path string) (Tensor, error) {
	var t Tensor
	err := readGob(path, &t)
	return t, err
}

// SaveOutputRecord persists a merged parameter record to
// `out/zero/<param>/<moment>.pt`.
func SaveOutputRecord(path string, rec OutputRecord) error { return writeGob(path, &rec) }

// LoadOutputRecord reads an OutputRecord written by SaveOutputRecord.
func LoadOutputRecord(path string) (OutputRecord, error) {
	var rec OutputRecord
	err := readGob(path, &rec)
	return rec, err
}
