package checkpoint

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ucp-transcoder/pkg/errors"
)

// strippedOptimizerKeys are the sharded-state keys C5 removes from rank
// (0,0,0)'s optimizer file before persisting the residual, non-sharded
// optimizer state: the flattened moments and slice mappings have already
// been fully reconstructed per-parameter by C3, and the rank's own partition
// of the fp32 groups is meaningless outside that rank's DP shard.
var strippedOptimizerKeys = []string{
	"base_optimizer_state",
	"param_slice_mappings",
	"single_partition_of_fp32_groups",
}

// CopyOptimizerState loads rank (0,0,0)'s optimizer file, strips the sharded
// keys every other rank already covered via C2/C3, and persists whatever
// remains (scheduler state, loss scaler, step counters, ...) to the output
// checkpoint's optimizer_state.pt.
func CopyOptimizerState(idx *Index, outputRoot string) error {
	path := idx.OptimizerFilePath(0, 0, 0)
	if path == "" {
		return errors.Wrap(errors.CodeIOFailure, "missing rank (0,0,0) optimizer file", nil)
	}

	of, err := LoadOptimizerFile(path)
	if err != nil {
		return err
	}

	residual := OptimizerFile{Extra: make(map[string]interface{}, len(of.Extra))}
	for k, v := range of.Extra {
		if isStrippedKey(k) {
			continue
		}
		residual.Extra[k] = v
	}

	return SaveOptimizerFile(OptimizerStatePath(outputRoot), residual)
}

func isStrippedKey(key string) bool {
	for _, k := range strippedOptimizerKeys {
		if key == k {
			return true
		}
	}
	return false
}

// CopyAuxFiles copies every top-level `mp*` file the index discovered in the
// input root into the output root, unchanged.
func CopyAuxFiles(idx *Index, outputRoot string) error {
	for _, src := range idx.AuxFiles() {
		dst := filepath.Join(outputRoot, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.CodeIOFailure, "open "+src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(errors.CodeIOFailure, "mkdir for "+dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(errors.CodeIOFailure, "create "+dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(errors.CodeIOFailure, "copy "+src+" to "+dst, err)
	}
	return nil
}

// WriteLatestPointer writes the output step folder's basename into a
// `latest_universal` file in the parent of outputRoot, the pointer a loader
// follows to find the most recently converted universal checkpoint.
func WriteLatestPointer(outputRoot string) error {
	parent := filepath.Dir(outputRoot)
	pointerPath := filepath.Join(parent, "latest_universal")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrap(errors.CodeIOFailure, "mkdir for "+pointerPath, err)
	}
	if err := os.WriteFile(pointerPath, []byte(filepath.Base(outputRoot)), 0o644); err != nil {
		return errors.Wrap(errors.CodeIOFailure, "write "+pointerPath, err)
	}
	return nil
}
