package checkpoint

import (
	"fmt"
	"path/filepath"
)

// IterDirName formats the iteration subdirectory name, e.g. iter_0001000.
func IterDirName(iteration int) string {
	return fmt.Sprintf("iter_%07d", iteration)
}

// RankDirName formats a rank directory name: mp_rank_<tp> when ppDegree is 1,
// else mp_rank_<tp>_<pp>, matching _create_checkpoint_paths's zero-padding.
func RankDirName(tp, pp, ppDegree int) string {
	if ppDegree == 1 {
		return fmt.Sprintf("mp_rank_%02d", tp)
	}
	return fmt.Sprintf("mp_rank_%02d_%03d", tp, pp)
}

// ModelFilePath returns the path of the (pp,tp) model file under inputRoot.
func ModelFilePath(inputRoot string, iteration, tp, pp, ppDegree int) string {
	return filepath.Join(inputRoot, IterDirName(iteration), RankDirName(tp, pp, ppDegree), "model_optim_rng.pt")
}

// OptimizerFilePath returns the path of the (pp,tp,dp) optimizer shard under
// inputRoot.
func OptimizerFilePath(inputRoot string, iteration, tp, pp, ppDegree, dp int) string {
	return filepath.Join(inputRoot, IterDirName(iteration), RankDirName(tp, pp, ppDegree),
		fmt.Sprintf("optim_states.dp_%02d.pt", dp))
}

// FragmentPath returns the intermediate fragment path
// tmp/<param>/<tp>/<moment>.<dp>.
func FragmentPath(tmpDir, param string, tp int, moment string, dp int) string {
	return filepath.Join(tmpDir, param, fmt.Sprintf("%d", tp), fmt.Sprintf("%s.%02d", moment, dp))
}

// OutputRecordPath returns the merged output path out/zero/<param>/<moment>.pt.
func OutputRecordPath(outputRoot, param, moment string) string {
	return filepath.Join(outputRoot, "zero", param, moment+".pt")
}

// OptimizerStatePath returns the residual optimizer-state output path.
func OptimizerStatePath(outputRoot string) string {
	return filepath.Join(outputRoot, "zero", "optimizer_state.pt")
}

// Moments lists the three moments every parameter carries, in the order the
// extractor and merger process them.
var Moments = []string{"fp32", "exp_avg", "exp_avg_sq"}
