package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/ucp-transcoder/pkg/errors"
)

// ParamSpec is one entry of the ordered parameter manifest: a name paired
// with its expected post-merge shape.
type ParamSpec struct {
	Name  string
	Shape []int
}

var rankDirPattern = regexp.MustCompile(`^mp_rank_(\d+)(?:_(\d+))?$`)
var iterDirPattern = regexp.MustCompile(`^iter_(\d+)$`)

// Index is the Source Checkpoint Index (C1): it scans an input root,
// locates its rank files, and exposes the detected topology, parameter
// manifest, and universal-metadata descriptor.
type Index struct {
	inputRoot string
	iteration int

	pp, tp, dp int

	manifestOrder []string
	manifest      map[string][]int

	descriptor *UniversalMetadata

	// optimFiles[pp][tp][dp] is the path to that rank's optimizer shard.
	optimFiles map[[3]int]string
	// modelFiles holds every model_optim_rng.pt path found, for §6's "model
	// files" accessor.
	modelFiles []string
	// auxFiles holds top-level `mp*` files in the input root, copied
	// verbatim by C5.
	auxFiles []string
}

// BuildIndex scans inputRoot and returns a populated Index, or a fatal error
// if the checkpoint is malformed or missing its universal-metadata
// descriptor.
func BuildIndex(inputRoot string) (*Index, error) {
	iterDir, iteration, err := findIterationDir(inputRoot)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(iterDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("read %s", iterDir), err)
	}

	idx := &Index{
		inputRoot:  inputRoot,
		iteration:  iteration,
		manifest:   make(map[string][]int),
		optimFiles: make(map[[3]int]string),
	}

	maxTP, maxPP := -1, -1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := rankDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		tp, _ := strconv.Atoi(m[1])
		pp := 0
		if m[2] != "" {
			pp, _ = strconv.Atoi(m[2])
		}
		if tp > maxTP {
			maxTP = tp
		}
		if pp > maxPP {
			maxPP = pp
		}

		rankDir := filepath.Join(iterDir, e.Name())
		modelPath := filepath.Join(rankDir, "model_optim_rng.pt")
		if _, statErr := os.Stat(modelPath); statErr == nil {
			idx.modelFiles = append(idx.modelFiles, modelPath)

			mf, loadErr := LoadModelFile(modelPath)
			if loadErr != nil {
				return nil, loadErr
			}
			// Later mp_rank_* files silently overwrite earlier manifest
			// entries for the same parameter name, matching the source's
			// dict-comprehension merge.
			for name, shape := range mf.ParamShapes {
				if _, seen := idx.manifest[name]; !seen {
					idx.manifestOrder = append(idx.manifestOrder, name)
				}
				idx.manifest[name] = shape
			}
			if mf.Descriptor != nil && idx.descriptor == nil {
				idx.descriptor = mf.Descriptor
			}
		}

		dpFiles, globErr := filepath.Glob(filepath.Join(rankDir, "optim_states.dp_*.pt"))
		if globErr != nil {
			return nil, errors.Wrap(errors.CodeIOFailure, "glob optimizer shards", globErr)
		}
		for _, p := range dpFiles {
			dp := parseDPIndex(p)
			idx.optimFiles[[3]int{pp, tp, dp}] = p
		}
	}

	if idx.descriptor == nil {
		return nil, errors.ErrMissingUniversalMetadata
	}

	idx.tp = maxTP + 1
	idx.pp = maxPP + 1
	if idx.tp <= 0 {
		return nil, errors.Wrap(errors.CodeIOFailure, "no mp_rank_* directories found", fmt.Errorf("input=%s", inputRoot))
	}
	idx.dp = maxDPDegree(idx.optimFiles)

	sort.Strings(idx.manifestOrder)

	auxFiles, globErr := filepath.Glob(filepath.Join(inputRoot, "mp*"))
	if globErr != nil {
		return nil, errors.Wrap(errors.CodeIOFailure, "glob aux mp* files", globErr)
	}
	for _, f := range auxFiles {
		if info, statErr := os.Stat(f); statErr == nil && !info.IsDir() {
			idx.auxFiles = append(idx.auxFiles, f)
		}
	}

	return idx, nil
}

func findIterationDir(inputRoot string) (string, int, error) {
	if data, err := os.ReadFile(filepath.Join(inputRoot, "latest")); err == nil {
		name := string(data)
		name = trimSpace(name)
		if m := iterDirPattern.FindStringSubmatch(name); m != nil {
			iter, _ := strconv.Atoi(m[1])
			return filepath.Join(inputRoot, name), iter, nil
		}
	}

	entries, err := os.ReadDir(inputRoot)
	if err != nil {
		return "", 0, errors.Wrap(errors.CodeIOFailure, fmt.Sprintf("read input folder %s", inputRoot), err)
	}

	best := -1
	bestName := ""
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := iterDirPattern.FindStringSubmatch(e.Name()); m != nil {
			iter, _ := strconv.Atoi(m[1])
			if iter > best {
				best = iter
				bestName = e.Name()
			}
		}
	}
	if best < 0 {
		return "", 0, errors.Wrap(errors.CodeIOFailure, "no iter_<N> directory found", fmt.Errorf("input=%s", inputRoot))
	}
	return filepath.Join(inputRoot, bestName), best, nil
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

var dpSuffixPattern = regexp.MustCompile(`optim_states\.dp_(\d+)\.pt$`)

func parseDPIndex(path string) int {
	m := dpSuffixPattern.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	dp, _ := strconv.Atoi(m[1])
	return dp
}

func maxDPDegree(optimFiles map[[3]int]string) int {
	max := -1
	for k := range optimFiles {
		if k[2] > max {
			max = k[2]
		}
	}
	return max + 1
}

// Degrees returns the detected (PP, TP, DP) topology.
func (idx *Index) Degrees() (pp, tp, dp int) { return idx.pp, idx.tp, idx.dp }

// ParamManifest returns the ordered parameter-name -> expected-shape
// manifest.
func (idx *Index) ParamManifest() []ParamSpec {
	out := make([]ParamSpec, 0, len(idx.manifestOrder))
	for _, name := range idx.manifestOrder {
		out = append(out, ParamSpec{Name: name, Shape: idx.manifest[name]})
	}
	return out
}

// Descriptor returns the universal-metadata descriptor.
func (idx *Index) Descriptor() *UniversalMetadata { return idx.descriptor }

// Iteration returns the detected training iteration number.
func (idx *Index) Iteration() int { return idx.iteration }

// OptimizerFilePath returns the path of the (pp,tp,dp) optimizer shard, or
// "" if no such shard exists.
func (idx *Index) OptimizerFilePath(pp, tp, dp int) string {
	return idx.optimFiles[[3]int{pp, tp, dp}]
}

// ModelFilePaths returns every model_optim_rng.pt path discovered.
func (idx *Index) ModelFilePaths() []string { return append([]string(nil), idx.modelFiles...) }

// AuxFiles returns the top-level `mp*` files C5 copies verbatim.
func (idx *Index) AuxFiles() []string { return append([]string(nil), idx.auxFiles...) }

// WorkItems enumerates every (pp, tp, dp) triple the extractor must process.
func (idx *Index) WorkItems() []WorkItem {
	items := make([]WorkItem, 0, idx.pp*idx.tp*idx.dp)
	for pp := 0; pp < idx.pp; pp++ {
		for tp := 0; tp < idx.tp; tp++ {
			for dp := 0; dp < idx.dp; dp++ {
				items = append(items, WorkItem{PP: pp, TP: tp, DP: dp})
			}
		}
	}
	return items
}

// WorkItem is one (pp, tp, dp) extraction unit of work.
type WorkItem struct {
	PP, TP, DP int
}
