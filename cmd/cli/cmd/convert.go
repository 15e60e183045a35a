package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/ucp-transcoder/internal/checkpoint"
	"github.com/ucp-transcoder/internal/ledger"
	"github.com/ucp-transcoder/internal/storage"
	"github.com/ucp-transcoder/pkg/errors"
	"github.com/ucp-transcoder/pkg/filter"
	"github.com/ucp-transcoder/pkg/parallel"
	"github.com/ucp-transcoder/pkg/utils"
	"github.com/ucp-transcoder/pkg/writer"
)

var (
	inputFolder       string
	outputFolder      string
	numExtractWorkers int
	numMergeWorkers   int
	keepTempFolder    bool
	ledgerDBPath      string

	sourceCOSBucket, sourceCOSRegion, sourceCOSSecretID, sourceCOSSecretKey string
	sourceCOSDomain, sourceCOSScheme, sourceCOSPrefix                      string
	destCOSBucket, destCOSRegion, destCOSSecretID, destCOSSecretKey        string
	destCOSDomain, destCOSScheme                                          string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a PP/TP/DP-sharded checkpoint into a universal checkpoint",
	Long: `convert runs the full four-phase pipeline: it indexes the source
checkpoint, extracts per-parameter fragments from each (pp,tp,dp) optimizer
shard, merges tensor-parallel slices per parameter, and writes the residual
optimizer state and a "latest" pointer.`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&inputFolder, "input_folder", "i", "", "Source checkpoint root (required)")
	convertCmd.Flags().StringVarP(&outputFolder, "output_folder", "o", "", "Universal checkpoint output root (required)")
	convertCmd.Flags().IntVar(&numExtractWorkers, "num_extract_workers", 4, "Worker count for the shard extraction phase")
	convertCmd.Flags().IntVar(&numMergeWorkers, "num_merge_workers", 2, "Worker count for the TP merge phase")
	convertCmd.Flags().BoolVar(&keepTempFolder, "keep_temp_folder", false, "Keep the intermediate tmp/ tree after a successful run")
	convertCmd.Flags().StringVar(&ledgerDBPath, "ledger-db", "./ucp_runs.db", "Path to the local run-history SQLite database")

	convertCmd.Flags().StringVar(&sourceCOSBucket, "source-cos-bucket", "", "Stage input_folder from this COS bucket before converting")
	convertCmd.Flags().StringVar(&sourceCOSRegion, "source-cos-region", "", "COS region for --source-cos-bucket")
	convertCmd.Flags().StringVar(&sourceCOSSecretID, "source-cos-secret-id", "", "COS secret ID for --source-cos-bucket")
	convertCmd.Flags().StringVar(&sourceCOSSecretKey, "source-cos-secret-key", "", "COS secret key for --source-cos-bucket")
	convertCmd.Flags().StringVar(&sourceCOSDomain, "source-cos-domain", "", "COS domain for --source-cos-bucket (default myqcloud.com)")
	convertCmd.Flags().StringVar(&sourceCOSScheme, "source-cos-scheme", "", "COS scheme for --source-cos-bucket (default https)")
	convertCmd.Flags().StringVar(&sourceCOSPrefix, "source-cos-prefix", "", "Key prefix to mirror from --source-cos-bucket")

	convertCmd.Flags().StringVar(&destCOSBucket, "dest-cos-bucket", "", "Push the finished output_folder tree to this COS bucket")
	convertCmd.Flags().StringVar(&destCOSRegion, "dest-cos-region", "", "COS region for --dest-cos-bucket")
	convertCmd.Flags().StringVar(&destCOSSecretID, "dest-cos-secret-id", "", "COS secret ID for --dest-cos-bucket")
	convertCmd.Flags().StringVar(&destCOSSecretKey, "dest-cos-secret-key", "", "COS secret key for --dest-cos-bucket")
	convertCmd.Flags().StringVar(&destCOSDomain, "dest-cos-domain", "", "COS domain for --dest-cos-bucket (default myqcloud.com)")
	convertCmd.Flags().StringVar(&destCOSScheme, "dest-cos-scheme", "", "COS scheme for --dest-cos-bucket (default https)")

	convertCmd.MarkFlagRequired("input_folder")
	convertCmd.MarkFlagRequired("output_folder")
}

var tracer = otel.Tracer("ucp-transcoder/convert")

func runConvert(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	ctx := context.Background()

	effectiveInput := inputFolder
	if sourceCOSBucket != "" {
		staged, err := stageSourceFromCOS(ctx, log)
		if err != nil {
			return err
		}
		effectiveInput = staged
	}

	db, err := ledger.OpenDB(ledgerDBPath)
	if err != nil {
		return err
	}
	led, err := ledger.NewGormLedger(db, nil)
	if err != nil {
		return err
	}

	runUUID, err := led.StartRun(ctx, effectiveInput, outputFolder, numExtractWorkers, numMergeWorkers)
	if err != nil {
		return err
	}

	if err := doConvert(ctx, log, led, runUUID, effectiveInput); err != nil {
		if failErr := led.FailRun(ctx, runUUID, err); failErr != nil {
			log.Warn("failed to record run failure in ledger: %v", failErr)
		}
		return err
	}

	return nil
}

func doConvert(ctx context.Context, log utils.Logger, led ledger.Ledger, runUUID, effectiveInput string) error {
	timer := utils.NewTimer("convert", utils.WithLogger(log))

	ctx, span := tracer.Start(ctx, "index")
	pt := timer.Start("index")
	idx, err := checkpoint.BuildIndex(effectiveInput)
	pt.Stop()
	span.End()
	if err != nil {
		return err
	}

	pp, tp, dp := idx.Degrees()
	log.Info("detected topology: pp=%d tp=%d dp=%d, %d parameters", pp, tp, dp, len(idx.ParamManifest()))

	if err := led.RecordTopology(ctx, runUUID, ledger.Topology{PipelineDegree: pp, TensorDegree: tp, DataDegree: dp}); err != nil {
		log.Warn("failed to record topology in ledger: %v", err)
	}

	descriptor := idx.Descriptor()
	classifier, err := filter.NewClassFilter(filter.PatternSource{
		PipelineReplicated: descriptor.PipelineReplicatedParameterPatterns,
		TPReplicated:       descriptor.TPReplicatedParameterPatterns,
		Average:            descriptor.ParameterToAveragePatterns,
		RowParallel:        descriptor.ParameterWithRowParallelismPatterns,
		Vocabulary:         descriptor.VocabularyParameterPatterns,
	})
	if err != nil {
		return errors.Wrap(errors.CodeConfigError, "failed to compile parameter classification patterns", err)
	}

	tmpDir := filepath.Join(outputFolder, "tmp")

	ctx, span = tracer.Start(ctx, "extract")
	pt = timer.Start("extract")
	extractor := checkpoint.NewExtractor(idx, classifier, tmpDir)
	items := idx.WorkItems()
	err = parallel.RunChunked(ctx, items, numExtractWorkers, extractor.ExtractShard, func(completed, total int) {
		log.Info("extraction progress: %d/%d shards", completed, total)
	})
	pt.Stop()
	span.End()
	if err != nil {
		return err
	}
	if err := led.AdvancePhase(ctx, runUUID, ledger.RunStatusExtracted); err != nil {
		log.Warn("failed to advance ledger phase: %v", err)
	}

	ctx, span = tracer.Start(ctx, "merge")
	pt = timer.Start("merge")
	merger := checkpoint.NewMerger(idx, classifier, tmpDir, outputFolder)
	manifest := idx.ParamManifest()
	err = parallel.RunChunked(ctx, manifest, numMergeWorkers, merger.MergeParam, func(completed, total int) {
		log.Info("merge progress: %d/%d parameters", completed, total)
	})
	pt.Stop()
	span.End()
	if err != nil {
		return err
	}
	if err := led.AdvancePhase(ctx, runUUID, ledger.RunStatusMerged); err != nil {
		log.Warn("failed to advance ledger phase: %v", err)
	}

	ctx, span = tracer.Start(ctx, "metadata")
	pt = timer.Start("metadata")
	if err := checkpoint.CopyOptimizerState(idx, outputFolder); err != nil {
		pt.Stop()
		span.End()
		return err
	}
	if err := checkpoint.CopyAuxFiles(idx, outputFolder); err != nil {
		pt.Stop()
		span.End()
		return err
	}
	if err := checkpoint.WriteLatestPointer(outputFolder); err != nil {
		pt.Stop()
		span.End()
		return err
	}
	pt.Stop()
	span.End()

	if !keepTempFolder {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Warn("failed to remove intermediate tree %s: %v", tmpDir, err)
		}
	}

	if destCOSBucket != "" {
		if err := pushOutputToCOS(ctx, log); err != nil {
			return err
		}
	}

	if err := writeConvertSummary(idx, timer, runUUID); err != nil {
		log.Warn("failed to write convert summary: %v", err)
	}

	if err := led.CompleteRun(ctx, runUUID); err != nil {
		log.Warn("failed to mark run completed in ledger: %v", err)
	}

	timer.PrintSummary()
	log.Info("conversion complete: %s", outputFolder)
	return nil
}

// convertSummary is the JSON record written to
// <output_folder>/convert_summary.json at the end of a successful run.
type convertSummary struct {
	RunUUID       string `json:"run_uuid"`
	PipelineDeg   int    `json:"pipeline_degree"`
	TensorDeg     int    `json:"tensor_degree"`
	DataDeg       int    `json:"data_degree"`
	ParamCount    int    `json:"param_count"`
	TotalDuration string `json:"total_duration"`
}

func writeConvertSummary(idx *checkpoint.Index, timer *utils.Timer, runUUID string) error {
	pp, tp, dp := idx.Degrees()
	summary := convertSummary{
		RunUUID:       runUUID,
		PipelineDeg:   pp,
		TensorDeg:     tp,
		DataDeg:       dp,
		ParamCount:    len(idx.ParamManifest()),
		TotalDuration: timer.TotalDuration().String(),
	}
	w := writer.NewPrettyJSONWriter[convertSummary]()
	return w.WriteToFile(summary, filepath.Join(outputFolder, "convert_summary.json"))
}

func stageSourceFromCOS(ctx context.Context, log utils.Logger) (string, error) {
	st, err := storage.NewCOSStorage(&storage.COSConfig{
		Bucket:    sourceCOSBucket,
		Region:    sourceCOSRegion,
		SecretID:  sourceCOSSecretID,
		SecretKey: sourceCOSSecretKey,
		Domain:    sourceCOSDomain,
		Scheme:    sourceCOSScheme,
	})
	if err != nil {
		return "", errors.Wrap(errors.CodeConfigError, "failed to build source COS client", err)
	}

	staged, err := os.MkdirTemp("", "ucp-source-*")
	if err != nil {
		return "", errors.Wrap(errors.CodeIOFailure, "failed to create staging directory", err)
	}

	log.Info("staging input from cos://%s/%s to %s", sourceCOSBucket, sourceCOSPrefix, staged)
	if err := storage.DownloadTree(ctx, st, sourceCOSPrefix, staged); err != nil {
		return "", errors.Wrap(errors.CodeIOFailure, "failed to stage source checkpoint from COS", err)
	}
	return staged, nil
}

func pushOutputToCOS(ctx context.Context, log utils.Logger) error {
	st, err := storage.NewCOSStorage(&storage.COSConfig{
		Bucket:    destCOSBucket,
		Region:    destCOSRegion,
		SecretID:  destCOSSecretID,
		SecretKey: destCOSSecretKey,
		Domain:    destCOSDomain,
		Scheme:    destCOSScheme,
	})
	if err != nil {
		return errors.Wrap(errors.CodeConfigError, "failed to build destination COS client", err)
	}

	log.Info("pushing %s to cos://%s", outputFolder, destCOSBucket)
	if err := storage.UploadTree(ctx, st, outputFolder); err != nil {
		return errors.Wrap(errors.CodeIOFailure, "failed to push universal checkpoint to COS", err)
	}
	return nil
}
