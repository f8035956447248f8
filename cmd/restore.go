package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"org-restore/internal/engine"
	"org-restore/internal/graph"
	"org-restore/internal/model"
	"org-restore/internal/schema"
	"org-restore/internal/source"
	"org-restore/internal/target"
	"org-restore/internal/transform"
)

var (
	sourcePath  string
	objectNames []string
	mappingPath string
	modeStr     string
	batchSize   int
	stopOnError bool
	dryRun      bool
	noValidate  bool
	noResolve   bool
	externalID  string
	maxRetries  int
	retryDelay  time.Duration
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a snapshot into the target org",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		targetCfg, err := GetActiveTargetConfig()
		if err != nil {
			return err
		}
		client, err := target.NewClient(target.Config{
			BaseURL: targetCfg.URL,
			Token:   targetCfg.Token,
			Timeout: targetCfg.HTTPTimeout(),
		}, Logger)
		if err != nil {
			return err
		}
		fmt.Printf("Target org: %s (%s)\n", targetCfg.Name, targetCfg.URL)

		srcPath := sourcePath
		if srcPath == "" {
			srcPath = viper.GetString("source.path")
		}
		if srcPath == "" {
			return fmt.Errorf("source is required (via --source flag or source.path config)")
		}
		reader, closeReader, err := openSourceReader(srcPath, Logger)
		if err != nil {
			return err
		}
		defer closeReader()

		mapping := transform.NewConfig()
		if mappingPath != "" {
			mapping, err = transform.Load(mappingPath)
			if err != nil {
				return err
			}
			Logger.Info("loaded mapping document", zap.String("path", mappingPath))
		}

		mode, err := model.ParseRestoreMode(modeStr)
		if err != nil {
			return err
		}

		descriptors, err := reader.Objects(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan source: %w", err)
		}
		descriptors = filterObjects(descriptors, requestedObjects())
		if len(descriptors) == 0 {
			return fmt.Errorf("no matching objects found in source")
		}

		rels := graph.NewRelationshipManager(client, Logger)
		orderer := graph.NewOrderer(rels, Logger)

		names := make([]string, len(descriptors))
		byName := make(map[string]model.BackupObjectDescriptor, len(descriptors))
		for i, d := range descriptors {
			names[i] = d.Name
			byName[strings.ToLower(d.Name)] = d
		}
		order, err := orderer.OrderForRestore(ctx, names)
		if err != nil {
			return fmt.Errorf("failed to order objects: %w", err)
		}
		for _, e := range order.DeferredEdges {
			color.Yellow("! dependency deferred: %s references %s restored later", e.To, e.From)
		}

		ordered := make([]model.BackupObjectDescriptor, 0, len(order.Sequence))
		totalRecords := 0
		for _, name := range order.Sequence {
			d := byName[strings.ToLower(name)]
			ordered = append(ordered, d)
			totalRecords += d.RecordCount
		}
		fmt.Printf("Restore order: %s\n", strings.Join(order.Sequence, " -> "))

		if err := validateMapping(ctx, mapping, client, reader, ordered); err != nil {
			return err
		}

		runningUserID := ""
		if mapping.UsesRunningUser() {
			user, err := client.RunningUser(ctx)
			if err != nil {
				Logger.Warn("could not resolve running user, unmapped user fields keep their source value", zap.Error(err))
			} else {
				runningUserID = user.ID
			}
		}

		opts := model.RestoreOptions{
			BatchSize:             batchSize,
			StopOnError:           stopOnError,
			ValidateBeforeRestore: !noValidate,
			ResolveRelationships:  !noResolve,
			Mode:                  mode,
			ExternalIDField:       externalID,
			MaxRetries:            maxRetries,
			RetryDelay:            retryDelay,
			DryRun:                dryRun,
		}

		if dryRun {
			color.Cyan("Dry-run mode: no records will be written.")
		}

		transformer := transform.NewEngine(mapping, runningUserID, Logger)
		exec := engine.NewExecutor(reader, client, transformer, rels, Logger)

		uiprogress.Start()
		barTotal := totalRecords
		if barTotal == 0 {
			barTotal = 1
		}
		bar := uiprogress.AddBar(barTotal).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Restoring: "
		})
		exec.OnProgress = func(p model.RestoreProgress) {
			bar.Set(p.ProcessedRecords)
		}

		start := time.Now()
		result, runErr := exec.Restore(ctx, ordered, opts)
		uiprogress.Stop()

		printSummary(result, time.Since(start))

		if runErr != nil {
			return runErr
		}
		if result.Failed() {
			exitCode = 2
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&sourcePath, "source", "", "Backup source: CSV directory or staging DB DSN")
	restoreCmd.Flags().StringSliceVar(&objectNames, "objects", nil, "Objects to restore (default: all found in source)")
	restoreCmd.Flags().StringVar(&mappingPath, "mapping", "", "Mapping document (YAML) produced by analyze")
	restoreCmd.Flags().StringVar(&modeStr, "mode", "insert", "Write mode: insert, update or upsert")
	restoreCmd.Flags().IntVar(&batchSize, "batch-size", model.DefaultBatchSize, "Records per write batch (max 200)")
	restoreCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Abort the run on the first failing object")
	restoreCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read and transform without writing")
	restoreCmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip pre-restore field validation")
	restoreCmd.Flags().BoolVar(&noResolve, "no-resolve", false, "Leave parent references unresolved")
	restoreCmd.Flags().StringVar(&externalID, "external-id", "", "External ID field for upsert mode")
	restoreCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Write attempts per batch on transport failures")
	restoreCmd.Flags().DurationVar(&retryDelay, "retry-delay", 2*time.Second, "Base delay between retries (grows per attempt)")
}

// requestedObjects merges the --objects flag with the config file list,
// flag first.
func requestedObjects() []string {
	if len(objectNames) > 0 {
		return objectNames
	}
	return viper.GetStringSlice("settings.objects")
}

func filterObjects(descriptors []model.BackupObjectDescriptor, requested []string) []model.BackupObjectDescriptor {
	if len(requested) == 0 {
		return descriptors
	}
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[strings.ToLower(name)] = true
	}
	var filtered []model.BackupObjectDescriptor
	for _, d := range descriptors {
		if want[strings.ToLower(d.Name)] {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// validateMapping enforces the picklist-mapping invariant before any
// write: every mapped picklist field must be one the comparison
// actually flagged. Only objects with picklist mappings are compared.
func validateMapping(ctx context.Context, mapping *transform.Config, client *target.Client, reader source.Reader, ordered []model.BackupObjectDescriptor) error {
	mapped := make(map[string]bool)
	for name, oc := range mapping.Objects {
		if len(oc.PicklistMappings) > 0 {
			mapped[strings.ToLower(name)] = true
		}
	}
	if len(mapped) == 0 {
		return nil
	}

	comparer := schema.NewComparer(client, Logger)
	comparisons := make(map[string]*model.ObjectComparisonResult)
	for _, d := range ordered {
		if !mapped[strings.ToLower(d.Name)] {
			continue
		}
		records, err := reader.ReadAll(ctx, d.Name)
		if err != nil {
			return fmt.Errorf("failed to read %s for mapping validation: %w", d.Name, err)
		}
		meta, err := comparer.Describe(ctx, d.Name)
		if err != nil {
			return err
		}
		picklistFields := make([]string, 0)
		for field := range meta.PicklistValuesByField() {
			picklistFields = append(picklistFields, field)
		}
		profile := schema.AnalyzeSource(records, picklistFields)
		comparison, err := comparer.CompareObject(ctx, d.Name, profile)
		if err != nil {
			return err
		}
		comparisons[d.Name] = comparison
	}
	return mapping.Validate(comparisons)
}

func printSummary(result *model.RestoreResult, elapsed time.Duration) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println("\nSummary Report (Restore Order):")
	for i, or := range result.Objects {
		icon := green("OK")
		switch {
		case or.Skipped:
			icon = yellow("SKIP")
		case or.FailureCount > 0:
			icon = red("FAIL")
		}
		fmt.Printf("[%s] [%02d/%02d] %-20s : %d ok, %d failed, %d skipped (of %d)\n",
			icon, i+1, len(result.Objects), or.ObjectName,
			or.SuccessCount, or.FailureCount, or.SkippedCount, or.TotalRecords)
		for _, msg := range or.SummaryErrors() {
			fmt.Printf("    | %s\n", msg)
		}
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total: %d records, %s / %s / %s\n",
		result.TotalRecords,
		green(fmt.Sprintf("%d ok", result.SuccessCount)),
		red(fmt.Sprintf("%d failed", result.FailureCount)),
		yellow(fmt.Sprintf("%d skipped", result.SkippedCount)))
	fmt.Printf("Time Elapsed: %s\n", elapsed.Round(time.Millisecond))
}
