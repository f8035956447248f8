package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"org-restore/internal/model"
	"org-restore/internal/schema"
	"org-restore/internal/source"
	"org-restore/internal/target"
	"org-restore/internal/transform"
)

var (
	analyzeSource  string
	analyzeObjects []string
	outputPath     string
	sampleSize     int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare a snapshot against the target org schema",
	Long: `Reads the snapshot, compares each object's fields, record types,
picklist values and user references against the target org, and prints
what will not restore cleanly. With --output, writes a mapping document
seeded with suggestions to fix up and pass to restore.`,
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

		srcPath := analyzeSource
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

		descriptors, err := reader.Objects(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan source: %w", err)
		}
		descriptors = filterObjects(descriptors, analyzeRequestedObjects())
		if len(descriptors) == 0 {
			return fmt.Errorf("no matching objects found in source")
		}

		comparer := schema.NewComparer(client, Logger)
		profiles := make(map[string]schema.SourceProfile, len(descriptors))
		for _, d := range descriptors {
			records, err := readForAnalysis(ctx, reader, d.Name)
			if err != nil {
				Logger.Warn("skipping object: read failed",
					zap.String("object", d.Name), zap.Error(err))
				continue
			}
			meta, err := comparer.Describe(ctx, d.Name)
			if err != nil {
				Logger.Warn("skipping object: describe failed",
					zap.String("object", d.Name), zap.Error(err))
				continue
			}
			var picklistFields []string
			for field := range meta.PicklistValuesByField() {
				picklistFields = append(picklistFields, field)
			}
			profiles[d.Name] = schema.AnalyzeSource(records, picklistFields)
		}

		comparisons, err := comparer.CompareObjects(ctx, profiles)
		if err != nil {
			return err
		}

		printComparisons(comparisons)

		if outputPath != "" {
			seed := seedMapping(comparisons, targetCfg)
			if err := seed.Save(outputPath); err != nil {
				return err
			}
			fmt.Printf("\nMapping document written to %s (review before restoring)\n", outputPath)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "", "Backup source: CSV directory or staging DB DSN")
	analyzeCmd.Flags().StringSliceVar(&analyzeObjects, "objects", nil, "Objects to analyze (default: all found in source)")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write a suggestion-seeded mapping document (YAML)")
	analyzeCmd.Flags().IntVar(&sampleSize, "sample", 0, "Profile at most N records per object (0 = all)")
}

// readForAnalysis honors --sample when the reader supports bounded
// reads.
func readForAnalysis(ctx context.Context, reader source.Reader, objectName string) ([]model.SourceRecord, error) {
	if sampleSize > 0 {
		if s, ok := reader.(source.Sampler); ok {
			return s.ReadSample(ctx, objectName, sampleSize)
		}
	}
	return reader.ReadAll(ctx, objectName)
}

func analyzeRequestedObjects() []string {
	if len(analyzeObjects) > 0 {
		return analyzeObjects
	}
	return viper.GetStringSlice("settings.objects")
}

func printComparisons(comparisons map[string]*model.ObjectComparisonResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	names := make([]string, 0, len(comparisons))
	for name := range comparisons {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nSchema Comparison Report:")
	for _, name := range names {
		r := comparisons[name]
		icon := green("OK")
		if r.HasMismatches() {
			icon = red("!!")
		}
		fmt.Printf("[%s] %-20s : %s\n", icon, name, r.Summary())

		for _, f := range r.MissingFields {
			fmt.Printf("    missing field       : %s\n", f)
		}
		for _, f := range r.NonCreateableFields {
			fmt.Printf("    not createable      : %s\n", f)
		}
		for _, m := range r.RecordTypeMismatches {
			fmt.Printf("    record type         : %s (target has %s)\n",
				m.SourceRecordTypeID, recordTypeNames(m.TargetOptions))
		}
		for _, m := range r.PicklistMismatches {
			fmt.Printf("    picklist %-10s : %q not in target\n", m.FieldName, m.SourceValue)
		}
		for _, m := range r.UserMismatches {
			fmt.Printf("    user                : %s not active in target\n", m.SourceUserID)
		}
	}
}

func recordTypeNames(options []model.RecordTypeInfo) string {
	if len(options) == 0 {
		return "no record types"
	}
	names := make([]string, len(options))
	for i, rt := range options {
		names[i] = rt.DeveloperName
	}
	return strings.Join(names, ", ")
}

// seedMapping pre-fills a mapping document from the comparison results:
// close picklist values are mapped to their suggestion, record types
// fall back to the target default. Everything is meant to be reviewed.
func seedMapping(comparisons map[string]*model.ObjectComparisonResult, targetCfg *TargetOrgConfig) *transform.Config {
	seed := transform.NewConfig()
	seed.Name = "restore mapping"
	seed.Description = "Generated by analyze; review every mapping before restoring."
	seed.TargetOrg = targetCfg.URL

	for name, r := range comparisons {
		if !r.HasMismatches() {
			continue
		}
		oc := seed.Object(name)

		var defaultRT *model.RecordTypeInfo
		for i := range r.TargetRecordTypes {
			if r.TargetRecordTypes[i].IsDefault {
				defaultRT = &r.TargetRecordTypes[i]
				break
			}
		}
		if defaultRT != nil {
			oc.DefaultRecordTypeID = defaultRT.ID
			for _, m := range r.RecordTypeMismatches {
				oc.RecordTypeMappings[m.SourceRecordTypeID] = defaultRT.ID
			}
		}

		for _, m := range r.PicklistMismatches {
			suggestion, ok := schema.SuggestPicklistValue(m.SourceValue, m.TargetOptions)
			if !ok {
				continue
			}
			if oc.PicklistMappings[m.FieldName] == nil {
				oc.PicklistMappings[m.FieldName] = map[string]string{}
			}
			oc.PicklistMappings[m.FieldName][m.SourceValue] = suggestion
		}
	}
	return seed
}
