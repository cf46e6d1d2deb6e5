package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/lala"
	"github.com/tordrt/lala/internal/config"
	"github.com/tordrt/lala/internal/dataset"
	"github.com/tordrt/lala/internal/evidence"
	"github.com/tordrt/lala/internal/formatter"
	"github.com/tordrt/lala/internal/logging"
	"github.com/tordrt/lala/internal/relations"
)

var (
	configPath   string
	dbURL        string
	mysqlURL     string
	sqlitePath   string
	schemaName   string
	outputDir    string
	datasetPath  string
	rootTable    string
	idList       string
	tablePrefix  string
	noAnonymize  bool
	discoverOnly bool
)

var rootCmd = &cobra.Command{
	Use:           "lala",
	Short:         "Collect anonymized evidence for auditing a learning-analytics model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Persist a dataset, its train/test split and its anonymized related data",
	RunE:  runCollect,
}

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Persist the anonymized related data of a set of root entities",
	RunE:  runRelated,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a dataset file is well-formed",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file (optional)")

	for _, cmd := range []*cobra.Command{collectCmd, relatedCmd} {
		cmd.Flags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
		cmd.Flags().StringVar(&mysqlURL, "mysql-url", "", "MySQL connection string")
		cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file path")
		cmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
		cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Evidence directory (overrides configuration)")
		cmd.Flags().StringVarP(&rootTable, "table", "t", "", "Root table the ids refer to (overrides configuration)")
		cmd.Flags().StringVar(&tablePrefix, "table-prefix", "", "Table prefix to strip, empty for none (overrides configuration)")
		cmd.Flags().BoolVar(&noAnonymize, "no-anonymize", false, "Write original ids instead of pseudonyms")
	}

	collectCmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset JSON file")
	_ = collectCmd.MarkFlagRequired("dataset")

	relatedCmd.Flags().StringVar(&idList, "ids", "", "Root entity ids (comma-separated)")
	relatedCmd.Flags().BoolVar(&discoverOnly, "discover-only", false, "Print the related tables without persisting anything")
	_ = relatedCmd.MarkFlagRequired("ids")

	validateCmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset JSON file")
	_ = validateCmd.MarkFlagRequired("dataset")

	rootCmd.AddCommand(collectCmd, relatedCmd, validateCmd)
}

// setup loads configuration, applies flag overrides and builds the logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	url, err := resolveDatabaseURL(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	cfg.Database.URL = url
	if schemaName != "" {
		cfg.Database.Schema = schemaName
	}
	if outputDir != "" {
		cfg.Evidence.Dir = outputDir
	}
	if rootTable != "" {
		cfg.Evidence.RootTable = rootTable
	}
	if noAnonymize {
		cfg.Evidence.NoAnonymize = true
	}
	if cmd.Flags().Changed("table-prefix") {
		cfg.Database.TablePrefix = tablePrefix
		cfg.Database.NoTablePrefix = tablePrefix == ""
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// resolveDatabaseURL picks the database from the flags, falling back to the configured URL
func resolveDatabaseURL(configured string) (string, error) {
	var urls []string
	if dbURL != "" {
		urls = append(urls, dbURL)
	}
	if mysqlURL != "" {
		if strings.HasPrefix(mysqlURL, "mysql://") {
			urls = append(urls, mysqlURL)
		} else {
			urls = append(urls, "mysql://"+mysqlURL)
		}
	}
	if sqlitePath != "" {
		urls = append(urls, "sqlite://"+sqlitePath)
	}

	switch len(urls) {
	case 0:
		if configured == "" {
			return "", fmt.Errorf("one of --db-url, --mysql-url, or --sqlite must be specified")
		}
		return configured, nil
	case 1:
		return urls[0], nil
	default:
		return "", fmt.Errorf("only one of --db-url, --mysql-url, or --sqlite can be specified")
	}
}

func libraryOptions(cfg *config.Config, logger *zap.Logger) *lala.Options {
	return &lala.Options{
		RootTable:    cfg.Evidence.RootTable,
		Anonymize:    cfg.Evidence.Anonymize(),
		TrainRatio:   cfg.Evidence.TrainRatio,
		PluralTables: cfg.Relations.PluralTables,
		OutputDir:    cfg.Evidence.Dir,
		SchemaName:   cfg.Database.Schema,
		TablePrefix:  cfg.Database.Prefix(),
		Logger:       logger,
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ds, err := readDataset(datasetPath)
	if err != nil {
		return err
	}

	manifest, err := lala.Collect(ctx, cfg.Database.URL, ds, libraryOptions(cfg, logger))
	if manifest != nil {
		printManifest(cmd, manifest)
	}
	return err
}

func runRelated(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ids, err := parseIDList(idList)
	if err != nil {
		return err
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if discoverOnly {
		return discover(ctx, cmd, cfg, logger, ids)
	}

	manifest, err := lala.CollectRelated(ctx, cfg.Database.URL, ids, libraryOptions(cfg, logger))
	if manifest != nil {
		printManifest(cmd, manifest)
	}
	return err
}

func discover(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, ids []int64) error {
	source, err := lala.OpenSource(ctx, cfg.Database.URL, cfg.Database.Schema, cfg.Database.Prefix())
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close database connection: %v\n", err)
		}
	}()

	var opts []relations.WalkerOption
	if cfg.Relations.PluralTables {
		opts = append(opts, relations.WithPluralTables())
	}
	graph, err := relations.NewWalker(source, source, logger, opts...).Discover(ctx, cfg.Evidence.RootTable, ids, nil)
	if err != nil {
		return fmt.Errorf("failed to discover related tables: %w", err)
	}
	return formatter.NewTextFormatter(cmd.OutOrStdout()).Format(graph)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(datasetPath)
	if err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dataset %s: %d samples, %d columns\n",
		ds.AnalysisIntervalKey(), ds.Len(), len(ds.FirstRow()))
	return nil
}

func readDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := dataset.DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return ds, nil
}

func printManifest(cmd *cobra.Command, m *evidence.Manifest) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version %s\n", m.VersionID)
	for _, item := range m.Evidence {
		name := item.Kind
		if item.Table != "" {
			name += " " + item.Table
		}
		fmt.Fprintf(out, "  %-32s %6d rows  %s\n", name, item.Rows, item.Location)
	}
	if m.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", m.Error)
	}
}

// parseIDList parses a comma-separated id list
func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	return ids, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
