package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/afobsidian/cvs2gitfi/internal/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run a migration from CVS to Git",
	Long: `Execute a repository migration using a configuration file.

The migration preserves complete history including:
- All commits with authors, dates, and messages
- Branch structure and history
- Tags and their references
- File changes and content

Interrupted migrations resume automatically: the state database records
every (path, revision) pair already committed and every patchset already
reconstructed, so re-running the same command skips what is already there.

Use --dry-run to preview the migration without making changes.

Example usage:
  cvs2gitfi migrate --config migration-config.yaml
  cvs2gitfi migrate --config config.yaml --dry-run --verbose`,
	RunE: runMigrate,
}

var (
	migrateConfigFile string
	migrateDryRun     bool
	migrateVerbose    bool
)

// ConfigFile represents the YAML configuration file structure
type ConfigFile struct {
	Source struct {
		Path   string `yaml:"path"`
		Module string `yaml:"module"`
	} `yaml:"source"`

	Target struct {
		Path string `yaml:"path"`
	} `yaml:"target"`

	Mapping struct {
		Authors  map[string]string `yaml:"authors"`
		Branches map[string]string `yaml:"branches"`
		Tags     map[string]string `yaml:"tags"`
	} `yaml:"mapping"`

	Options struct {
		DryRun         bool   `yaml:"dryRun"`
		Verbose        bool   `yaml:"verbose"`
		IgnoreErrors   bool   `yaml:"ignoreErrors"`
		PatchsetWindow string `yaml:"patchsetWindow"`
	} `yaml:"options"`
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVarP(&migrateConfigFile, "config", "c", "", "Path to configuration file (required)")
	migrateCmd.Flags().BoolVarP(&migrateDryRun, "dry-run", "d", false, "Preview migration without making changes")
	migrateCmd.Flags().BoolVarP(&migrateVerbose, "verbose", "v", false, "Show detailed progress information")

	var err = migrateCmd.MarkFlagRequired("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marking flag as required: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// Load configuration file
	config, err := loadConfigFile(migrateConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Command-line flags override config file settings
	if migrateDryRun {
		config.Options.DryRun = true
	}
	if migrateVerbose {
		config.Options.Verbose = true
	}

	var window time.Duration
	if config.Options.PatchsetWindow != "" {
		window, err = time.ParseDuration(config.Options.PatchsetWindow)
		if err != nil {
			return fmt.Errorf("invalid options.patchsetWindow: %w", err)
		}
	}

	// Convert config file to migration config
	migrationConfig := &core.MigrationConfig{
		SourcePath:     config.Source.Path,
		TargetPath:     config.Target.Path,
		AuthorMap:      config.Mapping.Authors,
		BranchMap:      config.Mapping.Branches,
		TagMap:         config.Mapping.Tags,
		PatchsetWindow: window,
		DryRun:         config.Options.DryRun,
		IgnoreErrors:   config.Options.IgnoreErrors,
	}

	// Set state file path
	migrationConfig.StateFile = filepath.Join(
		filepath.Dir(migrationConfig.TargetPath),
		".cvs2gitfi-state.db",
	)

	// Display migration information
	if config.Options.Verbose || config.Options.DryRun {
		printMigrationInfo(config, migrationConfig)
	}

	if config.Options.DryRun {
		fmt.Println("\nDRY RUN MODE - No changes will be made")
	}

	// Create migrator
	migrator := core.NewMigrator(migrationConfig)

	// Run migration
	fmt.Println("\nStarting migration...")
	if err := migrator.Run(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if config.Options.DryRun {
		fmt.Println("\nDry run completed successfully")
		fmt.Println("Run without --dry-run to perform actual migration")
	} else {
		fmt.Println("\nMigration completed successfully!")
	}

	return nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate required fields
	if config.Source.Path == "" {
		return nil, fmt.Errorf("source.path is required")
	}
	if config.Target.Path == "" {
		return nil, fmt.Errorf("target.path is required")
	}

	// Set defaults
	if config.Mapping.Authors == nil {
		config.Mapping.Authors = make(map[string]string)
	}
	if config.Mapping.Branches == nil {
		config.Mapping.Branches = make(map[string]string)
	}
	if config.Mapping.Tags == nil {
		config.Mapping.Tags = make(map[string]string)
	}

	return &config, nil
}

func printMigrationInfo(config *ConfigFile, migrationConfig *core.MigrationConfig) {
	fmt.Println("\nMigration Configuration")
	fmt.Println("======================")
	fmt.Printf("Source Path:    %s\n", config.Source.Path)
	if config.Source.Module != "" {
		fmt.Printf("Source Module:  %s\n", config.Source.Module)
	}
	fmt.Printf("Target Path:    %s\n", config.Target.Path)
	fmt.Printf("Dry Run:        %v\n", config.Options.DryRun)
	fmt.Printf("Ignore Errors:  %v\n", config.Options.IgnoreErrors)
	if config.Options.PatchsetWindow != "" {
		fmt.Printf("Patchset Window: %s\n", config.Options.PatchsetWindow)
	}

	if len(config.Mapping.Authors) > 0 {
		fmt.Printf("\nAuthor Mappings: %d\n", len(config.Mapping.Authors))
		if config.Options.Verbose {
			for cvsUser, gitAuthor := range config.Mapping.Authors {
				fmt.Printf("  %s -> %s\n", cvsUser, gitAuthor)
			}
		}
	}

	if len(config.Mapping.Branches) > 0 {
		fmt.Printf("\nBranch Mappings: %d\n", len(config.Mapping.Branches))
		if config.Options.Verbose {
			for cvsBranch, gitRef := range config.Mapping.Branches {
				fmt.Printf("  %s -> %s\n", cvsBranch, gitRef)
			}
		}
	}

	if len(config.Mapping.Tags) > 0 {
		fmt.Printf("\nTag Mappings: %d\n", len(config.Mapping.Tags))
		if config.Options.Verbose {
			for cvsTag, gitTag := range config.Mapping.Tags {
				fmt.Printf("  %s -> %s\n", cvsTag, gitTag)
			}
		}
	}
}
