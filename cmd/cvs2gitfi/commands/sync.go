package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/afobsidian/cvs2gitfi/internal/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Incrementally re-import new CVS history into an existing Git mirror",
	Long: `Sync repeats the same CVS-to-git reconstruction as migrate against the
same state database, so only patchsets CVS gained since the last run are
emitted. Set sync.interval in the config file to keep running and re-import
on a schedule rather than exiting after one pass.

Use --dry-run to preview planned changes without applying them.

Example usage:
  cvs2gitfi sync --config sync-config.yaml
  cvs2gitfi sync --config sync-config.yaml --dry-run`,
	RunE: runSync,
}

var (
	syncConfigFile string
	syncDryRun     bool
	syncVerbose    bool
)

// SyncConfigFile is the YAML schema for a sync configuration file.
type SyncConfigFile struct {
	Source struct {
		Path string `yaml:"path"`
	} `yaml:"source"`

	Target struct {
		Path string `yaml:"path"`
	} `yaml:"target"`

	Sync struct {
		Interval   string `yaml:"interval"` // e.g. "10m"; empty = run once
		StateFile  string `yaml:"stateFile"`
		StatusFile string `yaml:"statusFile"`
	} `yaml:"sync"`

	Mapping struct {
		Authors  map[string]string `yaml:"authors"`
		Branches map[string]string `yaml:"branches"`
		Tags     map[string]string `yaml:"tags"`
	} `yaml:"mapping"`

	Options struct {
		DryRun       bool `yaml:"dryRun"`
		Verbose      bool `yaml:"verbose"`
		IgnoreErrors bool `yaml:"ignoreErrors"`
	} `yaml:"options"`
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncConfigFile, "config", "c", "", "Path to sync configuration file (required)")
	syncCmd.Flags().BoolVarP(&syncDryRun, "dry-run", "d", false, "Preview sync without making changes")
	syncCmd.Flags().BoolVarP(&syncVerbose, "verbose", "v", false, "Show detailed output")

	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking flag as required: %v\n", err)
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	config, err := loadSyncConfigFile(syncConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load sync configuration: %w", err)
	}

	// CLI flags override the config file values
	if syncDryRun {
		config.Options.DryRun = true
	}
	if syncVerbose {
		config.Options.Verbose = true
	}

	var interval time.Duration
	if config.Sync.Interval != "" {
		interval, err = time.ParseDuration(config.Sync.Interval)
		if err != nil {
			return fmt.Errorf("invalid sync.interval: %w", err)
		}
	}

	syncConfig := &core.SyncConfig{
		SourcePath:   config.Source.Path,
		TargetPath:   config.Target.Path,
		AuthorMap:    config.Mapping.Authors,
		BranchMap:    config.Mapping.Branches,
		TagMap:       config.Mapping.Tags,
		DryRun:       config.Options.DryRun,
		IgnoreErrors: config.Options.IgnoreErrors,
		StateFile:    config.Sync.StateFile,
		Interval:     interval,
		StatusFile:   config.Sync.StatusFile,
	}

	if config.Options.Verbose || config.Options.DryRun {
		printSyncInfo(config, syncConfig)
	}

	if config.Options.DryRun {
		fmt.Println("\nDRY RUN MODE - No changes will be made")
	}

	syncer := core.NewSyncer(syncConfig)

	fmt.Println("\nStarting sync...")
	if err := syncer.Run(); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if config.Options.DryRun {
		fmt.Println("\nDry run completed successfully")
		fmt.Println("Run without --dry-run to apply changes")
	} else {
		fmt.Println("\nSync completed successfully!")
	}

	return nil
}

func loadSyncConfigFile(path string) (*SyncConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SyncConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Source.Path == "" {
		return nil, fmt.Errorf("source.path is required")
	}
	if config.Target.Path == "" {
		return nil, fmt.Errorf("target.path is required")
	}

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

func printSyncInfo(config *SyncConfigFile, syncConfig *core.SyncConfig) {
	fmt.Println("\nSync Configuration")
	fmt.Println("==================")
	fmt.Printf("Source Path:     %s\n", config.Source.Path)
	fmt.Printf("Target Path:     %s\n", config.Target.Path)
	fmt.Printf("Dry Run:         %v\n", config.Options.DryRun)
	if syncConfig.Interval > 0 {
		fmt.Printf("Interval:        %s\n", syncConfig.Interval)
	}

	if len(config.Mapping.Authors) > 0 {
		fmt.Printf("\nAuthor Mappings: %d\n", len(config.Mapping.Authors))
		if config.Options.Verbose {
			for src, dst := range config.Mapping.Authors {
				fmt.Printf("  %s -> %s\n", src, dst)
			}
		}
	}
}
