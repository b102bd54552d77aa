package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/pfsparse/internal/config"
	"github.com/ossyrian/pfsparse/internal/logging"
	"github.com/ossyrian/pfsparse/internal/parser"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:          "pfsparse",
	Short:        "Decode PFS zone archives and their WLD fragment graphs to JSON",
	RunE:         parse,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	// i/o
	rootCmd.PersistentFlags().StringP("input", "i", "", "path to the archive (or directory, for pack)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "path to output file")
	rootCmd.Flags().StringP("entry", "e", "", "decode only this WLD entry")
	rootCmd.MarkPersistentFlagRequired("input")

	// archive settings
	rootCmd.PersistentFlags().String("codec", "zlib", "block framing for written archives (zlib, deflate)")
	rootCmd.PersistentFlags().Int("workers", 0, "parallel decode limit (0 means one per CPU)")

	// other opts
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "decode without writing output (validation)")

	viper.BindPFlag("input", rootCmd.PersistentFlags().Lookup("input"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("entry", rootCmd.Flags().Lookup("entry"))
	viper.BindPFlag("codec", rootCmd.PersistentFlags().Lookup("codec"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_output_dir", rootCmd.PersistentFlags().Lookup("log-output-dir"))
	viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(listCmd, extractCmd, packCmd)
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pfsparse"))
		}
		viper.AddConfigPath("/etc/pfsparse")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("PFSPARSE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged flag, env and file settings and sets up logging.
func loadConfig() error {
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogOutputDir); err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	return nil
}

// parse runs the main pfsparse command: it decodes the WLD entries of the
// input archive and writes a JSON report
func parse(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	slog.Info("parsing file", "input", cfg.InputFile)

	report, err := parser.Parse(cmd.Context(), cfg)
	if err != nil {
		slog.Error(fmt.Sprintf("error parsing %s", cfg.InputFile), "error", err)
		return err
	}

	if cfg.OutputFile == "" && !cfg.DryRun {
		return parser.EncodeReport(cmd.OutOrStdout(), report)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
