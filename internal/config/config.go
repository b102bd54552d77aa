package config

// Config holds app configuration
type Config struct {
	InputFile  string `mapstructure:"input"`
	OutputFile string `mapstructure:"output"`

	// Entry restricts decoding to one WLD entry. Empty means every .wld entry.
	Entry string `mapstructure:"entry"`

	// ExtractDir is where the extract command writes archive entries
	ExtractDir string `mapstructure:"extract_dir"`

	// Codec is the block framing used when writing archives ("zlib" or "deflate").
	// Reading detects the framing per block.
	Codec string `mapstructure:"codec"`

	// Workers bounds parallel block and entry decoding. 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers"`

	// Versioned stamps packed archives with a dated footer
	Versioned bool `mapstructure:"versioned"`

	DryRun       bool   `mapstructure:"dry_run"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}
