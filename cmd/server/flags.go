package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/inferloop/anonsearch/pkg/constants"
)

type Flags struct {
	Port        int
	Host        string
	ConfigFile  string
	LogLevel    string
	LogFormat   string
	MetricsPort int
	Storage     string
	MaxK        int
	AllowedDrop int
	TLSCert     string
	TLSKey      string
	EnableCORS  bool
	Version     bool

	set map[string]bool
}

// IsSet reports whether the flag was given on the command line
func (f *Flags) IsSet(name string) bool {
	return f.set[name]
}

func ParseFlags(args []string) (*Flags, error) {
	flags := &Flags{set: make(map[string]bool)}
	fs := flag.NewFlagSet(constants.AppName+"-server", flag.ContinueOnError)

	fs.IntVar(&flags.Port, "port", constants.DefaultPort, "Server port")
	fs.StringVar(&flags.Host, "host", constants.DefaultHost, "Server host")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to configuration file")
	fs.StringVar(&flags.LogLevel, "log-level", constants.DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&flags.LogFormat, "log-format", constants.DefaultLogFormat, "Log format (json, text)")
	fs.IntVar(&flags.MetricsPort, "metrics-port", constants.DefaultMetricsPort, "Prometheus metrics port (0 disables)")
	fs.StringVar(&flags.Storage, "storage", constants.DefaultStorageType, "Report storage backend (none, redis, s3)")
	fs.IntVar(&flags.MaxK, "max-k", constants.DefaultMaxK, "Default exclusive upper bound for k")
	fs.IntVar(&flags.AllowedDrop, "allowed-drop", constants.DefaultAllowedDrop, "Default maximum number of dropped records")
	fs.StringVar(&flags.TLSCert, "tls-cert", "", "Path to TLS certificate")
	fs.StringVar(&flags.TLSKey, "tls-key", "", "Path to TLS key")
	fs.BoolVar(&flags.EnableCORS, "enable-cors", false, "Answer CORS preflight requests")
	fs.BoolVar(&flags.Version, "version", false, "Show version information")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n", fs.Name())
		fmt.Fprintf(fs.Output(), "\n%s server\n\n", constants.AppDescription)
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		flags.set[f.Name] = true
	})

	return flags, nil
}

func printVersion() {
	info := GetBuildInfo()
	fmt.Fprintf(os.Stdout, "Version: %s\n", info.Version)
	fmt.Fprintf(os.Stdout, "Git Commit: %s\n", info.GitCommit)
	fmt.Fprintf(os.Stdout, "Build Date: %s\n", info.BuildDate)
	fmt.Fprintf(os.Stdout, "Go Version: %s\n", info.GoVersion)
	fmt.Fprintf(os.Stdout, "Platform: %s\n", info.Platform)
}
