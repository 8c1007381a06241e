package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-park/weaver/pkg/loader"
)

// flags shared by every command
type config struct {
	files     []string
	tags      []string
	deps      []string
	recursive bool
	strict    bool
	custom    bool
	scope     string
	logLevel  string
}

func main() {
	_ = godotenv.Load()

	var cfg config
	rootCmd := &cobra.Command{
		Use:           "aspect",
		Short:         "Load, validate and query aspect definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(cfg.logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetOutput(os.Stderr)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVarP(&cfg.files, "file", "f", envList("ASPECT_DEFINITIONS"), "definition files")
	flags.StringSliceVar(&cfg.tags, "tags", nil, "comma-separated list of build tags to apply")
	flags.StringSliceVar(&cfg.deps, "deps", nil, "comma-separated list of dependencies to scan")
	flags.BoolVarP(&cfg.recursive, "recursive", "r", true, "load packages recursively")
	flags.BoolVar(&cfg.strict, "strict", envBool("ASPECT_STRICT"), "fail on validation problems")
	flags.BoolVar(&cfg.custom, "custom", false, "keep unknown annotations as attributes")
	flags.StringVar(&cfg.scope, "scope", os.Getenv("ASPECT_SCOPE"), "default scope of unqualified patterns")
	flags.StringVar(&cfg.logLevel, "log-level", envOr("ASPECT_LOG_LEVEL", "info"), "log level")

	rootCmd.AddCommand(
		validateCmd(&cfg),
		matchCmd(&cfg),
		scanCmd(&cfg),
		watchCmd(&cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *config) options(patterns []string) []loader.Option {
	return []loader.Option{
		loader.WithFiles(c.files...),
		loader.WithPatterns(patterns...),
		loader.WithTags(c.tags...),
		loader.WithDeps(c.deps...),
		loader.WithRecursive(c.recursive),
		loader.WithStrict(c.strict),
		loader.WithCustomAnnotations(c.custom),
		loader.WithScope(c.scope),
		loader.WithLogger(logrus.StandardLogger()),
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envList(key string) []string {
	var list []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
