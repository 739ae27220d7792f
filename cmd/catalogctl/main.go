// Command catalogctl is the operator tool for the course catalog: it checks
// dataset files, rebuilds the index, runs searches against the configured
// engine and announces new catalog versions.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/utafrali/coursesearch/internal/config"
)

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "catalogctl:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalogctl",
		Usage: "Manage the course search catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "engine",
				Usage: "search engine backend (elasticsearch or memory)",
			},
			&cli.StringFlag{
				Name:  "es-url",
				Usage: "comma separated Elasticsearch URLs",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Elasticsearch index name",
			},
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "dataset file (JSON or YAML); the bundled dataset when empty",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level for diagnostics on stderr",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			validateCommand(),
			reindexCommand(),
			searchCommand(),
			suggestCommand(),
			publishCommand(),
		},
	}
}

// flagEnv maps global flags onto the service's environment variables.
var flagEnv = map[string]string{
	"engine":  "SEARCH_ENGINE",
	"es-url":  "ELASTICSEARCH_URL",
	"index":   "ELASTICSEARCH_INDEX",
	"catalog": "CATALOG_PATH",
}

// loadConfig reads the service configuration from the process environment
// with global flags taking precedence.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}

	root := cmd.Root()
	for flag, key := range flagEnv {
		if root.IsSet(flag) {
			environ[key] = root.String(flag)
		}
	}

	return config.LoadFrom(environ)
}
