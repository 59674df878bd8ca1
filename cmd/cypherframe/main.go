// Package main provides the CypherFrame CLI entry point.
//
// The CLI is a local driver for the embeddable engine: it loads a graph
// (JSON export or Badger directory), runs queries, and prints tables.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/cypherframe/pkg/config"
	"github.com/orneryd/cypherframe/pkg/cypher"
	"github.com/orneryd/cypherframe/pkg/graph"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg := config.LoadFromEnv()

	var (
		dataPath   string
		badgerDir  string
		configPath string
		explain    bool
	)

	rootCmd := &cobra.Command{
		Use:   "cypherframe",
		Short: "CypherFrame - Embeddable Property-Graph Query Engine",
		Long: `CypherFrame is an embeddable execution engine for a Cypher-family
property-graph query language, written in Go.

Features:
  • Lazy, schema-bearing row-stream execution
  • Logical and physical planning with optimizer rewrites
  • Pluggable graph models (in-memory, BadgerDB, or your own)
  • Bounded query parse caching`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			return cfg.Validate()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "graph JSON export to load")
	rootCmd.PersistentFlags().StringVar(&badgerDir, "badger", "", "Badger data directory")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("CypherFrame v%s (%s)\n", version, commit)
		},
	})

	runCmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Run a single query and print the result table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := openModel(cfg, dataPath, badgerDir)
			if err != nil {
				return err
			}
			defer model.Close()

			runner := newRunner(model, cfg)
			result, err := runner.Run(context.Background(), args[0], nil)
			if err != nil {
				return err
			}
			if explain {
				fmt.Println(cypher.PrettyPhysical(result.PhysicalPlan()))
			}
			return result.Show(os.Stdout, cfg.Engine.ShowLimit)
		},
	}
	runCmd.Flags().BoolVar(&explain, "explain", false, "print the physical plan before the result")
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Interactive query shell reading from standard input",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := openModel(cfg, dataPath, badgerDir)
			if err != nil {
				return err
			}
			defer model.Close()
			return runShell(newRunner(model, cfg), cfg.Engine.ShowLimit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRunner(model graph.GraphModel, cfg *config.Config) *cypher.Runner {
	return cypher.NewRunner(model,
		cypher.WithParseCacheSize(cfg.Engine.ParseCacheSize),
		cypher.WithOptimizerPasses(cfg.Engine.OptimizerPasses))
}

// openModel selects the graph model: a Badger directory when given,
// otherwise an in-memory model, optionally seeded from a JSON export.
func openModel(cfg *config.Config, dataPath, badgerDir string) (graph.GraphModel, error) {
	if badgerDir == "" {
		badgerDir = cfg.Storage.DataDir
	}

	var model graph.GraphModel
	if badgerDir != "" {
		bg, err := graph.OpenBadgerGraph(graph.BadgerOptions{
			DataDir:    badgerDir,
			SyncWrites: cfg.Storage.SyncWrites,
			Quiet:      true,
		})
		if err != nil {
			return nil, err
		}
		model = bg
		log.Printf("opened badger graph at %s", badgerDir)
	} else {
		model = graph.NewMemoryGraph()
	}

	if dataPath != "" {
		f, err := os.Open(dataPath)
		if err != nil {
			model.Close()
			return nil, fmt.Errorf("opening graph export: %w", err)
		}
		defer f.Close()
		if err := graph.ImportJSON(model, f); err != nil {
			model.Close()
			return nil, fmt.Errorf("importing graph export: %w", err)
		}
		log.Printf("loaded graph export from %s", dataPath)
	}
	return model, nil
}

// runShell reads one query per line until EOF or :quit.
func runShell(runner *cypher.Runner, showLimit int) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	fmt.Println("CypherFrame shell. One query per line; :quit to exit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":exit":
			return nil
		case line == ":plan":
			fmt.Println("usage: prefix a query with :plan to print its physical plan")
			continue
		}

		explainOnly := false
		if strings.HasPrefix(line, ":plan ") {
			explainOnly = true
			line = strings.TrimSpace(strings.TrimPrefix(line, ":plan "))
		}

		result, err := runner.Run(context.Background(), line, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if explainOnly {
			fmt.Println(cypher.PrettyPhysical(result.PhysicalPlan()))
			continue
		}
		if err := result.Show(os.Stdout, showLimit); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
