package main

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ChicagoDave/siteplanner/internal/config"
	"github.com/ChicagoDave/siteplanner/internal/server"
)

// outputFlags are shared by the commands that produce a plan or ranking.
type outputFlags struct {
	json   bool
	export string
	out    string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "print the full result as JSON")
	cmd.Flags().StringVar(&o.export, "export", "", "export format: geojson or csv")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the export to a file instead of stdout")
}

// sourceFlags select parcels from the catalog instead of the project file.
type sourceFlags struct {
	db      string
	parcels []string
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.db, "db", "", "SQLite parcel/zoning catalog to read parcels from")
	cmd.Flags().StringSliceVar(&s.parcels, "parcel", nil, "parcel id to plan (repeatable); default is the project selection")
}

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "siteplanner",
		Short:        "Zoning-constrained site plan generation and yield optimization",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(assembleCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(costsCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := config.Load().Level()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func planCmd() *cobra.Command {
	var out outputFlags
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "plan [project-path]",
		Short: "Generate and check the site plan for the project's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), args[0], src, out)
		},
	}
	out.register(cmd)
	src.register(cmd)
	return cmd
}

func optimizeCmd() *cobra.Command {
	var out outputFlags
	var src sourceFlags
	var top, workers int
	cmd := &cobra.Command{
		Use:   "optimize [project-path]",
		Short: "Rank the highest-yield feasible configurations for the site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd.Context(), args[0], src, out, top, workers)
		},
	}
	out.register(cmd)
	src.register(cmd)
	cmd.Flags().IntVar(&top, "top", 0, "number of scenarios to return (negative for all); default from project or 3")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent evaluations; default GOMAXPROCS")
	return cmd
}

func assembleCmd() *cobra.Command {
	var out outputFlags
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "assemble [project-path]",
		Short: "Union the selected parcels and combine their zoning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(cmd.Context(), args[0], src, out)
		},
	}
	out.register(cmd)
	src.register(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project-path]",
		Short: "Validate a project's parcels, zoning and configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func costsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "costs [project-path]",
		Short: "Show the unit-cost table the project is priced against",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCosts(path)
		},
	}
}

func importCmd() *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "import [project-path]",
		Short: "Load a project's parcels and zoning into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				db = config.Load().DBPath
			}
			return runImport(cmd.Context(), args[0], db)
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite catalog path (default $SITEPLANNER_DB)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, db string

	cmd := &cobra.Command{
		Use:   "serve [project-path]",
		Short: "Start the HTTP API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if len(args) == 1 {
				cfg.ProjectDir = args[0]
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if db != "" {
				cfg.DBPath = db
			}

			opts, cleanup, err := serverOptions(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return server.New(opts).Start(ctx, cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $SITEPLANNER_ADDR or :3000)")
	cmd.Flags().StringVar(&db, "db", "", "SQLite catalog path (default $SITEPLANNER_DB)")
	return cmd
}
