package restforge

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/api"
	"github.com/restforge/restforge/internal/config"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Run executes the application command line: serve, routes and version
// subcommands around the registered models.
func (a *App) Run() {
	rootCmd := &cobra.Command{
		Use:   "restforge",
		Short: "Serve a REST API derived from registered database models",
		Long: `restforge derives a complete REST API from the application's registered
models: CRUD routes, query-string filtering and aggregation, pagination,
a uniform response envelope and OpenAPI documentation.`,
	}

	rootCmd.AddCommand(a.serveCmd(), a.routesCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *App) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Serve(cmd.Context())
		},
	}
}

func (a *App) routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the derived route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !a.registry.Validated() {
				if err := a.registry.ValidateAll(); err != nil {
					return err
				}
			}

			routes := api.Synthesize(a.registry, api.SynthesisOptions{
				ReadOnly:       cfg.API.ReadOnly,
				BlockedMethods: cfg.API.BlockedMethods,
			}, zap.NewNop())
			sort.SliceStable(routes, func(i, j int) bool {
				if routes[i].Pattern != routes[j].Pattern {
					return routes[i].Pattern < routes[j].Pattern
				}
				return routes[i].Method < routes[j].Method
			})

			for _, route := range routes {
				fmt.Printf("%-8s %-40s %s\n",
					methodColor(route.Method).Sprint(route.Method),
					cfg.API.Prefix+route.Pattern,
					route.Model.Name)
			}
			return nil
		},
	}
}

func methodColor(method string) *color.Color {
	switch method {
	case "GET":
		return color.New(color.FgGreen)
	case "POST":
		return color.New(color.FgYellow)
	case "PATCH":
		return color.New(color.FgBlue)
	case "DELETE":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("restforge version: %s\n", Version)
			fmt.Printf("Git commit: %s\n", GitCommit)
			fmt.Printf("Go version: %s\n", runtime.Version())
		},
	}
}
