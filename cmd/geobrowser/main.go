package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geo-browser/internal/app"
	"github.com/joeblew999/plat-geo-browser/internal/logging"
	"github.com/joeblew999/plat-geo-browser/internal/server"
)

const version = "0.1.0"

// buildServerURL is the server URL baked in at build time:
//
//	go build -ldflags "-X main.buildServerURL=https://example.org/pygeoapi"
var buildServerURL string

// Options defines all CLI flags and env vars for the browser.
// Flags: --host, --port, --server, --config, --prefs, --prefs-store, --data-dir,
// --catalogs, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_SERVER, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8087"`
	Server     string `doc:"OGC API server URL, overrides persisted and configured values"`
	Config     string `doc:"Path or URL of the static config document (built-in when empty)"`
	Prefs      string `doc:"Preferences TOML file (~/.config/plat-geo-browser/prefs.toml when empty)"`
	PrefsStore string `doc:"Preference store: file, duckdb or memory" default:"file"`
	DataDir    string `doc:"Directory for the DuckDB preference store" default:".data"`
	Catalogs   string `doc:"Directory of <locale>.json message catalogs (built-in when empty)"`
	LogLevel   string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat  string `doc:"Log format: text or json" default:"text"`
}

func newServer(opts *Options) (*server.Server, error) {
	logger := logging.Init(opts.LogLevel, opts.LogFormat, os.Stderr)

	serverURL := opts.Server
	if serverURL == "" {
		serverURL = buildServerURL
	}
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       strconv.Itoa(opts.Port),
		Version:    version,
		ServerURL:  serverURL,
		ConfigDoc:  opts.Config,
		PrefsStore: opts.PrefsStore,
		PrefsPath:  opts.Prefs,
		DataDir:    opts.DataDir,
		CatalogDir: opts.Catalogs,
		Logger:     logger,
	})
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-geo-browser starting...\n")
			fmt.Printf("  Browser: %s/\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			go func() {
				// Failures are reported through /health and the viewer.
				srv.Initialize(context.Background())
			}()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fatal("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "geobrowser"
	cli.Root().Short = "Browse OGC API collections"
	cli.Root().Version = version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.PrefsStore = "memory"
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// collections subcommand: initialise once and print the classified list
	collectionsCmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections of the configured server with their render type",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if err := srv.Initialize(ctx); err != nil {
				fatal("Error: %v", err)
			}

			snap := srv.Orchestrator().Snapshot()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				out, err := json.MarshalIndent(snap.Collections, "", "  ")
				if err != nil {
					fatal("Error: %v", err)
				}
				fmt.Println(string(out))
				return
			}
			printCollections(snap)
		}),
	}
	collectionsCmd.Flags().Bool("json", false, "Output as JSON")
	cli.Root().AddCommand(collectionsCmd)

	cli.Run()
}

func printCollections(s app.Snapshot) {
	fmt.Printf("%s (%s)\n\n", s.Config.ServerURL, s.Locale.Active)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTITLE")
	for _, c := range s.Collections {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.RenderType, c.Title)
	}
	tw.Flush()
}
