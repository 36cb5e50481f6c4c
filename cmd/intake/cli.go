package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/intake/internal/api"
	"github.com/hpungsan/intake/internal/casefile"
	"github.com/hpungsan/intake/internal/config"
	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/logging"
	"github.com/hpungsan/intake/internal/mcp"
	"github.com/hpungsan/intake/internal/metrics"
	"github.com/hpungsan/intake/internal/ops"
	"github.com/hpungsan/intake/internal/person"
	"github.com/hpungsan/intake/internal/relationships"
	"github.com/hpungsan/intake/internal/search"
)

// runtime holds what commands share. The API client is built on first use
// so commands that only read the local case file work without api_base_url.
type runtime struct {
	cfg      *config.Config
	store    casefile.Store
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	client *api.Client
}

func newRuntime(cfg *config.Config, store casefile.Store, logger *zap.Logger) *runtime {
	reg := prometheus.NewRegistry()
	return &runtime{
		cfg:      cfg,
		store:    store,
		logger:   logging.OrNop(logger),
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

func (rt *runtime) apiClient() (*api.Client, error) {
	if rt.client != nil {
		return rt.client, nil
	}
	if rt.cfg.APIBaseURL == "" {
		return nil, errors.NewInvalidRequest("api_base_url is not configured (set INTAKE_API_URL or api_base_url in config.json)")
	}
	c, err := api.New(api.OptionsFromConfig(rt.cfg, rt.logger))
	if err != nil {
		return nil, err
	}
	rt.client = c
	return c, nil
}

// deps wires the operations to the API client and the given store.
func (rt *runtime) deps(store casefile.Store) (ops.Deps, error) {
	c, err := rt.apiClient()
	if err != nil {
		return ops.Deps{}, err
	}
	return ops.Deps{
		Store:        store,
		People:       c,
		Relations:    c,
		Cases:        c,
		Lookup:       relationships.MapLookup(rt.cfg.RelationshipTypes),
		HistoryScope: rt.cfg.HistoryScope,
		Notifier:     ops.LogNotifier{Logger: rt.logger},
		Logger:       rt.logger,
		Metrics:      rt.metrics,
	}, nil
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "intake",
		Usage:   "Screening participant and relationship workflows",
		Version: Version,
		Commands: []*cli.Command{
			createCmd(rt),
			deleteCmd(rt),
			confirmCmd(rt),
			relationshipsCmd(rt),
			saveRelationshipCmd(rt),
			searchCmd(rt),
			clearCmd(rt),
			serveCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func caseFlag() cli.Flag {
	return &cli.StringFlag{Name: "case", Aliases: []string{"c"}, Required: true, Usage: "Screening or snapshot id"}
}

func scopeFlag() cli.Flag {
	return &cli.StringFlag{Name: "scope", Usage: "History scope: screenings|snapshots (default from config)"}
}

// createCmd creates the create command.
func createCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Add a person to a case",
		Flags: []cli.Flag{
			caseFlag(),
			scopeFlag(),
			&cli.StringFlag{Name: "legacy-id", Usage: "Legacy id of an existing person"},
			&cli.StringFlag{Name: "legacy-table", Usage: "Legacy table the person came from"},
			&cli.StringFlag{Name: "first-name"},
			&cli.StringFlag{Name: "middle-name"},
			&cli.StringFlag{Name: "last-name"},
			&cli.StringFlag{Name: "suffix"},
			&cli.StringSliceFlag{Name: "role", Usage: "Participant role (repeatable)"},
			&cli.BoolFlag{Name: "sealed"},
			&cli.BoolFlag{Name: "sensitive"},
		},
		Action: func(c *cli.Context) error {
			deps, err := rt.deps(rt.store)
			if err != nil {
				return outputError(err)
			}

			input := ops.CreateInput{
				CaseID:    c.String("case"),
				Scope:     c.String("scope"),
				Sealed:    c.Bool("sealed"),
				Sensitive: c.Bool("sensitive"),
				Roles:     c.StringSlice("role"),
				Names: person.Names{
					FirstName:  c.String("first-name"),
					MiddleName: c.String("middle-name"),
					LastName:   c.String("last-name"),
					NameSuffix: c.String("suffix"),
				},
			}
			if id, table := c.String("legacy-id"), c.String("legacy-table"); id != "" || table != "" {
				input.LegacyDescriptor = &person.LegacyDescriptor{LegacyID: id, LegacySourceTable: table}
			}

			output, err := ops.CreatePerson(c.Context, deps, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a participant from a case",
		ArgsUsage: "<participant-id>",
		Flags:     []cli.Flag{caseFlag(), scopeFlag()},
		Action: func(c *cli.Context) error {
			deps, err := rt.deps(rt.store)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.DeletePerson(c.Context, deps, ops.DeleteInput{
				CaseID:        c.String("case"),
				ParticipantID: c.Args().First(),
				Scope:         c.String("scope"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// confirmCmd creates the confirm command.
func confirmCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "Clear the newly-created marker on a participant",
		ArgsUsage: "<participant-id>",
		Flags:     []cli.Flag{caseFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.ConfirmPerson(c.Context, rt.store, ops.ConfirmInput{
				CaseID:        c.String("case"),
				ParticipantID: c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// relationshipsCmd creates the relationships command.
func relationshipsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "relationships",
		Usage: "Show the relationship view of a case",
		Flags: []cli.Flag{
			caseFlag(),
			&cli.BoolFlag{Name: "refresh", Aliases: []string{"r"}, Usage: "Fetch relationships before showing them"},
		},
		Action: func(c *cli.Context) error {
			caseID := c.String("case")
			if !c.Bool("refresh") {
				people, err := ops.DisplayPeople(c.Context, rt.store, relationships.MapLookup(rt.cfg.RelationshipTypes), caseID)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"case_id": caseID, "people": people})
			}

			deps, err := rt.deps(rt.store)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.RefreshRelationships(c.Context, deps, caseID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// saveRelationshipCmd creates the save-relationship command.
func saveRelationshipCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "save-relationship",
		Usage: "Save a relationship between two people",
		Flags: []cli.Flag{
			caseFlag(),
			&cli.StringFlag{Name: "id", Usage: "Existing relationship id, when editing"},
			&cli.StringFlag{Name: "client-id", Required: true, Usage: "Legacy id of the focus person"},
			&cli.StringFlag{Name: "relative-id", Required: true, Usage: "Legacy id of the related person"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "Relationship type code"},
			&cli.BoolFlag{Name: "absent-parent"},
			&cli.StringFlag{Name: "same-home", Usage: "Y|N|U"},
		},
		Action: func(c *cli.Context) error {
			deps, err := rt.deps(rt.store)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.SaveRelationship(c.Context, deps, ops.SaveRelationshipInput{
				CaseID: c.String("case"),
				Edit: person.RelationshipEdit{
					ID:                    c.String("id"),
					ClientID:              c.String("client-id"),
					RelativeID:            c.String("relative-id"),
					RelationshipType:      c.String("type"),
					AbsentParentIndicator: c.Bool("absent-parent"),
					SameHomeStatus:        strings.ToUpper(c.String("same-home")),
				},
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search for people",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "pages", Aliases: []string{"p"}, Value: 1, Usage: "Number of pages to load"},
		},
		Action: func(c *cli.Context) error {
			client, err := rt.apiClient()
			if err != nil {
				return outputError(err)
			}
			if c.Int("pages") < 1 {
				return outputError(errors.NewInvalidRequest("pages must be at least 1"))
			}

			m := search.NewManager(client, rt.logger, rt.metrics, rt.cfg.SearchPageSize)
			defer m.Reset()
			session, err := m.StartSearch(c.Context, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return outputError(err)
			}
			for i := 1; i < c.Int("pages") && session.HasMore(); i++ {
				next, err := m.LoadNextPage(c.Context)
				if errors.Is(err, errors.ErrNoMoreResults) {
					break
				}
				if err != nil {
					return outputError(err)
				}
				session = next
			}
			return outputJSON(session)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Drop a case's participants and relationships from the local store",
		Flags: []cli.Flag{caseFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.ClearCase(c.Context, rt.store, rt.logger, c.String("case"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "memory", Usage: "Keep case files in memory instead of the local database"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve /metrics on this address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			store := rt.store
			if c.Bool("memory") {
				store = casefile.NewMemory()
			}
			addr := rt.cfg.MetricsAddr
			if c.IsSet("metrics-addr") {
				addr = c.String("metrics-addr")
			}
			if err := serve(rt, store, addr); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// serve runs the MCP server until stdin closes, with an optional metrics
// listener alongside it.
func serve(rt *runtime, store casefile.Store, metricsAddr string) error {
	deps, err := rt.deps(store)
	if err != nil {
		return err
	}
	client, err := rt.apiClient()
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(rt.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rt.logger.Error("metrics server failed", zap.String("addr", metricsAddr), zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		rt.logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	return mcp.Run(deps, client, rt.cfg, Version)
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if iErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", iErr.Code, iErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
