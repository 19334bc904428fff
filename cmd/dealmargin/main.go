// DealMargin CLI - Sales Margin Intelligence Platform
//
// Usage:
//
//	dealmargin recommend --deal deal.json [--customer acme] [--planned-margin 18]
//	dealmargin bom --lines bom.json --target 15
//	dealmargin train --customer acme
//	dealmargin serve --port 8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"deal-margin/api"
	"deal-margin/db/clickhouse"
	"deal-margin/db/postgres"
	"deal-margin/decision/bom"
	"deal-margin/decision/deal"
	"deal-margin/decision/logreg"
	"deal-margin/decision/recommend"
	"deal-margin/decision/scenario"
	"deal-margin/decision/training"
	"deal-margin/pkg/margins"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "dealmargin",
		Usage:   "Sales Margin Intelligence Platform - data-driven margin recommendations for VAR deals",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "dealmargin",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-host",
				Value:   "localhost",
				Usage:   "PostgreSQL host",
				EnvVars: []string{"POSTGRES_HOST"},
			},
			&cli.IntFlag{
				Name:    "postgres-port",
				Value:   5432,
				Usage:   "PostgreSQL port",
				EnvVars: []string{"POSTGRES_PORT"},
			},
			&cli.StringFlag{
				Name:    "postgres-database",
				Value:   "dealmargin",
				Usage:   "PostgreSQL database",
				EnvVars: []string{"POSTGRES_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "postgres-user",
				Value:   "postgres",
				Usage:   "PostgreSQL user",
				EnvVars: []string{"POSTGRES_USER"},
			},
			&cli.StringFlag{
				Name:    "postgres-password",
				Value:   "",
				Usage:   "PostgreSQL password",
				EnvVars: []string{"POSTGRES_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "model-service-url",
				Usage:   "External model service endpoint (optional)",
				EnvVars: []string{"DEALMARGIN_MODEL_SERVICE_URL"},
			},
			&cli.StringFlag{
				Name:    "narrative-url",
				Usage:   "Narrative generation endpoint (optional)",
				EnvVars: []string{"DEALMARGIN_NARRATIVE_URL"},
			},
			&cli.StringFlag{
				Name:    "narrative-api-key",
				Usage:   "Narrative generation API key",
				EnvVars: []string{"DEALMARGIN_NARRATIVE_API_KEY"},
			},
		},

		Commands: []*cli.Command{
			recommendCommand(),
			bomCommand(),
			trainCommand(),
			importCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// RECOMMEND COMMAND
// =============================================================================

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "Recommend a margin for a deal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "deal",
				Aliases:  []string{"d"},
				Usage:    "Path to deal context JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "customer",
				Aliases: []string{"c"},
				Usage:   "Customer ID (enables history and model lookup)",
			},
			&cli.StringFlag{
				Name:  "history",
				Usage: "Path to closed-deal history JSON (bypasses the deal store)",
			},
			&cli.Float64Flag{
				Name:  "planned-margin",
				Usage: "Planned margin %% to compare against the recommendation",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
		},
		Action: runRecommend,
	}
}

func runRecommend(c *cli.Context) error {
	ctx := context.Background()

	var d deal.DealContext
	if err := readJSONFile(c.String("deal"), &d); err != nil {
		return fmt.Errorf("failed to read deal context: %w", err)
	}
	if d.OEMCost <= 0 {
		return fmt.Errorf("deal oem_cost must be positive")
	}

	var history []deal.HistoricalDeal
	var pkg *training.Package
	switch {
	case c.String("history") != "":
		if err := readJSONFile(c.String("history"), &history); err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
	case c.String("customer") != "":
		dealStore, err := openDealStore(c)
		if err != nil {
			return err
		}
		defer dealStore.Close()
		history, err = dealStore.ListClosedDeals(ctx, c.String("customer"))
		if err != nil {
			return fmt.Errorf("failed to load deal history: %w", err)
		}

		modelStore, err := openModelStore(c)
		if err != nil {
			return err
		}
		defer modelStore.Close()
		pkg, err = modelStore.GetPackage(ctx, c.String("customer"))
		if err != nil {
			return fmt.Errorf("failed to load model package: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "📊 Scoring against %d closed deals\n", len(history))

	engine := newEngine(c)
	rec := engine.ComputeRecommendation(ctx, d, history, pkg)

	var cmp *scenario.Comparison
	if planned := c.Float64("planned-margin"); planned > 0 {
		sc := scenario.Compare(d, margins.Percent(planned), rec.SuggestedMarginPct)
		cmp = &sc
	}

	switch c.String("format") {
	case "json":
		return outputJSON(api.RecommendResponse{Recommendation: rec, Scenario: cmp})
	case "markdown":
		return outputRecommendMarkdown(rec, cmp)
	default:
		return outputRecommendTable(rec, cmp)
	}
}

// =============================================================================
// BOM COMMAND
// =============================================================================

func bomCommand() *cli.Command {
	return &cli.Command{
		Name:  "bom",
		Usage: "Allocate a target blended margin across BOM lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "lines",
				Aliases:  []string{"l"},
				Usage:    "Path to BOM lines JSON",
				Required: true,
			},
			&cli.Float64Flag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Target blended margin %%",
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Path to deal context adjustments JSON (optional)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, markdown)",
			},
		},
		Action: runBom,
	}
}

func runBom(c *cli.Context) error {
	var lines []bom.Line
	if err := readJSONFile(c.String("lines"), &lines); err != nil {
		return fmt.Errorf("failed to read BOM lines: %w", err)
	}

	var bomCtx bom.Context
	if path := c.String("context"); path != "" {
		if err := readJSONFile(path, &bomCtx); err != nil {
			return fmt.Errorf("failed to read BOM context: %w", err)
		}
	}
	if target := c.Float64("target"); target > 0 {
		pct := margins.Percent(target)
		bomCtx.TargetBlendedMarginPct = &pct
	}

	alloc := bom.Optimize(lines, bomCtx)

	switch c.String("format") {
	case "json":
		return outputJSON(alloc)
	case "markdown":
		return outputBomMarkdown(alloc)
	default:
		return outputBomTable(alloc)
	}
}

// =============================================================================
// TRAIN COMMAND
// =============================================================================

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Retrain a customer's win-probability model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "customer",
				Aliases:  []string{"c"},
				Usage:    "Customer ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runTrain,
	}
}

func runTrain(c *cli.Context) error {
	ctx := context.Background()

	dealStore, err := openDealStore(c)
	if err != nil {
		return err
	}
	defer dealStore.Close()

	modelStore, err := openModelStore(c)
	if err != nil {
		return err
	}
	defer modelStore.Close()

	pipeline := training.NewPipeline(dealStore, modelStore, logreg.Options{})
	result, err := pipeline.TrainCustomerModel(ctx, c.String("customer"))
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if c.String("format") == "json" {
		return outputJSON(result)
	}
	return outputTrainTable(c.String("customer"), result)
}

// =============================================================================
// IMPORT COMMAND
// =============================================================================

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Bulk-load closed deals for a customer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "customer",
				Aliases:  []string{"c"},
				Usage:    "Customer ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path to closed-deal JSON array",
				Required: true,
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	var deals []deal.HistoricalDeal
	if err := readJSONFile(c.String("file"), &deals); err != nil {
		return fmt.Errorf("failed to read deals: %w", err)
	}
	if len(deals) == 0 {
		return fmt.Errorf("no deals in %s", c.String("file"))
	}

	store, err := openDealStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.BulkInsertDeals(context.Background(), c.String("customer"), deals); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("✅ Imported %d closed deals for %s\n", len(deals), c.String("customer"))
	return nil
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the DealMargin API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"DEALMARGIN_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"DEALMARGIN_CORS_ORIGINS"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	dealStore, err := openDealStore(c)
	if err != nil {
		return err
	}
	defer dealStore.Close()

	modelStore, err := openModelStore(c)
	if err != nil {
		return err
	}
	defer modelStore.Close()

	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Port = c.Int("port")
	apiCfg.CORSOrigins = corsOrigins

	server := api.NewServer(dealStore, modelStore, newEngine(c), apiCfg)

	return server.StartWithGracefulShutdown()
}

// =============================================================================
// WIRING HELPERS
// =============================================================================

func openDealStore(c *cli.Context) (*clickhouse.DealStore, error) {
	cfg := clickhouse.DefaultConfig()
	cfg.Host = c.String("clickhouse-host")
	cfg.Port = c.Int("clickhouse-port")
	cfg.Database = c.String("clickhouse-database")
	cfg.Username = c.String("clickhouse-user")
	cfg.Password = c.String("clickhouse-password")

	store, err := clickhouse.NewDealStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return store, nil
}

func openModelStore(c *cli.Context) (*postgres.ModelStore, error) {
	cfg := postgres.DefaultConfig()
	cfg.Host = c.String("postgres-host")
	cfg.Port = c.Int("postgres-port")
	cfg.Database = c.String("postgres-database")
	cfg.Username = c.String("postgres-user")
	cfg.Password = c.String("postgres-password")

	store, err := postgres.NewModelStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return store, nil
}

func newEngine(c *cli.Context) *recommend.Engine {
	return recommend.NewEngine(recommend.Config{
		ModelServiceURL: c.String("model-service-url"),
		NarrativeURL:    c.String("narrative-url"),
		NarrativeAPIKey: c.String("narrative-api-key"),
	})
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
