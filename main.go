package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/odvcencio/scribe/relay"
	"github.com/odvcencio/scribe/storage"
	"github.com/odvcencio/scribe/web"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "path to YAML config file")
	dbPath := flag.String("db", "", "path to the SQLite database (overrides config)")
	mcpMode := flag.Bool("mcp", false, "serve the MCP tool interface over stdio instead of HTTP")
	verbose := flag.Int("v", 1, "log verbosity")
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configPath, *addr, *dbPath, *mcpMode); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, addr, dbPath string, mcpMode bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	upstream := relay.NewClient(cfg.Relay)
	app := newScribeApp(db, upstream)
	defer app.close()

	if mcpMode {
		return runMCP(app)
	}

	srv := web.NewServer(app)
	app.srv = srv

	mux := http.NewServeMux()
	relay.NewServer(upstream).Register(mux)
	mux.Handle("/", srv)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	fmt.Printf("Scribe: http://localhost%s\n", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
