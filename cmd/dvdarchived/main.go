package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gwlsn/dvdarchive/internal/api"
	"github.com/gwlsn/dvdarchive/internal/archive"
	"github.com/gwlsn/dvdarchive/internal/config"
	"github.com/gwlsn/dvdarchive/internal/copier"
	"github.com/gwlsn/dvdarchive/internal/cut"
	"github.com/gwlsn/dvdarchive/internal/dispatch"
	"github.com/gwlsn/dvdarchive/internal/editstore"
	"github.com/gwlsn/dvdarchive/internal/ingest"
	"github.com/gwlsn/dvdarchive/internal/logger"
	"github.com/gwlsn/dvdarchive/internal/media"
	"github.com/gwlsn/dvdarchive/internal/pool"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config/dvdarchive.yaml)")
	addr := flag.String("addr", "", "Override listen address from config")
	wizard := flag.Bool("wizard", false, "Run the interactive first-run setup wizard")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/dvdarchive.yaml"
		}
	}

	firstRun := false
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		firstRun = true
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("could not load config from %s: %v", cfgPath, err)
	}

	if *wizard || firstRun {
		if err := runWizard(cfg); err != nil {
			log.Fatalf("setup wizard: %v", err)
		}
		if err := cfg.Save(cfgPath); err != nil {
			log.Printf("warning: could not save config to %s: %v", cfgPath, err)
		}
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	logger.Init(cfg.LogLevel)
	printBanner(cfg, cfgPath)

	tool := media.NewFFTool(cfg.FFmpegPath, cfg.FFprobePath, cfg.ISOTool)

	workerPool := pool.New(cfg.Workers)
	dispatcher := dispatch.New(workerPool)
	engine := cut.NewEngine(tool)
	engine.SnapOffsetFrames = cfg.SnapOffsetFrames
	cp := copier.NewCopier(engine)
	ingestor := ingest.New(tool)

	store, err := editstore.Open(cfg.EditStorePath)
	if err != nil {
		log.Fatalf("could not open edit store at %s: %v", cfg.EditStorePath, err)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	metrics := archive.NewMetrics(registry)

	pipeline := archive.New(dispatcher, tool, engine, cp, metrics)
	notifier := api.NewNotifier()
	handler := api.NewHandler(pipeline, dispatcher, store, ingestor, notifier, cfg)

	var exposedRegistry *prometheus.Registry
	if cfg.MetricsEnabled {
		exposedRegistry = registry
	}
	router := api.NewRouter(handler, exposedRegistry)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		fmt.Println()
		color.Yellow("  shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		dispatcher.WaitForFinished()
		workerPool.Stop()
	}()

	color.Cyan("  listening on %s", cfg.ListenAddr)
	fmt.Println()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	<-shutdownDone
	color.Green("  goodbye!")
}

// printBanner matches the teacher's startup banner shape (a bold
// title plus a column of resolved settings), styled with fatih/color
// the way five82-reel's reporter colors its terminal output.
func printBanner(cfg *config.Config, cfgPath string) {
	bold := color.New(color.Bold)
	fmt.Println()
	bold.Println("  dvdarchived")
	fmt.Println("  DVD/Blu-ray preservation and streaming-proxy pipeline")
	fmt.Println()
	fmt.Printf("  config:          %s\n", cfgPath)
	fmt.Printf("  archive root:    %s\n", cfg.ArchiveRoot)
	fmt.Printf("  streaming root:  %s\n", cfg.StreamingRoot)
	fmt.Printf("  edit store:      %s\n", cfg.EditStorePath)
	fmt.Printf("  workers:         %d\n", cfg.Workers)
	fmt.Printf("  disc format:     %s\n", cfg.DefaultDiscFormat)
	fmt.Printf("  hash algo:       %s\n", cfg.DefaultHashAlgo)
	fmt.Println()
}

// runWizard walks a first-time operator through the handful of
// settings worth asking about interactively, grounded on
// lyrebirdaudio-go's charmbracelet/huh menu (internal/menu/menu.go):
// a single form with one group of inputs/selects, run against stdin.
func runWizard(cfg *config.Config) error {
	var discFormat string
	switch cfg.DefaultDiscFormat {
	case "bd":
		discFormat = "bd"
	default:
		discFormat = "dvd"
	}
	hashAlgo := cfg.DefaultHashAlgo
	if hashAlgo == "" {
		hashAlgo = "sha256"
	}

	fmt.Println(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Render("dvdarchive first-run setup"))
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Archive root").
				Description("Where preservation masters and archive disks land").
				Placeholder(cfg.ArchiveRoot).
				Value(&cfg.ArchiveRoot),
			huh.NewInput().
				Title("Streaming root").
				Description("Where streaming proxies land").
				Placeholder(cfg.StreamingRoot).
				Value(&cfg.StreamingRoot),
			huh.NewSelect[string]().
				Title("Default disc format").
				Options(
					huh.NewOption("DVD (4.0 GB folders)", "dvd"),
					huh.NewOption("Blu-ray (25.0 GB folders)", "bd"),
				).
				Value(&discFormat),
			huh.NewSelect[string]().
				Title("Default checksum algorithm").
				Options(
					huh.NewOption("SHA-256", "sha256"),
					huh.NewOption("MD5", "md5"),
				).
				Value(&hashAlgo),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	cfg.DefaultDiscFormat = discFormat
	cfg.DefaultHashAlgo = hashAlgo
	return nil
}
