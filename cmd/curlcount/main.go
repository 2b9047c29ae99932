package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/curlcount/internal/app"
	"github.com/ayusman/curlcount/internal/config"
	"github.com/ayusman/curlcount/internal/hook"
	"github.com/ayusman/curlcount/internal/server"
	"github.com/ayusman/curlcount/internal/store"
	"github.com/ayusman/curlcount/internal/tray"
)

const shutdownTimeout = 5 * time.Second

// options holds command line flags. Flags that are set override the config file.
type options struct {
	configPath string
	addr       string
	camera     int
	source     string
	tray       bool
	start      bool
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "curlcount",
		Short:        "curlcount - arm curl repetition counter",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file (default ~/.curlcount/config.yaml)")
	flags.StringVar(&opts.addr, "addr", config.DefaultAddr, "HTTP listen address")
	flags.IntVar(&opts.camera, "camera", 0, "Camera device id")
	flags.StringVar(&opts.source, "source", config.SourceCamera, "Frame source: camera or remote")
	flags.BoolVar(&opts.tray, "tray", false, "Show the system tray menu")
	flags.BoolVar(&opts.start, "start", false, "Start counting immediately")
	return cmd
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = filepath.Join(config.DefaultDataDir(), "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if flags.Changed("camera") {
		cfg.Camera.Device = opts.camera
	}
	if flags.Changed("source") {
		cfg.Source = opts.source
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, opts *options) error {
	fmt.Println("curlcount - Arm Curl Counter")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()
	fmt.Printf("Using database: %s\n", st.Path())

	a := app.New(app.Config{
		Source:         app.Source(cfg.Source),
		CaptureOptions: cfg.CaptureOptions(),
		Settings: app.Settings{
			Thresholds:    cfg.Counter.Thresholds(),
			AngleMode:     cfg.Counter.AngleMode,
			MinVisibility: cfg.Counter.MinVisibility,
		},
		Store: st,
	})
	closeHooks := startHooks(cfg, a)
	defer func() {
		a.Close()
		// Deliver the final state event from Close before exiting.
		closeHooks()
	}()

	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		App:       a,
	})
	defer srv.Close()

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	serveErr := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	if opts.start {
		if err := a.Start(); err != nil {
			log.Printf("Failed to start counting: %v", err)
		}
	}

	if opts.tray {
		runTray(ctx, stop, a, browserURL(cfg.Server.Addr))
	} else {
		<-ctx.Done()
	}

	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}

// startHooks runs discovered hooks on session events. The returned function
// stops the dispatcher and runs hooks for any events still queued.
func startHooks(cfg *config.Config, a *app.App) func() {
	manager := hook.NewManager(cfg.HooksDir())
	if err := manager.Discover(); err != nil {
		log.Printf("Failed to discover hooks: %v", err)
		return func() {}
	}

	hooks := manager.List()
	if len(hooks) == 0 {
		return func() {}
	}
	for _, h := range hooks {
		log.Printf("Loaded hook %s (%s)", h.Manifest.Name, h.Manifest.Description)
	}

	dispatcher := hook.NewDispatcher(manager, hook.NewExecutor(cfg.HookTimeout()))
	a.Subscribe(dispatcher.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()

	return func() {
		cancel()
		<-done
		dispatcher.Flush(context.Background())
	}
}

// runTray blocks in the tray loop until Quit is clicked or ctx ends.
func runTray(ctx context.Context, quit func(), a *app.App, url string) {
	t := tray.New()
	unsubscribe := a.Subscribe(t.HandleEvent)
	defer unsubscribe()
	snap := a.Snapshot()
	t.HandleEvent(app.Event{Type: app.EventState, Snapshot: &snap})

	t.OnToggle(func() {
		if err := a.Toggle(); err != nil {
			log.Printf("Failed to toggle counting: %v", err)
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	})
	t.OnQuit(quit)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

// browserURL turns a listen address into a local URL.
func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
