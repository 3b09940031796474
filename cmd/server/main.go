package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proctorhub/backend/internal/config"
	"github.com/proctorhub/backend/internal/detect"
	"github.com/proctorhub/backend/internal/health"
	"github.com/proctorhub/backend/internal/metrics"
	"github.com/proctorhub/backend/internal/mock"
	"github.com/proctorhub/backend/internal/proctor"
	"github.com/proctorhub/backend/internal/store"
	"github.com/proctorhub/backend/internal/watch"
	"github.com/proctorhub/backend/internal/ws"
)

func main() {
	simMode := flag.Bool("sim", false, "Run a simulated camera session")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	hub := ws.NewHub(cfg.Server.MaxConnections)
	hub.SetDropHook(metrics.AlertClientsDropped.Inc)

	service := proctor.New(st, hub)
	server := ws.NewServer(service, hub, health.NewChecker(), cfg.Server.AllowedOrigins, cfg.Server.AuthToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *simMode {
		log.Println("Starting simulated camera session")
		go runSimulation(ctx, cfg, service)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runSimulation starts a session fed by the scripted camera so the
// whole pipeline can be exercised without a real client.
func runSimulation(ctx context.Context, cfg *config.Config, service *proctor.Service) {
	sess, err := service.StartSession(ctx, "Simulated Candidate", "Simulator")
	if err != nil {
		log.Printf("simulation: start session: %v", err)
		return
	}
	log.Printf("Simulation session %s started", sess.ID)

	watcher := watch.New(
		sess.ID,
		mock.NewCamera(time.Second),
		detect.NewHeuristicClassifier(cfg.Detector),
		detect.NewDebouncer(cfg.Detector),
		service,
	)
	if err := watcher.Run(ctx); err != nil {
		log.Printf("simulation: watcher: %v", err)
	}

	if ctx.Err() == nil {
		if _, err := service.StopSession(context.Background(), sess.ID); err != nil {
			log.Printf("simulation: stop session: %v", err)
		}
	}
}
