// Command lidar-sim runs the lidar scanner against a scene file and streams
// the resulting particles to renderers over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/lidarscan/internal/config"
	"github.com/banshee-data/lidarscan/internal/version"
)

var (
	configFile   = flag.String("config", config.DefaultConfigPath, "Path to the scanner JSON config")
	watchConfig  = flag.Bool("watch-config", true, "Reload the scanner config when the file changes")
	sceneFile    = flag.String("scene", "config/scene.example.yaml", "Path to the YAML scene description")
	listen       = flag.String("listen", ":8082", "HTTP listen address for the monitor")
	grpcListen   = flag.String("grpc-listen", "localhost:50051", "gRPC listen address for the particle stream")
	maxClients   = flag.Int("max-clients", 5, "Maximum concurrent particle stream clients")
	dbFile       = flag.String("db", "lidarscan.db", "Path to the SQLite pass journal (empty disables it)")
	tickInterval = flag.Duration("tick", 16*time.Millisecond, "Scanner tick interval")
	instantEvery = flag.Duration("instant-every", 0, "Trigger an instant scan at this interval (0 disables)")
	sweepEvery   = flag.Duration("sweep-every", 10*time.Second, "Start a sweep scan at this interval (0 disables)")
	showVersion  = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("lidar-sim %s built %s\n", version.String(), version.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *tickInterval <= 0 {
		log.Fatal("Tick interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim, err := newSimulator(optionsFromFlags())
	if err != nil {
		log.Fatalf("failed to set up simulator: %v", err)
	}

	if err := runAndClose(ctx, sim); err != nil {
		log.Printf("simulator stopped: %v", err)
		stop()
		os.Exit(1)
	}
	log.Print("lidar-sim stopped")
}

func optionsFromFlags() options {
	return options{
		ConfigPath:   *configFile,
		WatchConfig:  *watchConfig,
		ScenePath:    *sceneFile,
		HTTPAddr:     *listen,
		GRPCAddr:     *grpcListen,
		MaxClients:   *maxClients,
		DBPath:       *dbFile,
		Tick:         *tickInterval,
		InstantEvery: *instantEvery,
		SweepEvery:   *sweepEvery,
	}
}
