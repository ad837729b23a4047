package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"tilepath-go/core"
	"tilepath-go/viewer"
	"tilepath-go/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	mapPath := flag.String("map", "", "YAML map file, overrides grid.map_file")
	view := flag.Bool("view", false, "show the terminal viewer")
	ticks := flag.Int("ticks", 0, "stop after this many ticks, 0 runs until interrupted")
	snapshotPath := flag.String("snapshot", "", "write the final state as JSON to this file")
	exportMap := flag.String("export-map", "", "write the grid as a YAML map file and exit")
	flag.Parse()

	cm, err := core.NewConfigManager(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	config := cm.GetConfig()
	if *mapPath != "" {
		abs, err := filepath.Abs(*mapPath)
		if err != nil {
			log.Fatalf("failed to resolve map path: %v", err)
		}
		config.Grid.MapFile = abs
	}
	if *view {
		config.Viewer.Enabled = true
	}

	logFile := config.Logging.File
	if logFile == "" && config.Viewer.Enabled {
		logFile = "tilepath.log"
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	sim, err := NewSimulation(cm)
	if err != nil {
		log.Fatalf("failed to create simulation: %v", err)
	}
	defer sim.Close()

	if *exportMap != "" {
		if err := sim.SaveMap(*exportMap); err != nil {
			log.Fatalf("failed to export map: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if files := sim.WatchedFiles(); len(files) > 0 {
		watcher, err := core.NewWatcher(files...)
		if err != nil {
			log.Printf("hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
			go sim.WatchFiles(ctx, watcher)
		}
	}

	if config.Web.Enabled {
		hub := web.NewHub(sim)
		sim.SetHub(hub)
		addr := net.JoinHostPort(config.Web.Host, strconv.Itoa(config.Web.Port))
		go func() {
			if err := web.StartServer(ctx, addr, hub); err != nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	if config.Viewer.Enabled {
		runViewer(ctx, stop, sim, config, *ticks)
	} else {
		sim.Run(ctx, *ticks)
	}

	if *snapshotPath != "" {
		if err := sim.SaveSnapshot(*snapshotPath); err != nil {
			log.Printf("%v", err)
		}
	}
}

func runViewer(ctx context.Context, stop context.CancelFunc, sim *Simulation, config *core.Config, ticks int) {
	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("failed to initialize screen: %v", err)
	}
	defer screen.Fini()

	var sound *viewer.Sound
	if config.Viewer.Sound {
		sound = viewer.NewSound()
		if err := sound.Initialize(); err != nil {
			log.Printf("sound disabled: %v", err)
			sound = nil
		} else {
			defer sound.Close()
		}
	}

	go func() {
		sim.Run(ctx, ticks)
		if ticks > 0 {
			stop()
		}
	}()
	refresh := time.Duration(config.Simulation.TickMS) * time.Millisecond
	if err := viewer.New(screen, sim, sound).Run(ctx, refresh); err != nil {
		log.Printf("viewer: %v", err)
	}
	stop()
}
