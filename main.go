package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pedalhost/app"
	"pedalhost/config"
	"pedalhost/midi"
	"pedalhost/render"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	configPath := flag.String("config", "", "config file path (default ~/.config/pedalhost/config.json)")
	useTUI := flag.Bool("tui", false, "run the interactive terminal UI instead of plain console output")
	lcdDev := flag.String("lcd", "", "serial device of the LCD panel (e.g. /dev/ttyACM0)")
	lcdBaud := flag.Int("baud", 115200, "LCD serial baud rate")
	flag.Parse()

	log := newLogger(*debug)
	defer log.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}

	defer midi.CloseDriver()

	watcher := midi.NewWatcher([]midi.Signature{
		{Role: midi.RolePedal, Keywords: cfg.Pedal.Keywords},
		{Role: midi.RoleFootswitch, Keywords: cfg.Footswitch.Keywords},
	}, cfg.PollInterval(), log)

	var tui *render.TUI
	var sink render.Sink
	switch {
	case *useTUI:
		tui = render.NewTUI()
		sink = tui
	case *lcdDev != "":
		lcd, err := render.OpenLCD(*lcdDev, *lcdBaud, log)
		if err != nil {
			log.Fatal("open lcd failed", zap.Error(err))
		}
		defer lcd.Close()
		sink = lcd
	default:
		sink = render.NewConsole(os.Stdout)
	}

	coordinator := app.New(cfg, watcher, sink, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watcher.Run(ctx)

	log.Info("pedalhost running, waiting for devices",
		zap.Strings("pedal", cfg.Pedal.Keywords),
		zap.Strings("footswitch", cfg.Footswitch.Keywords))

	if tui != nil {
		go func() {
			_ = coordinator.Run(ctx)
			tui.Quit()
		}()
		if err := tui.Run(); err != nil {
			log.Fatal("tui failed", zap.Error(err))
		}
		stop()
		return
	}

	if err := coordinator.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal("coordinator failed", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	return log
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
