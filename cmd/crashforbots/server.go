package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/lox/crashforbots/internal/bank"
	"github.com/lox/crashforbots/internal/game"
	"github.com/lox/crashforbots/internal/server"
	"github.com/lox/crashforbots/internal/server/roundhistory"
)

// ServerCmd runs the WebSocket server and round engine.
type ServerCmd struct {
	Config   string `short:"c" default:"crashforbots.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Listen address as host:port (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply command line overrides
	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port in addr %q: %w", c.Addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = portNum
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.Server.LogFile = c.LogFile
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	validator, err := cfg.BuildValidator()
	if err != nil {
		return fmt.Errorf("failed to build validator: %w", err)
	}

	treasury := bank.New(cfg.Game.HouseFloat)
	engine := game.NewEngine(treasury,
		game.WithLogger(logger),
		game.WithRefundWindow(cfg.GetRefundWindow()),
	)

	wsServer := server.NewServer(cfg.GetListenAddress(), logger)
	gameService := server.NewGameService(wsServer, server.GameServiceConfig{
		Engine:        engine,
		Bank:          treasury,
		Validator:     validator,
		DepositOnAuth: cfg.Game.DepositOnAuth,
	}, logger)
	wsServer.SetGameService(gameService)

	var historyManager *roundhistory.Manager
	if cfg.History.Enabled {
		recorder, err := roundhistory.NewRecorder(roundhistory.Config{
			Dir:            cfg.History.Dir,
			FlushThreshold: cfg.History.FlushThreshold,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create round history recorder: %w", err)
		}
		engine.EventBus().Subscribe(roundhistory.NewCollector(recorder, logger))
		historyManager = roundhistory.NewManager(recorder, logger, cfg.GetFlushInterval())
	}

	logger.Info("Starting crash server",
		"addr", cfg.GetListenAddress(),
		"authMode", cfg.Auth.Mode,
		"refundWindow", cfg.GetRefundWindow(),
		"houseFloat", cfg.Game.HouseFloat,
		"depositOnAuth", cfg.Game.DepositOnAuth,
		"historyEnabled", cfg.History.Enabled)

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		logger.Info("Shutting down server...")
		_ = wsServer.Stop()
		if historyManager != nil {
			historyManager.Shutdown()
		}
		closeLog()
		os.Exit(0)
	}()

	// Start server (this blocks)
	if err := wsServer.Start(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// setupLogger builds the process logger from config values. An empty
// logFile logs to stderr.
func setupLogger(level, logFile string) (*log.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeLog := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeLog = func() { _ = f.Close() }
	}

	logger := log.New(out)
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger, closeLog, nil
}
