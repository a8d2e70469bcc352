// Package main provides rolld, the dice roll daemon. It serves the Telnet
// roll console and the dice.v1.DiceService gRPC API from one shared roller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/diceroll/internal/config"
	"github.com/cory-johannsen/diceroll/internal/dice"
	"github.com/cory-johannsen/diceroll/internal/frontend/handlers"
	"github.com/cory-johannsen/diceroll/internal/frontend/telnet"
	"github.com/cory-johannsen/diceroll/internal/observability"
	"github.com/cory-johannsen/diceroll/internal/preset"
	"github.com/cory-johannsen/diceroll/internal/rollservice"
	"github.com/cory-johannsen/diceroll/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and DICE_* environment")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting roll daemon",
		zap.Bool("telnet", cfg.Telnet.Enabled),
		zap.Bool("grpc", cfg.GRPC.Enabled),
		zap.String("source", cfg.Dice.Source),
	)

	src, err := dice.NewSource(cfg.Dice.Source, cfg.Dice.Seed)
	if err != nil {
		logger.Fatal("creating randomness source", zap.Error(err))
	}
	roller := dice.NewLoggedRoller(src, logger, cfg.Dice.MaxDice)

	var presets *preset.Book
	if cfg.Presets.Path != "" {
		presetStart := time.Now()
		presets, err = preset.LoadFile(cfg.Presets.Path)
		if err != nil {
			logger.Fatal("loading presets", zap.String("path", cfg.Presets.Path), zap.Error(err))
		}
		logger.Info("presets loaded",
			zap.Int("count", presets.Len()),
			zap.Duration("elapsed", time.Since(presetStart)),
		)
	}

	lifecycle := server.NewLifecycle(logger)

	if cfg.Telnet.Enabled {
		rollHandler := handlers.NewRollHandler(roller, presets, logger)
		telnetAcceptor := telnet.NewAcceptor(cfg.Telnet, rollHandler, logger)
		lifecycle.Add("telnet", &server.FuncService{
			StartFn: telnetAcceptor.ListenAndServe,
			StopFn:  telnetAcceptor.Stop,
		})
	}

	if cfg.GRPC.Enabled {
		grpcServer, healthServer := rollservice.NewServer(rollservice.NewService(roller, logger))
		lifecycle.Add("grpc", &server.FuncService{
			StartFn: func() error {
				lis, err := net.Listen("tcp", cfg.GRPC.Addr())
				if err != nil {
					return fmt.Errorf("listening on %s: %w", cfg.GRPC.Addr(), err)
				}
				logger.Info("gRPC server listening",
					zap.String("addr", lis.Addr().String()),
				)
				return grpcServer.Serve(lis)
			},
			StopFn: func() {
				healthServer.SetServingStatus(rollservice.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
				grpcServer.GracefulStop()
			},
		})
	}

	logger.Info("roll daemon initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
