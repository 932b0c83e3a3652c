package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/hexarace/config"
	"github.com/wfunc/hexarace/logger"
	"github.com/wfunc/hexarace/monitor"
	"github.com/wfunc/hexarace/persistence"
	"github.com/wfunc/hexarace/room"
	"github.com/wfunc/hexarace/rpc"
	"github.com/wfunc/hexarace/server"
	"github.com/wfunc/hexarace/services"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// logger 尚未初始化，先用默认级别输出
		logger.Init("info")
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Match archive using %s driver", cfg.Database.Driver)

	matches := services.NewMatchService(db, 0)
	matchesDone := make(chan struct{})
	go func() {
		matches.Run(ctx)
		close(matchesDone)
	}()

	mon := monitor.NewMonitor("hexarace")
	go func() {
		if err := mon.StartServer(ctx, cfg.Server.MetricsAddress); err != nil {
			logger.Log.Errorf("Metrics server failed: %v", err)
		}
	}()

	rooms := room.NewRoomManager()

	rpcServer := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewAdminService(rooms, matches))
	go func() {
		if err := rpcServer.Start(ctx); err != nil {
			logger.Log.Errorf("RPC server failed: %v", err)
		}
	}()

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, rooms, mon, matches)
	if err := gameServer.Start(ctx); err != nil {
		logger.Log.Errorf("Failed to start server: %v", err)
		stop()
	}

	<-ctx.Done()
	logger.Log.Info("Shutting down")
	<-matchesDone
}

func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case config.DriverGorm:
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case config.DriverPostgres:
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return persistence.NewMemory(), nil
	}
}
