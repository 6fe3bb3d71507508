package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	rungroup "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node"
	"github.com/andydunstall/glomers/node/admin"
	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

const shutdownTimeout = 5 * time.Second

func run(conf *config.Config, logger log.Logger) error {
	logger.Info("starting glomers node", zap.Any("conf", conf))

	metricsRegistry := prometheus.NewRegistry()

	reader := protocol.NewReaderSize(os.Stdin, conf.Node.MaxRecordSize)
	reader.Register(metricsRegistry)
	writer := protocol.NewWriter(os.Stdout)
	writer.Register(metricsRegistry)

	server := node.NewServer(conf, writer, logger)
	server.RegisterMetrics(metricsRegistry)

	var group rungroup.Group

	// Message loop.
	nodeCtx, nodeCancel := context.WithCancel(context.Background())
	group.Add(func() error {
		return server.Run(nodeCtx, reader)
	}, func(error) {
		nodeCancel()
		// Unblock the reader.
		os.Stdin.Close()
	})

	// Termination handler.
	signalCtx, signalCancel := context.WithCancel(context.Background())
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	group.Add(func() error {
		select {
		case sig := <-signalCh:
			logger.Info(
				"received shutdown signal",
				zap.String("signal", sig.String()),
			)
			return nil
		case <-signalCtx.Done():
			return nil
		}
	}, func(error) {
		signalCancel()
	})

	// Admin server.
	if conf.Admin.Enabled() {
		adminLn, err := net.Listen("tcp", conf.Admin.BindAddr)
		if err != nil {
			return fmt.Errorf("admin listen: %s: %w", conf.Admin.BindAddr, err)
		}

		adminServer := admin.NewServer(metricsRegistry, logger)
		adminServer.AddStatus("/registry", registry.NewStatus(server.Registry()))

		group.Add(func() error {
			if err := adminServer.Serve(adminLn); err != nil {
				return fmt.Errorf("admin server serve: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), shutdownTimeout,
			)
			defer cancel()

			if err := adminServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to gracefully shutdown admin server", zap.Error(err))
			}

			logger.Info("admin server shut down")
		})
	}

	if err := group.Run(); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}
