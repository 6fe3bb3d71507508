// Package node implements a cluster member.
//
// The server reads messages from a protocol.Source, routes each to the
// handler for its type and writes replies and gossip to a protocol.Sender.
// Which handlers are bound depends on the configured workload.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/broadcast"
	"github.com/andydunstall/glomers/node/config"
	"github.com/andydunstall/glomers/node/counter"
	"github.com/andydunstall/glomers/node/kafka"
	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/node/txn"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

type Server struct {
	registry *registry.Registry
	router   *Router
	sender   protocol.Sender

	broadcaster *broadcast.Broadcaster
	counter     *counter.Counter
	kafka       *kafka.Kafka
	store       *txn.Store

	conf *config.Config

	logger log.Logger
}

func NewServer(conf *config.Config, sender protocol.Sender, logger log.Logger) *Server {
	logger = logger.WithSubsystem("node")

	reg := registry.NewRegistry(logger)
	s := &Server{
		registry:    reg,
		router:      NewRouter(logger),
		sender:      sender,
		broadcaster: broadcast.NewBroadcaster(reg, sender, conf.Gossip, logger),
		counter:     counter.NewCounter(reg, sender, conf.Gossip, logger),
		kafka:       kafka.NewKafka(reg, sender, conf.Kafka, logger),
		store:       txn.NewStore(reg, sender, logger),
		conf:        conf,
		logger:      logger,
	}
	s.registerHandlers()
	return s
}

// Run routes messages from src until it is exhausted, in which case nil is
// returned.
//
// Background gossip tasks started while handling messages run until ctx is
// cancelled. Returns an error if src fails or the registry becomes
// unavailable.
func (s *Server) Run(ctx context.Context, src protocol.Source) error {
	s.logger.Info(
		"starting node",
		zap.String("workload", string(s.conf.Node.Workload)),
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		f, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("input closed; stopping node")
				return nil
			}
			if protocol.IsFatal(err) {
				return fmt.Errorf("source: %w", err)
			}

			s.router.Metrics().HandlerErrors.WithLabelValues("protocol").Inc()
			s.logger.Warn("skipped malformed record", zap.Error(err))
			continue
		}

		s.logger.Debug(
			"received message",
			zap.String("type", f.Type()),
			zap.String("src", f.Src),
			zap.String("dest", f.Dest),
		)

		if err := s.router.Route(ctx, f); err != nil {
			return fmt.Errorf("route: %w", err)
		}
	}
}

// Registry returns the servers node registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

func (s *Server) RegisterMetrics(registry *prometheus.Registry) {
	s.router.Metrics().Register(registry)
	s.registry.Metrics().Register(registry)
	s.broadcaster.Metrics().Register(registry)
	s.counter.Metrics().Register(registry)
	s.kafka.Metrics().Register(registry)
	s.store.Metrics().Register(registry)
}

func (s *Server) registerHandlers() {
	s.router.Handle(protocol.TypeInit, s.handleInit)
	s.router.Handle(protocol.TypeEcho, s.handleEcho)
	s.router.Handle(protocol.TypeGenerate, s.handleGenerate)

	switch s.conf.Node.Workload {
	case config.WorkloadKafka:
		s.router.Handle(protocol.TypeSend, s.kafka.HandleSend)
		s.router.Handle(protocol.TypePoll, s.kafka.HandlePoll)
		s.router.Handle(protocol.TypeCommitOffsets, s.kafka.HandleCommitOffsets)
		s.router.Handle(
			protocol.TypeListCommittedOffsets, s.kafka.HandleListCommittedOffsets,
		)
	case config.WorkloadTxn:
		s.router.Handle(protocol.TypeTxn, s.store.HandleTxn)
	case config.WorkloadGCounter:
		s.router.Handle(protocol.TypeAdd, s.counter.HandleAdd)
		s.router.Handle(protocol.TypeRead, s.counter.HandleRead)
		s.router.Handle(protocol.TypeGossip, s.counter.HandleGossip)
	default:
		s.router.Handle(protocol.TypeBroadcast, s.broadcaster.HandleBroadcast)
		s.router.Handle(protocol.TypeRead, s.broadcaster.HandleRead)
		s.router.Handle(protocol.TypeTopology, s.broadcaster.HandleTopology)
		s.router.Handle(protocol.TypeGossip, s.broadcaster.HandleGossip)
		s.router.Handle(protocol.TypeGossipOK, s.broadcaster.HandleGossipOK)
	}
}
