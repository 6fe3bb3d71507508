package node

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

// unknownType is the metric label for messages with no registered handler.
const unknownType = "unknown"

// HandlerFunc handles a received message addressed to a local node.
type HandlerFunc func(ctx context.Context, f *protocol.Frame) error

// Router routes messages to the handler registered for their type.
//
// Handler errors are contained to the message that caused them: they are
// logged and the message is dropped without a reply. The exception is
// registry.ErrLockUnavailable, which is returned to the caller as the node
// state can no longer be trusted.
type Router struct {
	handlers map[string]HandlerFunc

	metrics *Metrics

	logger log.Logger
}

func NewRouter(logger log.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		metrics:  NewMetrics(),
		logger:   logger.WithSubsystem("router"),
	}
}

// Handle registers the handler for the message type, replacing any existing
// handler.
func (r *Router) Handle(msgType string, h HandlerFunc) {
	r.handlers[msgType] = h
}

// Route passes the message to its handler. Returns an error only if the
// error is fatal.
func (r *Router) Route(ctx context.Context, f *protocol.Frame) error {
	h, ok := r.handlers[f.Type()]
	if !ok {
		// Types are client controlled so only registered types are used as
		// label values.
		r.metrics.MessagesInbound.WithLabelValues(unknownType).Inc()

		if f.IsReply() {
			// Replies we don't track, such as acknowledgements from
			// clients, are expected.
			r.logger.Debug(
				"ignoring reply",
				zap.String("type", f.Type()),
				zap.String("src", f.Src),
			)
			return nil
		}
		return r.handleError(
			f, fmt.Errorf("%w: unsupported type: %s", protocol.ErrProtocol, f.Type()),
		)
	}

	r.metrics.MessagesInbound.WithLabelValues(f.Type()).Inc()

	if err := h(ctx, f); err != nil {
		return r.handleError(f, err)
	}
	return nil
}

// Metrics returns the router metrics.
func (r *Router) Metrics() *Metrics {
	return r.metrics
}

func (r *Router) handleError(f *protocol.Frame, err error) error {
	kind := errorKind(err)
	r.metrics.HandlerErrors.WithLabelValues(kind).Inc()

	fields := []zap.Field{
		zap.String("type", f.Type()),
		zap.String("src", f.Src),
		zap.String("dest", f.Dest),
		zap.Uint64("msg-id", f.MsgID()),
		zap.String("kind", kind),
		zap.Error(err),
	}

	switch kind {
	case "lock_unavailable":
		r.logger.Error("registry unavailable", fields...)
		return err
	case "missing_field":
		r.logger.Warn("dropped message; missing field", fields...)
	case "protocol":
		r.logger.Warn("skipped message; protocol error", fields...)
	case "unknown_node":
		r.logger.Error("message for unknown node", fields...)
	default:
		r.logger.Warn("failed to handle message", fields...)
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, registry.ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, protocol.ErrMissingField):
		return "missing_field"
	case errors.Is(err, protocol.ErrProtocol):
		return "protocol"
	case errors.Is(err, registry.ErrUnknownNode):
		return "unknown_node"
	case errors.Is(err, registry.ErrNodeExists):
		return "node_exists"
	default:
		return "internal"
	}
}
