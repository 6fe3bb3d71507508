package node

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/glomers/node/registry"
	"github.com/andydunstall/glomers/nodetest"
	"github.com/andydunstall/glomers/pkg/log"
	"github.com/andydunstall/glomers/pkg/protocol"
)

func TestRouter(t *testing.T) {
	t.Run("route", func(t *testing.T) {
		r := NewRouter(log.NewNopLogger())

		var routed *protocol.Frame
		r.Handle("foo", func(_ context.Context, f *protocol.Frame) error {
			routed = f
			return nil
		})

		f := nodetest.Frame(t, "c1", "n1", `{"type":"foo","msg_id":1}`)
		require.NoError(t, r.Route(context.Background(), f))
		assert.Equal(t, f, routed)
		assert.Equal(t, 1.0, nodetest.CounterValue(t,
			r.Metrics().MessagesInbound.WithLabelValues("foo"),
		))
	})

	t.Run("unsupported type", func(t *testing.T) {
		r := NewRouter(log.NewNopLogger())

		f := nodetest.Frame(t, "c1", "n1", `{"type":"foo","msg_id":1}`)
		require.NoError(t, r.Route(context.Background(), f))
		assert.Equal(t, 1.0, nodetest.CounterValue(t,
			r.Metrics().HandlerErrors.WithLabelValues("protocol"),
		))
	})

	t.Run("unregistered types share a label", func(t *testing.T) {
		r := NewRouter(log.NewNopLogger())

		for i := 0; i != 100; i++ {
			f := nodetest.Frame(
				t, "c1", "n1", fmt.Sprintf(`{"type":"foo-%d","msg_id":1}`, i),
			)
			require.NoError(t, r.Route(context.Background(), f))
		}

		reg := prometheus.NewRegistry()
		r.Metrics().Register(reg)
		families, err := reg.Gather()
		require.NoError(t, err)

		for _, family := range families {
			if family.GetName() != "glomers_router_messages_inbound_total" {
				continue
			}
			require.Len(t, family.GetMetric(), 1)
			assert.Equal(t, "unknown", family.GetMetric()[0].GetLabel()[0].GetValue())
			assert.Equal(t, 100.0, family.GetMetric()[0].GetCounter().GetValue())
		}
	})

	t.Run("unhandled reply", func(t *testing.T) {
		r := NewRouter(log.NewNopLogger())

		f := nodetest.Frame(t, "c1", "n1", `{"type":"foo_ok","in_reply_to":1}`)
		require.NoError(t, r.Route(context.Background(), f))
		assert.Equal(t, 0.0, nodetest.CounterValue(t,
			r.Metrics().HandlerErrors.WithLabelValues("protocol"),
		))
	})

	t.Run("handler errors", func(t *testing.T) {
		tests := []struct {
			err  error
			kind string
		}{
			{fmt.Errorf("foo: %w", protocol.ErrMissingField), "missing_field"},
			{fmt.Errorf("foo: %w", protocol.ErrProtocol), "protocol"},
			{fmt.Errorf("foo: %w", registry.ErrUnknownNode), "unknown_node"},
			{fmt.Errorf("foo: %w", registry.ErrNodeExists), "node_exists"},
			{assert.AnError, "internal"},
		}
		for _, tt := range tests {
			t.Run(tt.kind, func(t *testing.T) {
				r := NewRouter(log.NewNopLogger())
				r.Handle("foo", func(_ context.Context, _ *protocol.Frame) error {
					return tt.err
				})

				f := nodetest.Frame(t, "c1", "n1", `{"type":"foo","msg_id":1}`)
				// The error is contained.
				require.NoError(t, r.Route(context.Background(), f))
				assert.Equal(t, 1.0, nodetest.CounterValue(t,
					r.Metrics().HandlerErrors.WithLabelValues(tt.kind),
				))
			})
		}
	})

	t.Run("lock unavailable", func(t *testing.T) {
		r := NewRouter(log.NewNopLogger())
		r.Handle("foo", func(_ context.Context, _ *protocol.Frame) error {
			return fmt.Errorf("foo: %w", registry.ErrLockUnavailable)
		})

		f := nodetest.Frame(t, "c1", "n1", `{"type":"foo","msg_id":1}`)
		assert.ErrorIs(t, r.Route(context.Background(), f), registry.ErrLockUnavailable)
	})
}
