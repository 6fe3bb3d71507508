package protocol

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	input := strings.Join([]string{
		`{"src":"c1","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1","n2"]}}`,
		``,
		`not json`,
		`{"src":"c1","dest":"n1","body":{"type":"read","msg_id":2}}`,
	}, "\n")

	r := NewReader(strings.NewReader(input))

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeInit, f.Type())

	init, err := DecodeBody[InitBody](f)
	require.NoError(t, err)
	assert.Equal(t, "n1", init.NodeID)
	assert.Equal(t, []string{"n1", "n2"}, init.NodeIDs)

	// The malformed record fails alone and reading continues.
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrProtocol)
	assert.False(t, IsFatal(err))

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeRead, f.Type())

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.True(t, IsFatal(err))

	assert.Equal(t, uint64(3), r.Received())
}

func TestReader_Oversized(t *testing.T) {
	t.Run("skips oversized record", func(t *testing.T) {
		read := `{"src":"c1","dest":"n1","body":{"type":"read","msg_id":2}}`
		big := `{"src":"c1","dest":"n1","body":{"type":"broadcast","message":1,"pad":"` +
			strings.Repeat("x", 4096) + `"}}`
		input := strings.Join([]string{read, big, read}, "\n")

		r := NewReaderSize(strings.NewReader(input), 256)

		f, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, TypeRead, f.Type())

		_, err = r.Next()
		assert.ErrorIs(t, err, ErrProtocol)
		assert.False(t, IsFatal(err))

		// The remainder of the oversized record is discarded.
		f, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, TypeRead, f.Type())

		_, err = r.Next()
		assert.Equal(t, io.EOF, err)

		assert.Equal(t, uint64(3), r.Received())
		assert.Equal(t, uint64(1), r.Oversized())
	})

	t.Run("oversized final record", func(t *testing.T) {
		r := NewReaderSize(strings.NewReader(strings.Repeat("x", 1024)), 16)

		_, err := r.Next()
		assert.ErrorIs(t, err, ErrProtocol)

		_, err = r.Next()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("record larger than read buffer", func(t *testing.T) {
		pad := strings.Repeat("x", 3*readBufferSize)
		input := `{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":1,"echo":"` +
			pad + `"}}` + "\r\n"

		r := NewReader(strings.NewReader(input))

		f, err := r.Next()
		require.NoError(t, err)
		echo, err := DecodeBody[EchoBody](f)
		require.NoError(t, err)
		assert.Equal(t, pad, echo.Echo)
	})
}

func TestReader_Register(t *testing.T) {
	r := NewReaderSize(strings.NewReader("{}\n"+strings.Repeat("x", 64)+"\n"), 32)
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		}
	}

	registry := prometheus.NewRegistry()
	r.Register(registry)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		values[family.GetName()] = family.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, values["glomers_transport_records_received_total"])
	assert.Equal(t, 1.0, values["glomers_transport_records_oversized_total"])
}

func TestWriter(t *testing.T) {
	t.Run("send", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		require.NoError(t, w.Send("n1", "c1", &BroadcastReadBody{
			Header: Header{
				Type:      TypeReadOK,
				MsgID:     3,
				InReplyTo: 2,
			},
			Messages: []uint64{},
		}))
		assert.Equal(t, uint64(1), w.Sent())

		registry := prometheus.NewRegistry()
		w.Register(registry)
		families, err := registry.Gather()
		require.NoError(t, err)
		require.Len(t, families, 1)
		assert.Equal(t, "glomers_transport_records_sent_total", families[0].GetName())
		assert.Equal(t, 1.0, families[0].GetMetric()[0].GetCounter().GetValue())

		line := buf.String()
		assert.True(t, strings.HasSuffix(line, "\n"))

		f, err := ParseFrame([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, "n1", f.Src)
		assert.Equal(t, "c1", f.Dest)
		assert.Equal(t, TypeReadOK, f.Type())
		assert.Equal(t, uint64(2), f.Header.InReplyTo)
		assert.Contains(t, line, `"messages":[]`)
	})

	t.Run("omits unset header fields", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		require.NoError(t, w.Send("n1", "c1", &Header{Type: TypeInitOK, InReplyTo: 1}))
		assert.NotContains(t, buf.String(), "msg_id")
	})

	t.Run("concurrent sends do not interleave", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		var wg sync.WaitGroup
		for i := 0; i != 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j != 10; j++ {
					assert.NoError(t, w.Send("n1", "n2", &GossipBody{
						Header:     Header{Type: TypeGossip, MsgID: uint64(j + 1)},
						GossipData: []uint64{1, 2, 3},
						OrgMsgID:   1,
						OrgMsgSrc:  "n1",
					}))
				}
			}()
		}
		wg.Wait()

		r := NewReader(&buf)
		n := 0
		for {
			_, err := r.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			n++
		}
		assert.Equal(t, 100, n)
	})
}
