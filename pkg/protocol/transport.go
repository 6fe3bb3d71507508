package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// DefaultMaxRecordSize is the largest record a Reader accepts by default,
// excluding the trailing newline.
const DefaultMaxRecordSize = 64 << 20

const readBufferSize = 64 * 1024

// Source is a source of received frames.
type Source interface {
	// Next blocks until the next frame is received.
	//
	// Returns io.EOF once the source is exhausted. An error wrapping
	// ErrProtocol means only the current record was malformed and Next may
	// be called again.
	Next() (*Frame, error)
}

// Sender sends messages to other nodes or clients.
type Sender interface {
	Send(src, dest string, body interface{}) error
}

// Reader reads newline-delimited records.
//
// A record longer than the maximum size is discarded up to its newline and
// reported as an ErrProtocol error, so the following records are still read.
type Reader struct {
	r       *bufio.Reader
	maxSize int
	line    []byte

	received  *atomic.Uint64
	oversized *atomic.Uint64
}

func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultMaxRecordSize)
}

// NewReaderSize returns a reader that rejects records over maxSize bytes.
func NewReaderSize(r io.Reader, maxSize int) *Reader {
	return &Reader{
		r:         bufio.NewReaderSize(r, readBufferSize),
		maxSize:   maxSize,
		received:  atomic.NewUint64(0),
		oversized: atomic.NewUint64(0),
	}
}

func (r *Reader) Next() (*Frame, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		r.received.Inc()
		return ParseFrame(line)
	}
}

// Received returns the number of non-empty records read, including
// oversized records.
func (r *Reader) Received() uint64 {
	return r.received.Load()
}

// Oversized returns the number of records discarded for exceeding the
// maximum size.
func (r *Reader) Oversized() uint64 {
	return r.oversized.Load()
}

func (r *Reader) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "transport",
				Name:      "records_received_total",
				Help:      "Total non-empty records read from the input stream.",
			},
			func() float64 { return float64(r.Received()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "transport",
				Name:      "records_oversized_total",
				Help:      "Total records discarded for exceeding the maximum size.",
			},
			func() float64 { return float64(r.Oversized()) },
		),
	)
}

// readLine returns the next line without its line ending. Lines over the
// maximum size are consumed in full and reported as ErrProtocol.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	size := 0
	for {
		chunk, err := r.r.ReadSlice('\n')
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if size == 0 && len(chunk) == 0 {
				return nil, io.EOF
			}
		default:
			return nil, fmt.Errorf("read: %w", err)
		}

		size += len(bytes.TrimRight(chunk, "\r\n"))
		if size <= r.maxSize {
			r.line = append(r.line, chunk...)
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if size > r.maxSize {
			r.received.Inc()
			r.oversized.Inc()
			return nil, fmt.Errorf(
				"%w: record exceeds %d bytes", ErrProtocol, r.maxSize,
			)
		}
		return bytes.TrimRight(r.line, "\r\n"), nil
	}
}

var _ Source = &Reader{}

// Writer writes each message as a single newline-terminated record.
//
// Writer is safe for concurrent use, so the request handler and background
// gossip tasks can share one output stream without interleaving records.
type Writer struct {
	w *bufio.Writer

	// mu protects w.
	mu sync.Mutex

	sent *atomic.Uint64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:    bufio.NewWriter(w),
		sent: atomic.NewUint64(0),
	}
}

func (w *Writer) Send(src, dest string, body interface{}) error {
	b, err := Encode(&Message[interface{}]{
		Src:  src,
		Dest: dest,
		Body: body,
	})
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	w.sent.Inc()

	return nil
}

// Sent returns the number of records written.
func (w *Writer) Sent() uint64 {
	return w.sent.Load()
}

func (w *Writer) Register(registry *prometheus.Registry) {
	registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "glomers",
				Subsystem: "transport",
				Name:      "records_sent_total",
				Help:      "Total records written to the output stream.",
			},
			func() float64 { return float64(w.Sent()) },
		),
	)
}

var _ Sender = &Writer{}

// IsFatal returns whether err from Source.Next means the source can no
// longer be read.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrProtocol)
}
