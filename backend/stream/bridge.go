package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	v1 "github.com/furisto/switchboard/api/go/v1"
	"github.com/furisto/switchboard/shared"
)

// ContentType is the media type of the bridge output.
const ContentType = "application/x-ndjson; charset=utf-8"

// Source is a pull sequence of agent responses. Next returns io.EOF when the
// sequence ends.
type Source interface {
	Next(ctx context.Context) (*v1.AgentResponse, error)
}

// Encoder turns one response into one newline-terminated record.
type Encoder func(*v1.AgentResponse) ([]byte, error)

// EncodeRecord serializes resp as a single line of JSON followed by '\n'.
func EncodeRecord(resp *v1.AgentResponse) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type bridgeOptions struct {
	encoder Encoder
	metrics *Metrics
}

type BridgeOption func(*bridgeOptions)

func WithEncoder(encoder Encoder) BridgeOption {
	return func(o *bridgeOptions) {
		o.encoder = encoder
	}
}

func WithBridgeMetrics(m *Metrics) BridgeOption {
	return func(o *bridgeOptions) {
		o.metrics = m
	}
}

type reader struct {
	*io.PipeReader
	src Source
}

// Close stops the bridge and, if the source can be closed, abandons it so
// the underlying call is cancelled.
func (r *reader) Close() error {
	err := r.PipeReader.Close()
	if closer, ok := r.src.(io.Closer); ok {
		return errors.Join(err, closer.Close())
	}
	return err
}

// NewReader returns the NDJSON byte stream of src. Every response becomes one
// JSON record terminated by '\n'. The reader reports io.EOF after the last
// record. If pulling or encoding fails, the reader returns that error and no
// further records are produced.
func NewReader(ctx context.Context, src Source, opts ...BridgeOption) io.ReadCloser {
	options := bridgeOptions{
		encoder: EncodeRecord,
	}
	for _, opt := range opts {
		opt(&options)
	}

	pr, pw := io.Pipe()
	go pump(ctx, src, pw, options)

	return &reader{PipeReader: pr, src: src}
}

func pump(ctx context.Context, src Source, pw *io.PipeWriter, options bridgeOptions) {
	// CloseWithError keeps the first error, so this only ends clean streams.
	defer pw.Close()

	for {
		resp, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			slog.DebugContext(ctx, "agent stream pull failed", "error", err)
			pw.CloseWithError(err)
			return
		}

		record, err := options.encoder(resp)
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode agent response",
				"kind", resp.Kind(),
				"error", err,
			)
			pw.CloseWithError(shared.Wrap(shared.ErrorSourceSerialization, err, "failed to encode %s event", resp.Kind()))
			return
		}

		n, err := pw.Write(record)
		options.metrics.AddBytes(n)
		if err != nil {
			// The reader went away.
			return
		}
	}
}

// Copy writes the NDJSON byte stream of src to w, calling flush after every
// record. It returns nil once src is exhausted.
func Copy(ctx context.Context, w io.Writer, src Source, flush func(), opts ...BridgeOption) error {
	body := NewReader(ctx, src, opts...)
	defer body.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write agent stream: %w", werr)
			}
			if flush != nil {
				flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
