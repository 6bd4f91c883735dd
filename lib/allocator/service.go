// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package allocator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/bufmap/lib/codec"
	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/status"
	"github.com/bureau-foundation/bufmap/lib/wire"
)

// Backend allocates one buffer for a validated request. Implemented
// by memback.Device; the service never interprets backend errors
// beyond success/failure.
type Backend interface {
	Allocate(info descriptor.Info) (*handle.Handle, uint32, error)
}

// readTimeout is how long we wait for the client to send its request.
// A well-behaved client sends the request immediately after
// connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response (and the fd
// transfer) to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize is the maximum size of a single CBOR request.
// Descriptor blobs are tens of bytes; 64 KB leaves room for protocol
// growth without letting a client exhaust memory.
const maxRequestSize = 64 * 1024

// defaultMaxCount bounds one allocation batch. It also keeps the fd
// transfer well under the kernel's per-message SCM_RIGHTS cap.
const defaultMaxCount = 16

// Service serves allocation requests on a Unix socket. Each
// connection handles exactly one request-response cycle.
type Service struct {
	backend    Backend
	socketPath string
	logger     *slog.Logger

	// MaxCount bounds the number of buffers in one request. Set
	// before Serve; defaults to defaultMaxCount.
	MaxCount int

	// activeConnections tracks in-flight handlers for graceful
	// shutdown. Serve waits for all active connections to complete
	// before returning.
	activeConnections sync.WaitGroup
}

// NewService creates a service that will listen on socketPath.
func NewService(backend Backend, socketPath string, logger *slog.Logger) *Service {
	return &Service{
		backend:    backend,
		socketPath: socketPath,
		logger:     logger,
		MaxCount:   defaultMaxCount,
	}
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for active handlers to complete. Any stale
// socket file at the configured path is removed before listening,
// and the socket file is removed on return.
func (s *Service) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("allocator: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.socketPath, Net: "unix"})
	if err != nil {
		return fmt.Errorf("allocator: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("allocator listening", "path", s.socketPath)

	for {
		conn, err := listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes one allocation request.
func (s *Service) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting so no framing is needed; LimitReader
	// prevents a malicious client from exhausting memory.
	var req wire.AllocateRequest
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(conn, fmt.Errorf("invalid request: %v: %w", err, status.BadValue))
		return
	}
	if req.Action != wire.ActionAllocate {
		s.writeError(conn, fmt.Errorf("unknown action %q: %w", req.Action, status.Unsupported))
		return
	}
	if req.Count < 1 || req.Count > s.MaxCount {
		s.writeError(conn, fmt.Errorf("count %d outside 1..%d: %w",
			req.Count, s.MaxCount, status.BadValue))
		return
	}

	info, err := descriptor.Decode(descriptor.Descriptor(req.Descriptor))
	if err != nil {
		s.logger.Debug("descriptor rejected", "error", err)
		s.writeError(conn, err)
		return
	}

	handles, stride, err := s.allocateBatch(info, req.Count)
	if err != nil {
		s.logger.Error("allocation failed",
			"width", info.Width, "height", info.Height,
			"format", info.Format, "count", req.Count,
			"error", err)
		s.writeError(conn, err)
		return
	}
	// The kernel duplicated the descriptors into the client during
	// the transfer (or the transfer failed); either way our copies
	// are released here.
	defer closeAll(handles)

	shapes := make([]wire.Handle, len(handles))
	for i, h := range handles {
		shapes[i] = wire.ToWire(h)
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.writeSuccess(conn, wire.AllocateResult{Stride: stride, Buffers: shapes}); err != nil {
		s.logger.Debug("failed to write response", "error", err)
		return
	}
	if err := wire.SendHandles(conn, handles); err != nil {
		s.logger.Debug("fd transfer failed", "error", err)
	}
}

// allocateBatch allocates count buffers all-or-nothing. A failure
// partway rolls back everything already allocated, and a backend
// reporting divergent strides within the batch is treated as a
// failure of the whole batch.
func (s *Service) allocateBatch(info descriptor.Info, count int) ([]*handle.Handle, uint32, error) {
	handles := make([]*handle.Handle, 0, count)
	var stride uint32
	for i := 0; i < count; i++ {
		h, bufStride, err := s.backend.Allocate(info)
		if err != nil {
			closeAll(handles)
			return nil, 0, fmt.Errorf("allocating buffer %d of %d: %v: %w",
				i+1, count, err, status.NoResources)
		}
		if stride == 0 {
			stride = bufStride
		} else if stride != bufStride {
			h.Close()
			closeAll(handles)
			return nil, 0, fmt.Errorf("backend stride diverged within batch (%d then %d): %w",
				stride, bufStride, status.NoResources)
		}
		handles = append(handles, h)
	}
	return handles, stride, nil
}

func closeAll(handles []*handle.Handle) {
	for _, h := range handles {
		h.Close()
	}
}

// writeError sends a failure response carrying both the message and
// the status code. Write failures are logged at debug level — the
// connection is closing regardless.
func (s *Service) writeError(conn *net.UnixConn, reqErr error) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(wire.Response{
		OK:    false,
		Error: reqErr.Error(),
		Code:  status.Of(reqErr),
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Service) writeSuccess(conn *net.UnixConn, result any) error {
	data, err := codec.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	return codec.NewEncoder(conn).Encode(wire.Response{OK: true, Data: data})
}
