// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package allocator

import (
	"fmt"
	"net"
	"time"

	"github.com/bureau-foundation/bufmap/lib/codec"
	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/wire"
)

// Client allocates buffers from an allocator service. The zero value
// is unusable; set SocketPath.
type Client struct {
	// SocketPath is the allocator's Unix socket.
	SocketPath string

	// Timeout bounds the whole request-response cycle. Zero means
	// the default of 30 seconds.
	Timeout time.Duration
}

// Allocate requests count buffers for the given descriptor and
// returns their handles plus the batch's uniform pixel stride. The
// caller owns the returned handles. Failures carry the service's
// status code, recoverable with errors.As/status.Of.
func (c *Client) Allocate(desc descriptor.Descriptor, count int) ([]*handle.Handle, uint32, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: c.SocketPath, Net: "unix"})
	if err != nil {
		return nil, 0, fmt.Errorf("allocator: dialing %s: %w", c.SocketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if err := codec.NewEncoder(conn).Encode(wire.AllocateRequest{
		Action:     wire.ActionAllocate,
		Descriptor: []byte(desc),
		Count:      count,
	}); err != nil {
		return nil, 0, fmt.Errorf("allocator: sending request: %w", err)
	}

	var resp wire.Response
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, 0, fmt.Errorf("allocator: reading response: %w", err)
	}
	if !resp.OK {
		return nil, 0, fmt.Errorf("allocator: %s: %w", resp.Error, resp.Code)
	}

	var result wire.AllocateResult
	if err := codec.Unmarshal(resp.Data, &result); err != nil {
		return nil, 0, fmt.Errorf("allocator: parsing result: %w", err)
	}
	if len(result.Buffers) != count {
		return nil, 0, fmt.Errorf("allocator: got %d buffers, requested %d",
			len(result.Buffers), count)
	}

	handles, err := wire.RecvHandles(conn, result.Buffers)
	if err != nil {
		return nil, 0, fmt.Errorf("allocator: %w", err)
	}
	return handles, result.Stride, nil
}
