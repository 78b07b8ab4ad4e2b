package server

import (
	"bytes"
	"sync"
)

// Buffer pools for reducing allocations

// chunkBufferPool holds 4KB buffers for reading from connections
var chunkBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 4096)
		return &buf
	},
}

// handlerBufferPool holds the output buffers handed to route handlers,
// presized for a status line, a few headers and a small JSON body
var handlerBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

// Pool size limits - buffers larger than this are discarded
const (
	maxPoolBufferSize = 16384 // 16KB
)
