// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger buffers writes to an underlying io.Writer on a channel and
// drains them from a single background goroutine, so a slow sink (a log
// file on a loaded disk) never blocks whichever thread is holding a
// filesystem or VM lock while it logs.
type AsyncLogger struct {
	w    io.Writer
	msgs chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewAsyncLogger starts the drain goroutine immediately. bufferSize bounds
// how many pending writes may queue before new writes are dropped (with a
// warning to stderr) rather than blocking the caller.
func NewAsyncLogger(w io.Writer, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		w:    w,
		msgs: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *AsyncLogger) drain() {
	defer close(a.done)
	for msg := range a.msgs {
		a.w.Write(msg)
	}
}

// Write copies p (the caller retains ownership of the slice) and enqueues
// it for the drain goroutine. If the buffer is full the message is dropped
// rather than blocking the caller.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case a.msgs <- buf:
		return len(p), nil
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
		return len(p), nil
	}
}

// Close stops accepting new writes, waits for the drain goroutine to empty
// the buffer, and closes the underlying writer if it is an io.Closer.
func (a *AsyncLogger) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.msgs)
		<-a.done
		if c, ok := a.w.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
