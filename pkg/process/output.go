package process

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"
)

const maxLineLength = 64 * 1024

// logWriter turns process output into one log entry per line.
type logWriter struct {
	log logrus.FieldLogger
	buf []byte
	mu  sync.Mutex
}

func newLogWriter(log logrus.FieldLogger) *logWriter {
	return &logWriter{log: log}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)

	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}

		w.log.Debug(string(bytes.TrimRight(w.buf[:idx], "\r")))
		w.buf = w.buf[idx+1:]
	}

	if len(w.buf) > maxLineLength {
		w.log.Debug(string(w.buf))
		w.buf = w.buf[:0]
	}

	return len(p), nil
}

// Flush logs a trailing line without newline, if any.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.log.Debug(string(w.buf))
		w.buf = w.buf[:0]
	}
}
