package main

import (
	"fmt"
	"io"
	"sync"
)

// lineWriter serializes output from the command and its event listener. Once a write fails,
// every later write returns the same error.
type lineWriter struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w}
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	n, err := l.w.Write(p)
	if err != nil {
		l.err = fmt.Errorf("write output: %w", err)
		return n, l.err
	}
	return n, nil
}

func (l *lineWriter) println(s string) error {
	_, err := fmt.Fprintln(l, s)
	return err
}
