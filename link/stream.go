package link

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/audiokit/go-jq6500/internal/pool"
	"github.com/audiokit/go-jq6500/internal/task"
	"github.com/audiokit/go-jq6500/logger"
)

// streamPort adapts a plain io.ReadWriter into a Port by running a background
// read pump and serving deadline-bounded reads from the pumped buffer.
type streamPort struct {
	rw      io.ReadWriter
	taskMgr *task.Manager

	mu       sync.Mutex // guards buf, readErr, deadline
	buf      []byte
	readErr  error
	deadline time.Time

	wmu sync.Mutex // serializes writes

	dataCh   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// FromReadWriter adapts a raw byte handle without deadline support into a
// Port. Reads are served from a background pump so SetReadDeadline behaves
// like net.Conn: an expired deadline fails the Read with an error matching
// os.ErrDeadlineExceeded.
//
// Close closes rw as well when it implements io.Closer. The pump goroutine
// exits once the underlying Read returns an error, so handles that cannot be
// closed should not outlive the process.
func FromReadWriter(rw io.ReadWriter) Port {
	s := &streamPort{
		rw:      rw,
		taskMgr: task.NewManager(context.Background(), logger.GetLogger()),
		dataCh:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	// A fresh manager cannot refuse a task.
	_ = s.taskMgr.Start("linkReadPump", s.pumpTask)

	return s
}

// pumpTask moves bytes from the underlying handle into the buffer. It returns
// false (stop) once the underlying Read fails or the port is closed.
func (s *streamPort) pumpTask() bool {
	chunk := make([]byte, 256)

	n, err := s.rw.Read(chunk)

	s.mu.Lock()
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err != nil && s.readErr == nil {
		s.readErr = err
	}
	s.mu.Unlock()

	s.notify()

	if err != nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// notify wakes at most one blocked reader; readers re-check the buffer state
// themselves.
func (s *streamPort) notify() {
	select {
	case s.dataCh <- struct{}{}:
	default:
	}
}

func (s *streamPort) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			n := copy(p, s.buf)
			s.buf = s.buf[n:]
			s.mu.Unlock()

			return n, nil
		}

		if err := s.readErr; err != nil {
			s.mu.Unlock()

			return 0, err
		}

		deadline := s.deadline
		s.mu.Unlock()

		select {
		case <-s.done:
			return 0, ErrPortClosed
		default:
		}

		if deadline.IsZero() {
			select {
			case <-s.dataCh:
			case <-s.done:
				return 0, ErrPortClosed
			}

			continue
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}

		timer := pool.GetTimer(wait)
		select {
		case <-s.dataCh:
			pool.PutTimer(timer)
		case <-timer.C:
			pool.PutTimer(timer)

			return 0, os.ErrDeadlineExceeded
		case <-s.done:
			pool.PutTimer(timer)

			return 0, ErrPortClosed
		}
	}
}

func (s *streamPort) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrPortClosed
	default:
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	return s.rw.Write(p)
}

// SetReadDeadline sets the read deadline and wakes any blocked reader so it
// re-arms against the new deadline.
func (s *streamPort) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	s.deadline = t
	s.mu.Unlock()

	s.notify()

	return nil
}

func (s *streamPort) Close() error {
	var err error

	s.doneOnce.Do(func() {
		close(s.done)
		s.taskMgr.Stop()

		if closer, ok := s.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})

	return err
}

var _ Port = (*streamPort)(nil)
