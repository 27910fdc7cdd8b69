package media

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"

	"audioshare/metrics"
	"audioshare/storage"
)

// streamSession 持有一次请求唯一的文件句柄
//
// 所有退出路径都必须调用 Close，Close 可重复调用。
type streamSession struct {
	file      storage.File
	remaining uint64
	class     string
	metrics   *metrics.Gateway
	written   uint64
	closeOnce sync.Once
	closeErr  error
}

func openSession(ctx context.Context, target ResolvedTarget, rng *ByteRange, m *metrics.Gateway) (*streamSession, error) {
	f, err := target.Root.Backend.Open(ctx, target.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOFailure{Op: "open", Err: err}
	}

	s := &streamSession{
		file:      f,
		remaining: target.Size,
		class:     target.Type.Class.String(),
		metrics:   m,
	}
	if rng != nil {
		if _, err := f.Seek(int64(rng.Start), io.SeekStart); err != nil {
			_ = f.Close()
			return nil, &IOFailure{Op: "seek", Err: err}
		}
		s.remaining = rng.Length()
	}
	return s, nil
}

// pump 按块把剩余字节写给客户端，每个块之前检查取消信号
func (s *streamSession) pump(ctx context.Context, w io.Writer, buf []byte) error {
	for s.remaining > 0 {
		if ctx.Err() != nil {
			return ErrStreamAborted
		}

		n := uint64(len(buf))
		if n > s.remaining {
			n = s.remaining
		}
		read, rerr := io.ReadFull(s.file, buf[:n])
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				if ctx.Err() != nil || isClientGone(werr) {
					return ErrStreamAborted
				}
				return &IOFailure{Op: "write", Err: werr, Started: true}
			}
			s.remaining -= uint64(read)
			s.written += uint64(read)
			s.metrics.AddBytes(s.class, read)
		}
		if rerr != nil {
			if ctx.Err() != nil || isClientGone(rerr) {
				return ErrStreamAborted
			}
			// 文件在传输中被截断同样归为 IOFailure
			return &IOFailure{Op: "read", Err: rerr, Started: true}
		}
	}
	return nil
}

func (s *streamSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}

// isClientGone 判断错误是否来自客户端断开
func isClientGone(err error) bool {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, http.ErrAbortHandler) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "client disconnected") ||
		strings.Contains(msg, "stream closed")
}
