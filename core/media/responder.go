package media

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"audioshare/metrics"
	"audioshare/storage"
)

const (
	DefaultChunkSize    = 64 * 1024
	DefaultJSONMaxBytes = 4 << 20
)

// ResponderOptions StreamingResponder 参数
type ResponderOptions struct {
	ChunkSize    int
	JSONMaxBytes int64
	Metrics      *metrics.Gateway
}

// Responder 把解析好的目标写成 HTTP 响应
//
// 可被多个请求并发使用，每个请求独占自己的文件句柄。
type Responder struct {
	chunkSize    int
	jsonMaxBytes int64
	metrics      *metrics.Gateway
	bufPool      sync.Pool
}

func NewResponder(opts ResponderOptions) *Responder {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.JSONMaxBytes <= 0 {
		opts.JSONMaxBytes = DefaultJSONMaxBytes
	}

	s := &Responder{
		chunkSize:    opts.ChunkSize,
		jsonMaxBytes: opts.JSONMaxBytes,
		metrics:      opts.Metrics,
	}
	s.bufPool.New = func() any {
		b := make([]byte, s.chunkSize)
		return &b
	}
	return s
}

// Serve 写出状态码、响应头和正文
//
// 返回 ErrStreamAborted 表示客户端中途断开；返回 *IOFailure 且 Started 为 true
// 时响应头已发出，调用方不能再写错误响应。其余错误发生在写头之前。
func (s *Responder) Serve(w http.ResponseWriter, r *http.Request, target ResolvedTarget, rng *ByteRange) error {
	if target.Type.Buffered() && target.Size <= uint64(s.jsonMaxBytes) {
		return s.serveBuffered(w, r, target)
	}

	ctx := r.Context()
	sess, err := openSession(ctx, target, rng, s.metrics)
	if err != nil {
		return err
	}
	defer sess.Close()

	h := w.Header()
	h.Set("Content-Type", target.Type.MIME)
	h.Set("Cache-Control", target.Type.Class.CacheControl())
	if target.Type.Streamable() {
		h.Set("Accept-Ranges", "bytes")
	}
	h.Set("Content-Length", strconv.FormatUint(sess.remaining, 10))

	status := http.StatusOK
	if rng != nil {
		h.Set("Content-Range", rng.ContentRange())
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}

	s.metrics.StreamStarted()
	bufp := s.bufPool.Get().(*[]byte)
	err = sess.pump(ctx, w, *bufp)
	s.bufPool.Put(bufp)

	switch {
	case err == nil:
		s.metrics.StreamFinished(metrics.OutcomeCompleted)
	case errors.Is(err, ErrStreamAborted):
		s.metrics.StreamFinished(metrics.OutcomeAborted)
	default:
		s.metrics.StreamFinished(metrics.OutcomeFailed)
	}
	return err
}

// serveBuffered 小 JSON 文件整体读取并校验后一次写出
func (s *Responder) serveBuffered(w http.ResponseWriter, r *http.Request, target ResolvedTarget) error {
	f, err := target.Root.Backend.Open(r.Context(), target.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return ErrNotFound
		}
		return &IOFailure{Op: "open", Err: err}
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(f, s.jsonMaxBytes+1)); err != nil {
		return &IOFailure{Op: "read", Err: err}
	}
	if int64(buf.Len()) > s.jsonMaxBytes || !json.Valid(buf.Bytes()) {
		return ErrInvalidJSON
	}

	h := w.Header()
	h.Set("Content-Type", target.Type.MIME)
	h.Set("Cache-Control", target.Type.Class.CacheControl())
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	n, err := w.Write(buf.Bytes())
	s.metrics.AddBytes(target.Type.Class.String(), n)
	if err != nil {
		if r.Context().Err() != nil || isClientGone(err) {
			return ErrStreamAborted
		}
		return &IOFailure{Op: "write", Err: err, Started: true}
	}
	return nil
}
