package proxy

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v3"
)

// Request 是入站请求的不可变快照。Body 在进入时一次性物化，
// 每次转发尝试各自构造新的 reader，避免第二次尝试读到已耗尽的流。
type Request struct {
	Method   string
	Header   http.Header
	Body     []byte
	Path     string
	RawQuery string
}

// NewBody 为单次尝试返回独立的 body reader。
func (r *Request) NewBody() io.Reader {
	if r == nil || len(r.Body) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(r.Body)
}

// requestFromFiber 拷贝 fasthttp 复用的缓冲区，生成与连接生命周期无关的 Request。
func requestFromFiber(c fiber.Ctx) *Request {
	req := c.Request()
	uri := req.URI()

	header := http.Header{}
	req.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})

	path := string(uri.PathOriginal())
	if path == "" {
		path = "/"
	}

	return &Request{
		Method:   c.Method(),
		Header:   header,
		Body:     append([]byte(nil), req.Body()...),
		Path:     path,
		RawQuery: string(uri.QueryString()),
	}
}
