package httpmsg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Default size bounds applied by NewReader.
const (
	DefaultMaxHeaderBytes = 8192
	DefaultMaxLineBytes   = 4096
)

// Request is a parsed HTTP request head plus its framed body.
type Request struct {
	Method string
	Target string
	Proto  string
	Header Header

	// Body is non-nil when the request carries a Content-Length delimited
	// body. Chunked is non-nil when the body uses chunked transfer-coding.
	// At most one of the two is set; both are nil for an empty body.
	Body          io.Reader
	Chunked       *ChunkedReader
	ContentLength int64
}

// Response is a parsed HTTP response head plus its framed body.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Header     Header

	// Body is non-nil for Content-Length delimited bodies and for
	// HTTP/1.0-style read-until-close bodies. Chunked is non-nil when the
	// body uses chunked transfer-coding.
	Body          io.Reader
	Chunked       *ChunkedReader
	ContentLength int64
}

// Reader frames HTTP/1.x messages from a byte stream. It reads incrementally
// and never consumes bytes past the message it returns, so the stream's
// deadline handling stays with the caller.
type Reader struct {
	buf            *bufio.Reader
	maxHeaderBytes int
	maxLineBytes   int
}

// NewReader returns a Reader with the default size bounds.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultMaxHeaderBytes, DefaultMaxLineBytes)
}

// NewReaderSize returns a Reader that rejects header blocks larger than
// maxHeaderBytes and individual lines longer than maxLineBytes.
func NewReaderSize(r io.Reader, maxHeaderBytes, maxLineBytes int) *Reader {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	return &Reader{
		buf:            bufio.NewReader(r),
		maxHeaderBytes: maxHeaderBytes,
		maxLineBytes:   maxLineBytes,
	}
}

// ReadRequest reads one request head and prepares its body for streaming.
//
// io.EOF is returned only if the stream ends before any byte of the request
// is read; a stream that ends mid-message produces io.ErrUnexpectedEOF.
func (r *Reader) ReadRequest() (*Request, error) {
	startLine, header, err := r.readHead()
	if err != nil {
		return nil, err
	}

	tokens := strings.Fields(startLine)
	if len(tokens) != 3 {
		return nil, &ParseError{"request line must have exactly three parts"}
	}

	req := &Request{
		Method: tokens[0],
		Target: tokens[1],
		Proto:  tokens[2],
		Header: header,
	}

	if !strings.HasPrefix(req.Proto, "HTTP/") {
		return nil, &ParseError{"unrecognized protocol version '" + req.Proto + "'"}
	}

	req.ContentLength, err = contentLength(header)
	if err != nil {
		return nil, err
	}

	switch {
	case isChunked(header):
		req.Chunked = newChunkedReader(r)
		req.ContentLength = -1
	case req.ContentLength > 0:
		req.Body = &exactReader{r: r.buf, n: req.ContentLength}
	}

	return req, nil
}

// ReadResponse reads one response head and prepares its body for streaming.
// A response with neither Content-Length nor chunked transfer-coding is
// framed by connection close, as HTTP/1.0-style servers reply.
func (r *Reader) ReadResponse() (*Response, error) {
	startLine, header, err := r.readHead()
	if err != nil {
		return nil, err
	}

	// The reason phrase may itself contain spaces, so the status line is
	// split into at most three parts rather than on every space.
	tokens := strings.SplitN(startLine, " ", 3)
	if len(tokens) < 2 {
		return nil, &ParseError{"status line must have at least two parts"}
	}

	resp := &Response{
		Proto:  tokens[0],
		Header: header,
	}
	if len(tokens) == 3 {
		resp.Reason = tokens[2]
	}

	if !strings.HasPrefix(resp.Proto, "HTTP/") {
		return nil, &ParseError{"unrecognized protocol version '" + resp.Proto + "'"}
	}

	resp.StatusCode, err = strconv.Atoi(tokens[1])
	if err != nil || resp.StatusCode < 100 || resp.StatusCode > 599 {
		return nil, &ParseError{"invalid status code '" + tokens[1] + "'"}
	}

	resp.ContentLength, err = contentLength(header)
	if err != nil {
		return nil, err
	}

	switch {
	case isChunked(header):
		resp.Chunked = newChunkedReader(r)
		resp.ContentLength = -1
	case resp.ContentLength >= 0:
		resp.Body = &exactReader{r: r.buf, n: resp.ContentLength}
	default:
		resp.Body = r.buf
	}

	return resp, nil
}

// readHead reads the start line and header block, up to and including the
// terminating blank line.
func (r *Reader) readHead() (string, Header, error) {
	remaining := r.maxHeaderBytes

	startLine, err := r.readLine(&remaining)
	if err != nil {
		return "", nil, err
	}
	if startLine == "" {
		return "", nil, &ParseError{"empty start line"}
	}

	var header Header
	for {
		line, err := r.readLine(&remaining)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return "", nil, err
		}

		if line == "" {
			return startLine, header, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			return "", nil, &ParseError{"continuation lines are not supported"}
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return "", nil, &ParseError{"header line is missing a colon"}
		}

		name := line[:colon]
		if strings.ContainsAny(name, " \t") {
			return "", nil, &ParseError{"whitespace in header name"}
		}

		header.Add(name, strings.TrimSpace(line[colon+1:]))
	}
}

// readLine reads a single CRLF (or bare LF) terminated line, decrementing
// remaining by the bytes consumed. The terminator is not included in the
// returned string.
func (r *Reader) readLine(remaining *int) (string, error) {
	var acc []byte

	for {
		frag, err := r.buf.ReadSlice('\n')
		acc = append(acc, frag...)

		if err == bufio.ErrBufferFull {
			if len(acc) > r.maxLineBytes {
				return "", &ParseError{"header line is too long"}
			}
			continue
		}
		if err == io.EOF && len(acc) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		if err != nil {
			return "", err
		}

		break
	}

	if len(acc) > r.maxLineBytes {
		return "", &ParseError{"header line is too long"}
	}

	*remaining -= len(acc)
	if *remaining < 0 {
		return "", ErrHeaderTooLarge
	}

	line := strings.TrimSuffix(string(acc), "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// exactReader frames a Content-Length delimited body. A stream that ends
// before the declared length has been delivered yields io.ErrUnexpectedEOF
// rather than a clean EOF, so truncation is never mistaken for completion.
type exactReader struct {
	r io.Reader
	n int64
}

func (er *exactReader) Read(p []byte) (int, error) {
	if er.n <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > er.n {
		p = p[:er.n]
	}

	n, err := er.r.Read(p)
	er.n -= int64(n)
	if err == io.EOF && er.n > 0 {
		err = io.ErrUnexpectedEOF
	}

	return n, err
}

func contentLength(h Header) (int64, error) {
	value, ok := h.Get("Content-Length")
	if !ok {
		return -1, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return -1, &ParseError{"invalid Content-Length '" + value + "'"}
	}

	return n, nil
}

func isChunked(h Header) bool {
	for _, value := range h.Values("Transfer-Encoding") {
		for _, coding := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(coding), "chunked") {
				return true
			}
		}
	}

	return false
}
