package httpmsg

import (
	"io"
	"strconv"
	"strings"
)

// ChunkedReader decodes a chunked transfer-coded body one chunk at a time,
// exposing the original chunk boundaries so that a forwarder can re-encode
// the body without altering them.
//
// Usage alternates between Next, which frames the following chunk, and Read,
// which drains that chunk's payload. After the terminator chunk has been
// consumed Next returns io.EOF and Trailer holds any trailing header fields.
type ChunkedReader struct {
	r         *Reader
	remaining int64
	started   bool
	done      bool

	// Trailer holds the fields that followed the terminator chunk. It is
	// only populated once Next has returned io.EOF.
	Trailer Header
}

func newChunkedReader(r *Reader) *ChunkedReader {
	return &ChunkedReader{r: r}
}

// Next advances to the next chunk and returns its size. Any unread payload
// from the current chunk is discarded first. It returns io.EOF once the
// zero-size terminator chunk and its trailer have been consumed.
func (cr *ChunkedReader) Next() (int64, error) {
	if cr.done {
		return 0, io.EOF
	}

	if cr.started {
		if cr.remaining > 0 {
			if _, err := io.Copy(io.Discard, cr); err != nil {
				return 0, err
			}
		}
	}
	cr.started = true

	limit := cr.r.maxLineBytes
	line, err := cr.r.readLine(&limit)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, err
	}

	// Chunk extensions are permitted but carry nothing we forward.
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}

	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if err != nil || size < 0 {
		return 0, &ParseError{"malformed chunk size line"}
	}

	if size == 0 {
		if err := cr.readTrailer(); err != nil {
			return 0, err
		}
		cr.done = true
		return 0, io.EOF
	}

	cr.remaining = size
	return size, nil
}

// Read drains the current chunk's payload, returning io.EOF at the chunk
// boundary. Next resets it for the following chunk.
func (cr *ChunkedReader) Read(p []byte) (int, error) {
	if cr.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > cr.remaining {
		p = p[:cr.remaining]
	}

	n, err := cr.r.buf.Read(p)
	cr.remaining -= int64(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return n, err
	}

	if cr.remaining == 0 {
		// The payload of every chunk is followed by a bare CRLF.
		limit := cr.r.maxLineBytes
		end, err := cr.r.readLine(&limit)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return n, err
		}
		if end != "" {
			return n, &ParseError{"chunk payload is not CRLF terminated"}
		}
	}

	return n, nil
}

func (cr *ChunkedReader) readTrailer() error {
	remaining := cr.r.maxHeaderBytes

	for {
		line, err := cr.r.readLine(&remaining)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}

		if line == "" {
			return nil
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return &ParseError{"trailer line is missing a colon"}
		}

		cr.Trailer.Add(line[:colon], strings.TrimSpace(line[colon+1:]))
	}
}
