package proxy

import (
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// sessionLog accumulates the outcome of one session and renders it as a
// single access-log line.
//
// The line consists of the following space separated fields:
//
// - remote address
// - upstream address
// - request information (method, target and protocol)
// - http status code
// - bytes written to the client, response head included
// - total session time in milliseconds
// - message (optional)
//
// All fields are always present except the message. A field whose value is
// unknown or not applicable is rendered as a hyphen. A field containing
// spaces or special characters is rendered as a double-quoted Go string, so
// the output can be parsed programmatically.
type sessionLog struct {
	RemoteAddr string
	Upstream   string
	Request    string
	StatusCode int
	BytesOut   int64
	Started    time.Time

	buffer bytes.Buffer
}

// Write renders the log line to the logger. A nil logger mutes the session.
func (l *sessionLog) Write(logger *log.Logger, err error) {
	if logger == nil {
		return
	}

	l.field(l.RemoteAddr)
	l.field(l.Upstream)
	l.field(l.Request)

	if l.StatusCode == 0 {
		l.field("")
	} else {
		l.field("%d", l.StatusCode)
	}

	l.field("o/%s", humanize.FormatFloat("#,###.", float64(l.BytesOut)))

	elapsed := float64(time.Since(l.Started)) / float64(time.Millisecond)
	l.field("t/%sms", humanize.FormatFloat("#,###.##", elapsed))

	if err != nil {
		l.field(err.Error())
	}

	logger.Println(l.buffer.String())
	l.buffer.Reset()
}

// field appends a value to the line, quoting it if it contains whitespace
// or special characters.
func (l *sessionLog) field(str string, v ...interface{}) {
	if l.buffer.Len() != 0 {
		l.buffer.WriteRune(' ')
	}

	if len(v) != 0 {
		str = fmt.Sprintf(str, v...)
	}

	if str == "" {
		l.buffer.WriteRune('-')
		return
	}

	if strings.ContainsAny(str, " \a\b\f\n\r\t\v\"") {
		l.buffer.WriteString(strconv.Quote(str))
	} else {
		l.buffer.WriteString(str)
	}
}
