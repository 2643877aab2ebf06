// Package statuspage synthesizes the minimal HTTP/1.1 error responses the
// proxy sends when it cannot forward a request. Responses are written
// directly to the client connection, carry a short plain-text body, and
// always instruct the client to close the connection.
package statuspage

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
)

var statusMessages = map[int]string{
	// 4xx
	http.StatusBadRequest:                  "Your client has sent a malformed request.",
	http.StatusRequestHeaderFieldsTooLarge: "Your client has sent a request header that is too large to process.",

	// 5xx
	http.StatusNotImplemented:      "The request method is not forwarded by this proxy.",
	http.StatusBadGateway:          "The host you've requested could not be contacted.",
	http.StatusGatewayTimeout:      "The host you've requested did not respond in a timely manner, please try again.",
	http.StatusInternalServerError: "We're sorry, something went wrong!",
}

// StatusMessage returns a short, human-readable description of the given
// HTTP status code.
func StatusMessage(statusCode int) string {
	message := statusMessages[statusCode]
	if message == "" {
		if 400 <= statusCode && statusCode <= 599 {
			return "We're sorry, something went wrong!"
		}

		return "That's all we know."
	}

	return message
}

// Write sends a complete error response for statusCode to the writer.
func Write(w io.Writer, statusCode int) error {
	_, err := w.Write(Render(statusCode))
	return err
}

// Render produces the full byte sequence of an error response for
// statusCode, ready to be written to a client connection.
func Render(statusCode int) []byte {
	body := StatusMessage(statusCode) + "\n"

	head := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\n"+
			"Content-Type: text/plain; charset=utf-8\r\n"+
			"Content-Length: "+strconv.Itoa(len(body))+"\r\n"+
			"Connection: close\r\n"+
			"\r\n",
		statusCode,
		http.StatusText(statusCode),
	)

	return append([]byte(head), body...)
}
