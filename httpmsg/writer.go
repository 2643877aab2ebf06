package httpmsg

import (
	"fmt"
	"io"
)

// WriteRequestHead writes a request line and header block, including the
// terminating blank line.
func WriteRequestHead(w io.Writer, method, target, proto string, header Header) error {
	if _, err := fmt.Fprintf(w, "%s %s %s\r\n", method, target, proto); err != nil {
		return err
	}

	return writeFields(w, header)
}

// WriteResponseHead writes a status line and header block, including the
// terminating blank line.
func WriteResponseHead(w io.Writer, proto string, statusCode int, reason string, header Header) error {
	if _, err := fmt.Fprintf(w, "%s %d %s\r\n", proto, statusCode, reason); err != nil {
		return err
	}

	return writeFields(w, header)
}

func writeFields(w io.Writer, header Header) error {
	for _, f := range header {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "\r\n")
	return err
}
