package proxy_test

import (
	"bytes"
	"io"
	"strings"

	"github.com/detour-proxy/detour/httpmsg"
	"github.com/detour-proxy/detour/proxy"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RelayResponse", func() {
	buf := make([]byte, 1024)

	relay := func(raw string) string {
		resp, err := httpmsg.NewReader(strings.NewReader(raw)).ReadResponse()
		Expect(err).ShouldNot(HaveOccurred())

		var out bytes.Buffer
		n, err := proxy.RelayResponse(&out, resp, buf)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 0))
		return out.String()
	}

	It("preserves the status line, reason phrase included", func() {
		out := relay("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")
		Expect(out).To(HavePrefix("HTTP/1.1 404 Not Found\r\n"))
	})

	It("relays a Content-Length body byte for byte", func() {
		out := relay("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
		Expect(out).To(ContainSubstring("Content-Length: 5\r\n"))
		Expect(out).To(HaveSuffix("\r\n\r\nhello"))
	})

	It("relays a read-until-close body in full", func() {
		out := relay("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nstream until the peer closes")
		Expect(out).To(HaveSuffix("\r\n\r\nstream until the peer closes"))
	})

	It("re-encodes a chunked body with the upstream's boundaries", func() {
		out := relay(
			"HTTP/1.1 200 OK\r\n" +
				"Transfer-Encoding: chunked\r\n" +
				"\r\n" +
				"5\r\nhello\r\n0\r\n\r\n",
		)
		Expect(out).To(ContainSubstring("Transfer-Encoding: chunked\r\n"))
		Expect(out).To(HaveSuffix("5\r\nhello\r\n0\r\n\r\n"))
	})

	It("relays trailer fields after the final chunk", func() {
		out := relay(
			"HTTP/1.1 200 OK\r\n" +
				"Transfer-Encoding: chunked\r\n" +
				"\r\n" +
				"3\r\nabc\r\n0\r\nX-Checksum: 900150983cd24fb0\r\n\r\n",
		)
		Expect(out).To(HaveSuffix("0\r\nX-Checksum: 900150983cd24fb0\r\n\r\n"))
	})

	It("fails when the upstream closes before delivering the declared length", func() {
		resp, err := httpmsg.NewReader(strings.NewReader(
			"HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nhello",
		)).ReadResponse()
		Expect(err).ShouldNot(HaveOccurred())

		var out bytes.Buffer
		n, err := proxy.RelayResponse(&out, resp, buf)

		Expect(err).To(Equal(io.ErrUnexpectedEOF))
		Expect(n).To(Equal(int64(5)))
	})

	It("strips hop-by-hop headers from the upstream", func() {
		out := relay(
			"HTTP/1.1 200 OK\r\n" +
				"Keep-Alive: timeout=5\r\n" +
				"Content-Length: 0\r\n" +
				"\r\n",
		)
		Expect(out).ToNot(ContainSubstring("Keep-Alive"))
		Expect(out).To(ContainSubstring("Content-Length: 0\r\n"))
	})

	It("marks the response with a Via header and closes the connection", func() {
		out := relay("HTTP/1.1 204 No Content\r\n\r\n")
		Expect(out).To(ContainSubstring("Via: 1.1 detour\r\n"))
		Expect(out).To(ContainSubstring("Connection: close\r\n"))
	})
})
