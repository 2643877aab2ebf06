package httpmsg_test

import (
	"bytes"

	"github.com/detour-proxy/detour/httpmsg"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("WriteRequestHead", func() {
	It("writes the request line and fields in order", func() {
		var buf bytes.Buffer
		header := httpmsg.Header{
			{Name: "Host", Value: "example.com"},
			{Name: "Accept", Value: "*/*"},
		}

		err := httpmsg.WriteRequestHead(&buf, "GET", "/index.html", "HTTP/1.1", header)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(buf.String()).To(Equal(
			"GET /index.html HTTP/1.1\r\n" +
				"Host: example.com\r\n" +
				"Accept: */*\r\n" +
				"\r\n",
		))
	})
})

var _ = Describe("WriteResponseHead", func() {
	It("writes the status line and fields in order", func() {
		var buf bytes.Buffer
		header := httpmsg.Header{
			{Name: "Content-Length", Value: "0"},
		}

		err := httpmsg.WriteResponseHead(&buf, "HTTP/1.1", 204, "No Content", header)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(buf.String()).To(Equal(
			"HTTP/1.1 204 No Content\r\n" +
				"Content-Length: 0\r\n" +
				"\r\n",
		))
	})
})
