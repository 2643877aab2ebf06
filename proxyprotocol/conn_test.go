package proxyprotocol_test

import (
	"net"

	"github.com/detour-proxy/detour/proxyprotocol"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	proxyproto "github.com/pires/go-proxyproto"
)

var _ = Describe("Conn", func() {
	var (
		clientEnd net.Conn
		conn      *proxyprotocol.Conn
	)

	BeforeEach(func() {
		var serverEnd net.Conn
		serverEnd, clientEnd = net.Pipe()
		conn = proxyprotocol.NewConn(serverEnd)
	})

	AfterEach(func() {
		conn.Close()
		clientEnd.Close()
	})

	// send writes raw from the balancer's side while the connection is being
	// read; the pipe is unbuffered so the write must run concurrently.
	send := func(raw []byte) {
		go func() {
			defer GinkgoRecover()
			_, err := clientEnd.Write(raw)
			Expect(err).ShouldNot(HaveOccurred())
		}()
	}

	readByte := func() byte {
		buf := make([]byte, 1)
		n, err := conn.Read(buf)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(n).To(Equal(1))
		return buf[0]
	}

	Context("when the peer sends a PROXY protocol v1 header", func() {
		BeforeEach(func() {
			send([]byte("PROXY TCP4 192.0.2.10 198.51.100.1 56324 443\r\nG"))
		})

		It("reports the addresses carried by the header", func() {
			Expect(readByte()).To(Equal(byte('G')))

			Expect(conn.RemoteAddr().String()).To(Equal("192.0.2.10:56324"))
			Expect(conn.LocalAddr().String()).To(Equal("198.51.100.1:443"))
		})
	})

	Context("when the peer sends a PROXY protocol v2 header", func() {
		BeforeEach(func() {
			header := proxyproto.Header{
				Version:            2,
				Command:            proxyproto.PROXY,
				TransportProtocol:  proxyproto.TCPv4,
				SourceAddress:      net.ParseIP("192.0.2.10"),
				SourcePort:         56324,
				DestinationAddress: net.ParseIP("198.51.100.1"),
				DestinationPort:    443,
			}

			go func() {
				defer GinkgoRecover()
				_, err := header.WriteTo(clientEnd)
				Expect(err).ShouldNot(HaveOccurred())

				_, err = clientEnd.Write([]byte("G"))
				Expect(err).ShouldNot(HaveOccurred())
			}()
		})

		It("reports the addresses carried by the header", func() {
			Expect(readByte()).To(Equal(byte('G')))

			Expect(conn.RemoteAddr().String()).To(Equal("192.0.2.10:56324"))
			Expect(conn.LocalAddr().String()).To(Equal("198.51.100.1:443"))
		})
	})

	Context("when the peer sends no PROXY protocol header", func() {
		BeforeEach(func() {
			send([]byte("GET /example.com/ HTTP/1.1\r\n"))
		})

		It("passes the stream through untouched", func() {
			Expect(readByte()).To(Equal(byte('G')))
			Expect(readByte()).To(Equal(byte('E')))
			Expect(readByte()).To(Equal(byte('T')))
		})

		It("reports the socket's own addresses", func() {
			Expect(readByte()).To(Equal(byte('G')))
			Expect(conn.RemoteAddr()).To(Equal(clientEnd.LocalAddr()))
		})
	})
})

var _ = Describe("Listener", func() {
	It("wraps accepted connections without reading from them", func() {
		inner, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ShouldNot(HaveOccurred())
		defer inner.Close()

		listener := proxyprotocol.NewListener(inner)
		Expect(listener.Addr()).To(Equal(inner.Addr()))

		// A client that connects and sends nothing must not block Accept.
		client, err := net.Dial("tcp", inner.Addr().String())
		Expect(err).ShouldNot(HaveOccurred())
		defer client.Close()

		conn, err := listener.Accept()
		Expect(err).ShouldNot(HaveOccurred())
		defer conn.Close()

		Expect(conn).To(BeAssignableToTypeOf(&proxyprotocol.Conn{}))
	})
})
