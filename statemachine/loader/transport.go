package loader

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fereidani/httpdecompressor"
	"github.com/rs/dnscache"
)

const (
	defaultDialTimeout         = 30 * time.Second
	defaultKeepAlive           = 30 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdleConns        = 10
)

// dnsResolver is shared by every transport created by this package.
var dnsResolver = &dnscache.Resolver{}

// NewTransport returns the round tripper used by HTTP sources: a pooled
// transport whose dialer resolves hosts through a DNS cache, wrapped so that
// compressed responses are decoded transparently.
func NewTransport() http.RoundTripper {
	dialer := &net.Dialer{
		Timeout:   defaultDialTimeout,
		KeepAlive: defaultKeepAlive,
	}

	trans := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		// Decoding is done by the decompressor, which knows more encodings.
		DisableCompression: true,
	}

	trans.DialContext = func(ctx context.Context, network string, addr string) (conn net.Conn, err error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := dnsResolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		for _, ip := range ips {
			conn, err = dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				break
			}
		}

		return
	}

	return &decompressor{roundTripper: trans}
}

// RefreshDNS drops unused entries from the DNS cache and refreshes the rest.
// Long-running hosts call it periodically.
func RefreshDNS() {
	dnsResolver.Refresh(true)
}

// decompressor decodes response bodies based on Content-Encoding.
type decompressor struct {
	roundTripper http.RoundTripper
}

var _ http.RoundTripper = (*decompressor)(nil)

func (d *decompressor) RoundTrip(request *http.Request) (*http.Response, error) {
	if request.Header.Get("Accept-Encoding") == "" {
		request = request.Clone(request.Context())
		request.Header.Set("Accept-Encoding", acceptEncoding)
	}

	rsp, err := d.roundTripper.RoundTrip(request)
	if err != nil {
		return rsp, err
	}

	origBody := rsp.Body

	bodyReader, err := httpdecompressor.Reader(rsp)
	if err != nil {
		_ = origBody.Close()

		return nil, err
	}

	if bodyReader == origBody {
		return rsp, nil
	}

	rsp.Body = &decodedBody{Reader: bodyReader, decoder: bodyReader, body: origBody}
	rsp.Header.Del("Content-Encoding")
	rsp.Header.Del("Content-Length")
	rsp.ContentLength = -1

	return rsp, nil
}

const acceptEncoding = "gzip, deflate, br, zstd"

// decodedBody closes the decoder first, then the underlying body.
type decodedBody struct {
	io.Reader

	decoder io.Closer
	body    io.Closer
}

func (b *decodedBody) Close() error {
	return errors.Join(b.decoder.Close(), b.body.Close())
}
