package reputation

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// newTransport builds the outbound transport. An empty proxyURL keeps the
// default transport.
func newTransport(proxyURL string, dialTimeout time.Duration) (*http.Transport, error) {
	if proxyURL == "" {
		return nil, nil
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("reputation: parse proxy url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("reputation: proxy url %q has no host", parsed.Redacted())
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: dialTimeout}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)

	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
		}

		socksDialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("reputation: create socks dialer: %w", err)
		}

		transport.Proxy = nil
		if contextDialer, ok := socksDialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socksDialer.Dial(network, addr)
			}
		}

	default:
		return nil, fmt.Errorf("reputation: unsupported proxy scheme %q", parsed.Scheme)
	}

	return transport, nil
}
