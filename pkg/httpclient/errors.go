package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrProxyConnect indicates the client failed to connect through
	// the configured proxy.
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrDNS indicates a DNS resolution failure for the target host.
	ErrDNS = errors.New("httpclient: DNS resolution failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("httpclient: timeout")

	// ErrConnRefused indicates the target actively refused the connection.
	ErrConnRefused = errors.New("httpclient: connection refused")

	// ErrInvalidRequest indicates the request could not be constructed.
	ErrInvalidRequest = errors.New("httpclient: invalid request")
)

// Classify wraps a transport error with the matching sentinel while keeping
// the original error in the chain. Unrecognized errors are returned as-is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
		uaErr   x509.UnknownAuthorityError
		hostErr x509.HostnameError
		recErr  tls.RecordHeaderError
		netErr  net.Error
	)
	switch {
	case errors.As(err, &dnsErr):
		return fmt.Errorf("%w: %w", ErrDNS, err)
	case errors.As(err, &certErr), errors.As(err, &uaErr), errors.As(err, &hostErr), errors.As(err, &recErr):
		return fmt.Errorf("%w: %w", ErrTLS, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", ErrConnRefused, err)
	case strings.Contains(strings.ToLower(err.Error()), "proxyconnect"):
		return fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}
	return err
}

// IsNetworkError reports whether err came from the network or transport
// layer rather than from application logic. Requests that could not be
// built never count, even though *url.Error satisfies net.Error.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	for _, s := range []error{ErrDNS, ErrTLS, ErrTimeout, ErrConnRefused, ErrProxyConnect} {
		if errors.Is(err, s) {
			return true
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
