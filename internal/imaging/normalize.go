package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/mora2/cartoonify/internal/domain"
)

// DefaultMaxImageBytes caps remote fetches when no limit is configured.
const DefaultMaxImageBytes = 10 << 20

const maxRedirects = 10

var errRestrictedHost = errors.New("restricted address")

var (
	dataURLPattern      = regexp.MustCompile(`^data:(image/(png|jpeg|jpg|webp));base64,([A-Za-z0-9+/=]+)$`)
	dataURLLoosePattern = regexp.MustCompile(`^data:([^;,]+);base64,`)
)

// Mode identifies which input shape was used.
type Mode string

const (
	ModeNone    Mode = ""
	ModeDataURL Mode = "data_url"
	ModeRemote  Mode = "remote_url"
	ModeRaw     Mode = "raw_base64"
)

// Input carries the caller's image reference. When several fields are set the
// priority is DataURL, then SourceURL, then RawBase64+MIMEType.
type Input struct {
	DataURL   string
	SourceURL string
	RawBase64 string
	MIMEType  string
}

// Mode reports the input shape that Normalize will use.
func (in Input) Mode() Mode {
	switch {
	case strings.TrimSpace(in.DataURL) != "":
		return ModeDataURL
	case strings.TrimSpace(in.SourceURL) != "":
		return ModeRemote
	case strings.TrimSpace(in.RawBase64) != "":
		return ModeRaw
	default:
		return ModeNone
	}
}

// Options configures a Normalizer.
type Options struct {
	HTTPClient        *http.Client
	MaxImageBytes     int64
	AllowPrivateHosts bool
}

// Normalizer turns caller input into an Artifact. Only the remote branch
// performs I/O.
type Normalizer struct {
	httpClient        *http.Client
	maxBytes          int64
	allowPrivateHosts bool
	lookupIP          func(ctx context.Context, host string) ([]net.IP, error)
}

// NewNormalizer builds a Normalizer. Unless private hosts are allowed every
// redirect hop is re-checked, and the default transport refuses to dial
// restricted addresses.
func NewNormalizer(opts Options) *Normalizer {
	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	n := &Normalizer{
		maxBytes:          maxBytes,
		allowPrivateHosts: opts.AllowPrivateHosts,
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Transport: n.transport()}
	}
	guarded := *client
	if !n.allowPrivateHosts {
		guarded.CheckRedirect = n.checkRedirect
	}
	n.httpClient = &guarded
	return n
}

func (n *Normalizer) transport() http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if n.allowPrivateHosts {
		return t
	}
	// The dialled address is the one checked, so a proxy would defeat it.
	t.Proxy = nil
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guardDial,
	}
	t.DialContext = dialer.DialContext
	return t
}

func (n *Normalizer) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return n.checkPublicHost(req.Context(), req.URL.Hostname())
}

// guardDial runs after DNS resolution, on the address actually connected to.
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: unparsable dial address %q", errRestrictedHost, address)
	}
	if restrictedIP(ip) {
		return fmt.Errorf("%w %s", errRestrictedHost, ip)
	}
	return nil
}

func restrictedIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// Normalize resolves in into an Artifact.
func (n *Normalizer) Normalize(ctx context.Context, in Input) (Artifact, error) {
	switch in.Mode() {
	case ModeDataURL:
		return ParseDataURL(in.DataURL)
	case ModeRemote:
		return n.Fetch(ctx, in.SourceURL)
	case ModeRaw:
		return DecodeRaw(in.RawBase64, in.MIMEType)
	default:
		return Artifact{}, domain.MissingInput("image input required (imageBase64, sourceUrl, or imageData+mimeType)")
	}
}

// ParseDataURL decodes a strict data:image/<type>;base64,<payload> string.
func ParseDataURL(s string) (Artifact, error) {
	s = strings.TrimSpace(s)
	m := dataURLPattern.FindStringSubmatch(s)
	if m == nil {
		if loose := dataURLLoosePattern.FindStringSubmatch(s); loose != nil {
			if _, ok := CanonicalMIME(loose[1]); !ok {
				return Artifact{}, domain.UnsupportedMediaType(loose[1])
			}
		}
		return Artifact{}, domain.InvalidInput("Invalid base64 (expected data:image/*;base64,...)", nil)
	}
	data, err := decodeBase64(m[3])
	if err != nil {
		return Artifact{}, domain.InvalidInput("Invalid base64 payload in data URL", err)
	}
	return newDecodedArtifact(data, m[1])
}

// DecodeRaw decodes bare base64 with a caller-declared MIME type. The type is
// never inferred.
func DecodeRaw(payload, mt string) (Artifact, error) {
	if strings.TrimSpace(mt) == "" {
		return Artifact{}, domain.InvalidInput("mimeType is required with imageData", nil)
	}
	if _, ok := CanonicalMIME(mt); !ok {
		return Artifact{}, domain.UnsupportedMediaType(mt)
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, payload)
	data, err := decodeBase64(payload)
	if err != nil {
		return Artifact{}, domain.InvalidInput("Invalid base64 in imageData", err)
	}
	return newDecodedArtifact(data, mt)
}

// Fetch downloads rawURL and validates its declared content type, falling
// back to the URL extension when the declared type is absent or generic.
func (n *Normalizer) Fetch(ctx context.Context, rawURL string) (Artifact, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Artifact{}, domain.InvalidInput("sourceUrl must be an absolute http(s) URL", err)
	}
	if !n.allowPrivateHosts {
		if err := n.checkPublicHost(ctx, u.Hostname()); err != nil {
			return Artifact{}, domain.InvalidInput("sourceUrl host is not allowed", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Artifact{}, domain.InvalidInput("sourceUrl is not fetchable", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, errRestrictedHost) {
			return Artifact{}, domain.InvalidInput("sourceUrl host is not allowed", err)
		}
		return Artifact{}, domain.InvalidInput("Fetch sourceUrl failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Artifact{}, domain.InvalidInput(fmt.Sprintf("Fetch sourceUrl failed: HTTP %d", resp.StatusCode), nil)
	}

	declared, _ := CanonicalMIME(resp.Header.Get("Content-Type"))
	mt := declared
	if isGenericContentType(declared) {
		inferred, ok := MIMEFromPath(u.Path)
		if !ok {
			return Artifact{}, domain.UnsupportedMediaType(resp.Header.Get("Content-Type"))
		}
		mt = inferred
	}
	if _, ok := CanonicalMIME(mt); !ok {
		return Artifact{}, domain.UnsupportedMediaType(mt)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, n.maxBytes+1))
	if err != nil {
		return Artifact{}, domain.InvalidInput("Fetch sourceUrl failed while reading body", err)
	}
	if int64(len(data)) > n.maxBytes {
		return Artifact{}, domain.PayloadTooLarge(fmt.Sprintf("sourceUrl image exceeds %d bytes", n.maxBytes))
	}
	return newDecodedArtifact(data, mt)
}

func (n *Normalizer) checkPublicHost(ctx context.Context, host string) error {
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := n.lookupIP(ctx, host)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
		ips = resolved
	}
	if len(ips) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, ip := range ips {
		if restrictedIP(ip) {
			return fmt.Errorf("%w %s", errRestrictedHost, ip)
		}
	}
	return nil
}

func newDecodedArtifact(data []byte, mt string) (Artifact, error) {
	if len(data) == 0 {
		return Artifact{}, domain.InvalidInput("image payload is empty", nil)
	}
	a, err := NewArtifact(data, mt)
	if err != nil {
		return Artifact{}, domain.UnsupportedMediaType(mt)
	}
	return a, nil
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if strings.Contains(s, "=") {
		return nil, err
	}
	raw, rawErr := base64.RawStdEncoding.DecodeString(s)
	if rawErr != nil {
		return nil, errors.Join(err, rawErr)
	}
	return raw, nil
}
