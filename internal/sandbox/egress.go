package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"time"
)

// EgressDecision records the outcome of a single egress-proxy authorization
// check, in the (hostname, resolved_ip, decision) triple shape spec.md §4.3
// requires for the sandbox audit entry.
type EgressDecision struct {
	Hostname   string
	ResolvedIP string
	Allowed    bool
	Reason     string
}

// cloudMetadataIPs are well-known cloud-provider metadata endpoints that
// must never be reachable from a sandboxed tool call, regardless of the
// configured allowlist.
var cloudMetadataIPs = []string{
	"169.254.169.254", // AWS/GCP/Azure
	"100.100.100.200", // Alibaba Cloud
	"fd00:ec2::254",   // AWS IMDSv2 IPv6
}

// EgressProxy mediates outbound HTTP(S) requests from a container running
// with NetworkProxy: it authorizes the destination host against an
// allowlist, resolves DNS itself, rejects any resolved IP in a blocked
// range, and dials the resolved IP directly (never the hostname again) so a
// TOCTOU DNS-rebind between check and connect cannot redirect the
// connection to an internal address.
//
// Grounded on the teacher's fetch-with-redirect-revalidation shape in its
// web-fetch tool (resolve, validate, dial, and re-validate on every
// redirect hop) — here generalized into a forward proxy any sandboxed
// container's HTTP client is pointed at via HTTPS_PROXY.
// ipResolver is the subset of *net.Resolver this proxy depends on, broken
// out so tests can inject a fixed set of records (e.g. a mixed
// public/blocked pair simulating a DNS-rebind attempt).
type ipResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type EgressProxy struct {
	allowlist   []string
	extraBlocks []*net.IPNet
	resolver    ipResolver
	onDecision  func(EgressDecision)
}

// NewEgressProxy constructs a proxy restricted to the given host glob
// allowlist, plus any operator-configured extra blocked CIDR ranges.
func NewEgressProxy(allowlist []string, extraBlockedRanges []string, onDecision func(EgressDecision)) (*EgressProxy, error) {
	p := &EgressProxy{
		allowlist:  allowlist,
		resolver:   net.DefaultResolver,
		onDecision: onDecision,
	}
	for _, cidr := range extraBlockedRanges {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse blocked range %q: %w", cidr, err)
		}
		p.extraBlocks = append(p.extraBlocks, ipnet)
	}
	return p, nil
}

// ErrDNSBlocked is returned when every resolved address for a host falls
// inside a blocked range.
var ErrDNSBlocked = errors.New("dns_blocked")

// ErrHostNotAllowlisted is returned when a hostname matches no allowlist
// glob pattern.
var ErrHostNotAllowlisted = errors.New("host not allowlisted")

// Dial authorizes and connects to host:port, implementing steps 1-3 of
// spec.md's egress proxy algorithm: allowlist check, DNS resolution with
// per-IP blocklist enforcement, and a direct dial to the resolved IP.
func (p *EgressProxy) Dial(ctx context.Context, network, hostport string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, err
	}

	ip, err := p.authorize(ctx, host)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// authorize runs steps 1-2 (allowlist + DNS blocklist) and returns the IP to
// dial, emitting an EgressDecision for every outcome, allowed or blocked.
func (p *EgressProxy) authorize(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		// A bare IP was requested: no hostname to allowlist-match, so the
		// blocklist is the only gate.
		if p.blocked(ip) {
			p.record(host, ip.String(), false, "dns_blocked")
			return nil, ErrDNSBlocked
		}
		p.record(host, ip.String(), true, "allow")
		return ip, nil
	}

	if !p.hostAllowed(host) {
		p.record(host, "", false, "host_not_allowlisted")
		return nil, ErrHostNotAllowlisted
	}

	addrs, err := p.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	// A rebind attacker can return a mix of one public and one blocked
	// address hoping only the first gets checked; every resolved address
	// must clear the blocklist before any of them is dialed.
	for _, addr := range addrs {
		if p.blocked(addr.IP) {
			p.record(host, addr.IP.String(), false, "dns_blocked")
			return nil, ErrDNSBlocked
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses returned", host)
	}
	p.record(host, addrs[0].IP.String(), true, "allow")
	return addrs[0].IP, nil
}

func (p *EgressProxy) hostAllowed(host string) bool {
	for _, pattern := range p.allowlist {
		if ok, _ := path.Match(pattern, host); ok {
			return true
		}
	}
	return false
}

// blocked reports whether ip falls in a private, loopback, link-local,
// cloud-metadata, or operator-configured blocked range.
func (p *EgressProxy) blocked(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, meta := range cloudMetadataIPs {
		if ip.Equal(net.ParseIP(meta)) {
			return true
		}
	}
	for _, ipnet := range p.extraBlocks {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func (p *EgressProxy) record(hostname, resolvedIP string, allowed bool, reason string) {
	if p.onDecision == nil {
		return
	}
	p.onDecision(EgressDecision{Hostname: hostname, ResolvedIP: resolvedIP, Allowed: allowed, Reason: reason})
}

// Transport returns an *http.Transport whose DialContext is this proxy's
// Dial. It does not itself check redirects: an http.Client that uses it
// re-authorizes each redirect hop only if its CheckRedirect is set to this
// proxy's CheckRedirect.
func (p *EgressProxy) Transport() *http.Transport {
	return &http.Transport{
		DialContext: p.Dial,
	}
}

// CheckRedirect is installed on an *http.Client using Transport() so that
// every redirect hop is re-authorized before it is followed.
func (p *EgressProxy) CheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	host := req.URL.Hostname()
	if _, err := p.authorize(req.Context(), host); err != nil {
		return fmt.Errorf("redirect to %s refused: %w", host, err)
	}
	return nil
}
