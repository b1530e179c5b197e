package sandbox

import (
	"context"
	"net"
	"testing"
)

func TestEgressProxyBlocksNonAllowlistedHost(t *testing.T) {
	p, err := NewEgressProxy([]string{"*.example.com"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.authorize(context.Background(), "evil.test"); err != ErrHostNotAllowlisted {
		t.Errorf("expected ErrHostNotAllowlisted, got %v", err)
	}
}

func TestEgressProxyBlocksPrivateIP(t *testing.T) {
	p, err := NewEgressProxy([]string{"*"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.authorize(context.Background(), "10.0.0.5"); err != ErrDNSBlocked {
		t.Errorf("expected ErrDNSBlocked for private IP, got %v", err)
	}
}

func TestEgressProxyBlocksCloudMetadataIP(t *testing.T) {
	p, err := NewEgressProxy([]string{"*"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.authorize(context.Background(), "169.254.169.254"); err != ErrDNSBlocked {
		t.Errorf("expected ErrDNSBlocked for cloud metadata IP, got %v", err)
	}
}

func TestEgressProxyAllowsAllowlistedPublicIP(t *testing.T) {
	p, err := NewEgressProxy([]string{"*"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ip, err := p.authorize(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ip.Equal(net.ParseIP("8.8.8.8")) {
		t.Errorf("got %v", ip)
	}
}

func TestEgressProxyRecordsDecisions(t *testing.T) {
	var decisions []EgressDecision
	p, err := NewEgressProxy([]string{"*"}, nil, func(d EgressDecision) {
		decisions = append(decisions, d)
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = p.authorize(context.Background(), "10.0.0.1")
	_, _ = p.authorize(context.Background(), "8.8.8.8")

	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].Allowed {
		t.Error("first decision should be blocked")
	}
	if !decisions[1].Allowed {
		t.Error("second decision should be allowed")
	}
}

func TestEgressProxyExtraBlockedRange(t *testing.T) {
	p, err := NewEgressProxy([]string{"*"}, []string{"203.0.113.0/24"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.authorize(context.Background(), "203.0.113.7"); err != ErrDNSBlocked {
		t.Errorf("expected ErrDNSBlocked for operator-configured range, got %v", err)
	}
}

type fixedResolver struct {
	addrs []net.IPAddr
}

func (f fixedResolver) LookupIPAddr(context.Context, string) ([]net.IPAddr, error) {
	return f.addrs, nil
}

// TestEgressProxyBlocksOnAnyRebindAddress covers a DNS-rebind attempt where
// a hostname resolves to one public address and one cloud-metadata
// address. The first record alone must not decide the outcome: every
// resolved address has to clear the blocklist or the whole lookup is
// refused.
func TestEgressProxyBlocksOnAnyRebindAddress(t *testing.T) {
	p, err := NewEgressProxy([]string{"*"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.resolver = fixedResolver{addrs: []net.IPAddr{
		{IP: net.ParseIP("8.8.8.8")},
		{IP: net.ParseIP("169.254.169.254")},
	}}
	if _, err := p.authorize(context.Background(), "rebind.example.com"); err != ErrDNSBlocked {
		t.Errorf("expected ErrDNSBlocked when any resolved address is blocked, got %v", err)
	}
}
