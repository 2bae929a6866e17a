package transport

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver находит outbound прокси домена через SRV записи (RFC 3263)
type Resolver struct {
	// NameServer адрес DNS сервера ("10.0.0.1:53").
	// Пустое значение означает первый сервер из /etc/resolv.conf.
	NameServer string
	// Timeout таймаут запроса, по умолчанию 5 секунд
	Timeout time.Duration
}

// ProxyAddr адрес прокси
type ProxyAddr struct {
	Host string
	Port int
}

func (a ProxyAddr) String() string {
	return net.JoinHostPort(a.Host, fmt.Sprint(a.Port))
}

// LookupSRV запрашивает SRV записи _service._proto.domain и сортирует их
// по приоритету, затем по весу (больший вес первым).
func (r *Resolver) LookupSRV(ctx context.Context, service, proto, domain string) ([]*dns.SRV, error) {
	nameserver, err := r.nameserver()
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("_%s._%s.%s", service, proto, domain)
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	m.RecursionDesired = true

	client := &dns.Client{Timeout: r.timeout()}
	resp, _, err := client.ExchangeContext(ctx, m, nameserver)
	if err != nil {
		return nil, fmt.Errorf("srv lookup %s: %w", name, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, &net.DNSError{
			Err:        dns.RcodeToString[resp.Rcode],
			Name:       name,
			IsNotFound: resp.Rcode == dns.RcodeNameError,
		}
	}

	srvs := make([]*dns.SRV, 0, len(resp.Answer))
	for _, ans := range resp.Answer {
		if rr, ok := ans.(*dns.SRV); ok {
			srvs = append(srvs, rr)
		}
	}
	slices.SortFunc(srvs, func(a, b *dns.SRV) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return strings.Compare(a.Target, b.Target)
	})
	return srvs, nil
}

// ResolveProxy возвращает адрес прокси для домена и транспорта.
// Если SRV записей нет, используется сам домен с портом 5060.
func (r *Resolver) ResolveProxy(ctx context.Context, domain, transport string) (ProxyAddr, error) {
	if domain == "" {
		return ProxyAddr{}, ErrNoProxy
	}
	if transport == "" {
		transport = TransportUDP
	}

	srvs, err := r.LookupSRV(ctx, "sip", transport, domain)
	if err != nil || len(srvs) == 0 {
		return ProxyAddr{Host: domain, Port: 5060}, nil
	}

	best := srvs[0]
	return ProxyAddr{
		Host: strings.TrimSuffix(best.Target, "."),
		Port: int(best.Port),
	}, nil
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 5 * time.Second
}

func (r *Resolver) nameserver() (string, error) {
	if r.NameServer != "" {
		if _, _, err := net.SplitHostPort(r.NameServer); err != nil {
			return net.JoinHostPort(r.NameServer, "53"), nil //nolint:nilerr
		}
		return r.NameServer, nil
	}

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("read resolv.conf: %w", err)
	}
	if len(conf.Servers) == 0 {
		return "", &net.DNSError{Err: "no DNS servers configured", Name: "resolv.conf"}
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}
