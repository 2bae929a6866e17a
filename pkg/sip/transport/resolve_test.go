package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNS поднимает локальный DNS сервер с заданными SRV ответами
func startDNS(t *testing.T, records map[string][]dns.RR) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			if rrs, ok := records[r.Question[0].Name]; ok {
				m.Answer = append(m.Answer, rrs...)
			} else {
				m.Rcode = dns.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func srvRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func TestResolver_ResolveProxy(t *testing.T) {
	addr := startDNS(t, map[string][]dns.RR{
		"_sip._udp.ims.example.com.": {
			srvRR(t, "_sip._udp.ims.example.com. 60 IN SRV 20 10 5060 backup.ims.example.com."),
			srvRR(t, "_sip._udp.ims.example.com. 60 IN SRV 10 5 5062 pcscf2.ims.example.com."),
			srvRR(t, "_sip._udp.ims.example.com. 60 IN SRV 10 50 5064 pcscf1.ims.example.com."),
		},
	})

	r := &Resolver{NameServer: addr, Timeout: time.Second}
	ctx := context.Background()

	srvs, err := r.LookupSRV(ctx, "sip", "udp", "ims.example.com")
	require.NoError(t, err)
	require.Len(t, srvs, 3)
	assert.Equal(t, "pcscf1.ims.example.com.", srvs[0].Target)
	assert.Equal(t, "pcscf2.ims.example.com.", srvs[1].Target)
	assert.Equal(t, "backup.ims.example.com.", srvs[2].Target)

	proxy, err := r.ResolveProxy(ctx, "ims.example.com", TransportUDP)
	require.NoError(t, err)
	assert.Equal(t, ProxyAddr{Host: "pcscf1.ims.example.com", Port: 5064}, proxy)
	assert.Equal(t, "pcscf1.ims.example.com:5064", proxy.String())
}

func TestResolver_ResolveProxyFallback(t *testing.T) {
	addr := startDNS(t, nil)
	r := &Resolver{NameServer: addr, Timeout: time.Second}

	proxy, err := r.ResolveProxy(context.Background(), "nosrv.example.com", TransportTCP)
	require.NoError(t, err)
	assert.Equal(t, ProxyAddr{Host: "nosrv.example.com", Port: 5060}, proxy)

	_, err = r.ResolveProxy(context.Background(), "", TransportUDP)
	assert.ErrorIs(t, err, ErrNoProxy)
}
