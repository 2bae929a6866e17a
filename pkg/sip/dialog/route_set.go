package dialog

import (
	"strings"

	"github.com/emiago/sipgo/sip"
)

// routeSet маршрут диалога, RFC 3261 12.1.2 и 12.2.1.1
type routeSet []sip.Uri

func newRouteSet(hops []sip.Uri) routeSet {
	rs := make(routeSet, 0, len(hops))
	for _, h := range hops {
		rs = append(rs, *h.Clone())
	}
	return rs
}

// routeSetFromRecordRoute Record-Route ответа в порядке UAC
func routeSetFromRecordRoute(resp *sip.Response) routeSet {
	var rs routeSet
	for _, h := range resp.GetHeaders("Record-Route") {
		if uri, ok := recordRouteURI(h); ok {
			rs = append(rs, uri)
		}
	}
	return rs
}

func (rs routeSet) uris() []sip.Uri {
	out := make([]sip.Uri, len(rs))
	copy(out, rs)
	return out
}

// strict первый хоп без lr
func (rs routeSet) strict() bool {
	if len(rs) == 0 {
		return false
	}
	if rs[0].UriParams == nil {
		return true
	}
	_, lr := rs[0].UriParams["lr"]
	return !lr
}

// requestURI при strict routing первый хоп уходит в Request-URI
func (rs routeSet) requestURI(target sip.Uri) sip.Uri {
	if rs.strict() {
		return rs[0]
	}
	return target
}

func (rs routeSet) headers() []sip.Header {
	hops := []sip.Uri(rs)
	if rs.strict() {
		hops = hops[1:]
	}
	if len(hops) == 0 {
		return nil
	}
	out := make([]sip.Header, len(hops))
	for i, h := range hops {
		out[i] = &sip.RouteHeader{Address: h}
	}
	return out
}

func recordRouteURI(h sip.Header) (sip.Uri, bool) {
	if rr, ok := h.(*sip.RecordRouteHeader); ok {
		return rr.Address, true
	}

	value := h.Value()
	if strings.HasPrefix(value, "<") {
		if end := strings.IndexByte(value, '>'); end > 0 {
			value = value[1:end]
		}
	}

	var uri sip.Uri
	if err := sip.ParseUri(value, &uri); err != nil {
		return sip.Uri{}, false
	}
	return uri, true
}
