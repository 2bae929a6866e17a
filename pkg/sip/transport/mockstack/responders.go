package mockstack

import (
	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/transport"
)

// RemoteTag тег, который мок ставит в To ответа
const RemoteTag = "mock-remote-tag"

// Active true между Init и Close
func (s *Stack) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inited
}

// Config конфигурация последнего Init
func (s *Stack) Config() transport.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Reply отвечает заданным кодом и заголовками
func Reply(code int, reason string, headers ...sip.Header) Responder {
	return func(req *sip.Request) *sip.Response {
		return NewResponse(req, code, reason, headers...)
	}
}

// Timeout имитирует отсутствие ответа
func Timeout() Responder {
	return func(*sip.Request) *sip.Response { return nil }
}

// Hang транзакция без ответа и без завершения
func Hang() Responder {
	return nil
}

// Challenge отвечает 401 или 407 с digest challenge
func Challenge(code int, realm, nonce string) Responder {
	name := "WWW-Authenticate"
	reason := "Unauthorized"
	if code == 407 {
		name = "Proxy-Authenticate"
		reason = "Proxy Authentication Required"
	}
	value := `Digest realm="` + realm + `", nonce="` + nonce + `", algorithm=MD5, qop="auth"`
	return Reply(code, reason, sip.NewHeader(name, value))
}

// NewResponse строит ответ на req. Для 2xx в To добавляется RemoteTag.
func NewResponse(req *sip.Request, code int, reason string, headers ...sip.Header) *sip.Response {
	resp := sip.NewResponseFromRequest(req, code, reason, nil)

	if to := req.To(); to != nil && code >= 200 && code < 300 {
		params := sip.HeaderParams{}
		for k, v := range to.Params {
			params[k] = v
		}
		if _, ok := params["tag"]; !ok {
			params["tag"] = RemoteTag
		}
		resp.RemoveHeader("To")
		resp.AppendHeader(&sip.ToHeader{
			DisplayName: to.DisplayName,
			Address:     to.Address,
			Params:      params,
		})
	}

	for _, h := range headers {
		resp.AppendHeader(h)
	}
	return resp
}
