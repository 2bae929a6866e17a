// Package message строит SIP запросы и ответы из состояния диалога.
//
// Построители чистые по отношению к диалогу: они только читают DialogPath
// и никогда не меняют CSeq. Вызывающий увеличивает CSeq до построения
// каждого нового запроса внутри диалога. Одинаковые входные данные дают
// побайтно одинаковые сообщения (Via и порт заполняет транспорт).
package message

import (
	"strings"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
)

// Endpoint источник Contact этого UA (transport.Manager)
type Endpoint interface {
	LocalContact() (sip.ContactHeader, error)
}

// Factory построитель сообщений
type Factory struct {
	endpoint          Endpoint
	userAgent         string
	instanceID        string
	preferredIdentity string
}

// Option опция Factory
type Option func(*Factory)

// WithUserAgent задает User-Agent / Server
func WithUserAgent(ua string) Option {
	return func(f *Factory) { f.userAgent = ua }
}

// WithInstanceID задает +sip.instance (например "<urn:gsma:imei:35-209900-176148-1>")
func WithInstanceID(id string) Option {
	return func(f *Factory) { f.instanceID = id }
}

// WithPreferredIdentity задает P-Preferred-Identity для запросов вне REGISTER
func WithPreferredIdentity(uri string) Option {
	return func(f *Factory) { f.preferredIdentity = uri }
}

// NewFactory создает построитель
func NewFactory(endpoint Endpoint, opts ...Option) *Factory {
	f := &Factory{endpoint: endpoint}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// newRequest собирает общую часть запроса внутри диалога
func (f *Factory) newRequest(method sip.RequestMethod, p *dialog.DialogPath, cseq uint32) (*sip.Request, error) {
	ruri := p.RequestURI()
	if ruri.Host == "" {
		return nil, buildError(method.String(), ErrInvalidURI)
	}
	local, remote := p.LocalParty(), p.RemoteParty()
	if local.Host == "" || remote.Host == "" {
		return nil, buildError(method.String(), ErrInvalidURI)
	}

	req := sip.NewRequest(method, ruri)

	for _, h := range p.RouteHeaders() {
		req.AppendHeader(h)
	}

	req.AppendHeader(&sip.FromHeader{
		Address: local,
		Params:  sip.HeaderParams{"tag": p.LocalTag()},
	})

	to := &sip.ToHeader{Address: remote, Params: sip.HeaderParams{}}
	if tag := p.RemoteTag(); tag != "" {
		to.Params["tag"] = tag
	}
	req.AppendHeader(to)

	callID := sip.CallIDHeader(p.CallID())
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: cseq, MethodName: method})

	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	if f.userAgent != "" {
		req.AppendHeader(sip.NewHeader("User-Agent", f.userAgent))
	}
	if f.preferredIdentity != "" && method != sip.REGISTER {
		req.AppendHeader(sip.NewHeader("P-Preferred-Identity", "<"+f.preferredIdentity+">"))
	}
	return req, nil
}

// contactValue Contact со списком feature tags и +sip.instance
func (f *Factory) contactValue(method string, featureTags []string, params ...string) (string, error) {
	if f.endpoint == nil {
		return "", buildError(method, ErrStackNotInitialized)
	}
	c, err := f.endpoint.LocalContact()
	if err != nil {
		return "", buildError(method, err)
	}
	if c.Address.Host == "" {
		return "", buildError(method, ErrStackNotInitialized)
	}

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(c.Address.String())
	b.WriteString(">")
	for _, p := range params {
		b.WriteString(";")
		b.WriteString(p)
	}
	if f.instanceID != "" {
		b.WriteString(`;+sip.instance="`)
		b.WriteString(f.instanceID)
		b.WriteString(`"`)
	}
	for _, tag := range featureTags {
		b.WriteString(";")
		b.WriteString(tag)
	}
	return b.String(), nil
}

func (f *Factory) appendContact(msg sip.Message, method string, featureTags []string, params ...string) error {
	v, err := f.contactValue(method, featureTags, params...)
	if err != nil {
		return err
	}
	msg.AppendHeader(sip.NewHeader("Contact", v))
	return nil
}

func checkContent(method string, content dialog.Content) error {
	if !content.IsEmpty() && content.ContentType == "" {
		return buildError(method, ErrUnsupportedContent)
	}
	return nil
}

func applyOpts(req *sip.Request, opts []RequestOpt) {
	for _, opt := range opts {
		opt(req)
	}
}
