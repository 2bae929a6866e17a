package message

import (
	"strings"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
)

// Register строит REGISTER. Contact несет feature tags, Expires задает срок.
func (f *Factory) Register(p *dialog.DialogPath, expires int, featureTags []string, opts ...RequestOpt) (*sip.Request, error) {
	req, err := f.newRequest(sip.REGISTER, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "REGISTER", featureTags); err != nil {
		return nil, err
	}
	appendExpires(req, expires)
	req.AppendHeader(sip.NewHeader("Supported", "path, gruu"))
	req.AppendHeader(sip.NewHeader("Allow", AllowedMethods))
	req.SetBody(nil)

	applyOpts(req, opts)
	return req, nil
}

// SubscribeParams параметры SUBSCRIBE
type SubscribeParams struct {
	Event     string
	Accept    []string
	Supported []string
	Expires   int
	Content   dialog.Content
}

// Subscribe строит SUBSCRIBE
func (f *Factory) Subscribe(p *dialog.DialogPath, params SubscribeParams, opts ...RequestOpt) (*sip.Request, error) {
	if params.Event == "" {
		return nil, buildError("SUBSCRIBE", ErrUnsupportedContent)
	}
	if err := checkContent("SUBSCRIBE", params.Content); err != nil {
		return nil, err
	}

	req, err := f.newRequest(sip.SUBSCRIBE, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "SUBSCRIBE", nil); err != nil {
		return nil, err
	}
	req.AppendHeader(sip.NewHeader("Event", params.Event))
	if len(params.Accept) > 0 {
		req.AppendHeader(sip.NewHeader("Accept", strings.Join(params.Accept, ", ")))
	}
	if len(params.Supported) > 0 {
		req.AppendHeader(sip.NewHeader("Supported", strings.Join(params.Supported, ", ")))
	}
	appendExpires(req, params.Expires)
	setBody(req, params.Content.ContentType, params.Content.Data)

	applyOpts(req, opts)
	return req, nil
}

// Publish строит PUBLISH для пакета presence.
// entityTag непустой делает запрос условным (SIP-If-Match).
func (f *Factory) Publish(p *dialog.DialogPath, expires int, entityTag string, content dialog.Content, opts ...RequestOpt) (*sip.Request, error) {
	if err := checkContent("PUBLISH", content); err != nil {
		return nil, err
	}

	req, err := f.newRequest(sip.PUBLISH, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	req.AppendHeader(sip.NewHeader("Event", EventPresence))
	appendExpires(req, expires)
	if entityTag != "" {
		req.AppendHeader(sip.NewHeader("SIP-If-Match", entityTag))
	}
	setBody(req, content.ContentType, content.Data)

	applyOpts(req, opts)
	return req, nil
}

// Message строит MESSAGE вне диалога (pager mode)
func (f *Factory) Message(p *dialog.DialogPath, content dialog.Content, featureTags []string, opts ...RequestOpt) (*sip.Request, error) {
	if content.IsEmpty() {
		return nil, buildError("MESSAGE", ErrUnsupportedContent)
	}
	if err := checkContent("MESSAGE", content); err != nil {
		return nil, err
	}

	req, err := f.newRequest(sip.MESSAGE, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if len(featureTags) > 0 {
		req.AppendHeader(sip.NewHeader("Accept-Contact", AcceptContact(featureTags)))
	}
	setBody(req, content.ContentType, content.Data)

	applyOpts(req, opts)
	return req, nil
}

// InviteParams параметры INVITE
type InviteParams struct {
	FeatureTags []string
	Content     dialog.Content
	// SessionExpires > 0 включает session timer (RFC 4028)
	SessionExpires int
	Refresher      dialog.Refresher
}

// Invite строит начальный INVITE
func (f *Factory) Invite(p *dialog.DialogPath, params InviteParams, opts ...RequestOpt) (*sip.Request, error) {
	if err := checkContent("INVITE", params.Content); err != nil {
		return nil, err
	}
	req, err := f.inviteBase(p, params)
	if err != nil {
		return nil, err
	}
	setBody(req, params.Content.ContentType, params.Content.Data)

	applyOpts(req, opts)
	return req, nil
}

// InviteMultipart строит INVITE с заранее собранным multipart телом.
// Content-Type получает параметр boundary.
func (f *Factory) InviteMultipart(p *dialog.DialogPath, params InviteParams, boundary string, body []byte, opts ...RequestOpt) (*sip.Request, error) {
	if boundary == "" || len(body) == 0 {
		return nil, buildError("INVITE", ErrUnsupportedContent)
	}
	req, err := f.inviteBase(p, params)
	if err != nil {
		return nil, err
	}
	setBody(req, ContentTypeMixed+";boundary="+boundary, body)

	applyOpts(req, opts)
	return req, nil
}

func (f *Factory) inviteBase(p *dialog.DialogPath, params InviteParams) (*sip.Request, error) {
	req, err := f.newRequest(sip.INVITE, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "INVITE", params.FeatureTags); err != nil {
		return nil, err
	}
	if len(params.FeatureTags) > 0 {
		req.AppendHeader(sip.NewHeader("Accept-Contact", AcceptContact(params.FeatureTags)))
	}
	req.AppendHeader(sip.NewHeader("Allow", AllowedMethods))
	if params.SessionExpires > 0 {
		req.AppendHeader(sip.NewHeader("Supported", "timer"))
		req.AppendHeader(sip.NewHeader("Session-Expires", SessionExpiresValue(params.SessionExpires, string(params.Refresher))))
	}
	return req, nil
}

// ReInvite строит re-INVITE внутри установленного диалога.
// Session timer берется из диалога.
func (f *Factory) ReInvite(p *dialog.DialogPath, content dialog.Content, featureTags []string, opts ...RequestOpt) (*sip.Request, error) {
	if !p.IsSigEstablished() {
		return nil, buildError("INVITE", ErrNoInvite)
	}
	if err := checkContent("INVITE", content); err != nil {
		return nil, err
	}

	seconds, refresher := p.SessionExpires()
	req, err := f.inviteBase(p, InviteParams{
		FeatureTags:    featureTags,
		SessionExpires: seconds,
		Refresher:      refresher,
	})
	if err != nil {
		return nil, err
	}
	setBody(req, content.ContentType, content.Data)

	applyOpts(req, opts)
	return req, nil
}

// Ack строит ACK на 2xx INVITE: CSeq номер исходного INVITE
func (f *Factory) Ack(p *dialog.DialogPath, opts ...RequestOpt) (*sip.Request, error) {
	if p.InviteRequest() == nil {
		return nil, buildError("ACK", ErrNoInvite)
	}
	req, err := f.newRequest(sip.ACK, p, p.InviteCSeq())
	if err != nil {
		return nil, err
	}
	req.SetBody(nil)

	applyOpts(req, opts)
	return req, nil
}

// Bye строит BYE
func (f *Factory) Bye(p *dialog.DialogPath, opts ...RequestOpt) (*sip.Request, error) {
	req, err := f.newRequest(sip.BYE, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	req.SetBody(nil)

	applyOpts(req, opts)
	return req, nil
}

// Cancel строит CANCEL для INVITE диалога: тот же Request-URI, Via, From, To,
// Call-ID и номер CSeq, что у INVITE
func (f *Factory) Cancel(p *dialog.DialogPath) (*sip.Request, error) {
	inv := p.InviteRequest()
	if inv == nil {
		return nil, buildError("CANCEL", ErrNoInvite)
	}
	cseq := inv.CSeq()
	if cseq == nil {
		return nil, buildError("CANCEL", ErrNoInvite)
	}

	req := sip.NewRequest(sip.CANCEL, inv.Recipient)
	if via := inv.Via(); via != nil {
		req.AppendHeader(via.Clone())
	}
	sip.CopyHeaders("Route", inv, req)

	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	if h := inv.From(); h != nil {
		req.AppendHeader(sip.HeaderClone(h))
	}
	if h := inv.To(); h != nil {
		req.AppendHeader(sip.HeaderClone(h))
	}
	if h := inv.CallID(); h != nil {
		req.AppendHeader(sip.HeaderClone(h))
	}
	req.AppendHeader(&sip.CSeqHeader{SeqNo: cseq.SeqNo, MethodName: sip.CANCEL})
	if f.userAgent != "" {
		req.AppendHeader(sip.NewHeader("User-Agent", f.userAgent))
	}
	req.SetBody(nil)
	return req, nil
}

// Options строит OPTIONS для обмена возможностями
func (f *Factory) Options(p *dialog.DialogPath, featureTags []string, opts ...RequestOpt) (*sip.Request, error) {
	req, err := f.newRequest(sip.OPTIONS, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "OPTIONS", featureTags); err != nil {
		return nil, err
	}
	if len(featureTags) > 0 {
		req.AppendHeader(sip.NewHeader("Accept-Contact", AcceptContact(featureTags)))
	}
	req.AppendHeader(sip.NewHeader("Accept", ContentTypeSDP))
	req.SetBody(nil)

	applyOpts(req, opts)
	return req, nil
}

// Refer строит REFER с Refer-To и Referred-By
func (f *Factory) Refer(p *dialog.DialogPath, referTo sip.Uri, opts ...RequestOpt) (*sip.Request, error) {
	if referTo.Host == "" {
		return nil, buildError("REFER", ErrInvalidURI)
	}
	req, err := f.newRequest(sip.REFER, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "REFER", nil); err != nil {
		return nil, err
	}
	local := p.LocalParty()
	req.AppendHeader(sip.NewHeader("Refer-To", "<"+referTo.String()+">"))
	req.AppendHeader(sip.NewHeader("Referred-By", "<"+local.String()+">"))
	req.SetBody(nil)

	applyOpts(req, opts)
	return req, nil
}

// Update строит UPDATE для обновления session timer
func (f *Factory) Update(p *dialog.DialogPath, opts ...RequestOpt) (*sip.Request, error) {
	req, err := f.newRequest(sip.UPDATE, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "UPDATE", nil); err != nil {
		return nil, err
	}
	if seconds, refresher := p.SessionExpires(); seconds > 0 {
		req.AppendHeader(sip.NewHeader("Supported", "timer"))
		req.AppendHeader(sip.NewHeader("Session-Expires", SessionExpiresValue(seconds, string(refresher))))
	}
	req.SetBody(nil)

	applyOpts(req, opts)
	return req, nil
}

// Notify строит NOTIFY внутри подписки (прогресс REFER и т.п.)
func (f *Factory) Notify(p *dialog.DialogPath, event, subscriptionState string, content dialog.Content, opts ...RequestOpt) (*sip.Request, error) {
	if event == "" || subscriptionState == "" {
		return nil, buildError("NOTIFY", ErrUnsupportedContent)
	}
	if err := checkContent("NOTIFY", content); err != nil {
		return nil, err
	}
	req, err := f.newRequest(sip.NOTIFY, p, p.CSeq())
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(req, "NOTIFY", nil); err != nil {
		return nil, err
	}
	req.AppendHeader(sip.NewHeader("Event", event))
	req.AppendHeader(sip.NewHeader("Subscription-State", subscriptionState))
	setBody(req, content.ContentType, content.Data)

	applyOpts(req, opts)
	return req, nil
}
