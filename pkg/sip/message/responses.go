package message

import (
	"strings"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
)

// Response строит ответ на входящий запрос.
// localTag ставится в To, если в запросе не было тега (ответ создает диалог).
func (f *Factory) Response(req *sip.Request, code int, reason string, localTag string) (*sip.Response, error) {
	if req == nil {
		return nil, buildError("RESPONSE", ErrNoInvite)
	}
	resp := sip.NewResponseFromRequest(req, code, reason, nil)
	if to := req.To(); to != nil && code > 100 {
		if _, ok := to.Params.Get("tag"); !ok {
			setToTag(resp, localTag)
		}
	}
	if f.userAgent != "" {
		resp.AppendHeader(sip.NewHeader("Server", f.userAgent))
	}
	return resp, nil
}

// InviteResponse строит ответ на INVITE от имени диалога p:
// локальный тег, Contact с feature tags, session timer и тело.
func (f *Factory) InviteResponse(p *dialog.DialogPath, req *sip.Request, code int, reason string, content dialog.Content, featureTags []string) (*sip.Response, error) {
	if err := checkContent("INVITE", content); err != nil {
		return nil, err
	}
	resp, err := f.Response(req, code, reason, p.LocalTag())
	if err != nil {
		return nil, err
	}
	if code > 100 && code < 300 {
		if err := f.appendContact(resp, "INVITE", featureTags); err != nil {
			return nil, err
		}
		resp.AppendHeader(sip.NewHeader("Allow", AllowedMethods))
	}
	if code >= 200 && code < 300 {
		if seconds, refresher := p.SessionExpires(); seconds > 0 {
			resp.AppendHeader(sip.NewHeader("Require", "timer"))
			resp.AppendHeader(sip.NewHeader("Session-Expires", SessionExpiresValue(seconds, string(refresher))))
		}
	}
	setBody(resp, content.ContentType, content.Data)
	return resp, nil
}

// OptionsResponse строит 200 OK на OPTIONS с возможностями этого UA
func (f *Factory) OptionsResponse(req *sip.Request, featureTags []string, localTag string) (*sip.Response, error) {
	resp, err := f.Response(req, 200, "OK", localTag)
	if err != nil {
		return nil, err
	}
	if err := f.appendContact(resp, "OPTIONS", featureTags); err != nil {
		return nil, err
	}
	resp.AppendHeader(sip.NewHeader("Allow", AllowedMethods))
	resp.AppendHeader(sip.NewHeader("Accept", strings.Join([]string{ContentTypeSDP, ContentTypePIDF, ContentTypeCPIM}, ", ")))
	resp.AppendHeader(sip.NewHeader("Supported", "timer, gruu"))
	resp.SetBody(nil)
	return resp, nil
}
