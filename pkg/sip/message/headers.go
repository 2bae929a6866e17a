package message

import (
	"strconv"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// Типы тел
const (
	ContentTypePIDF        = "application/pidf+xml"
	ContentTypeRLMI        = "application/rlmi+xml"
	ContentTypeWatcherInfo = "application/watcherinfo+xml"
	ContentTypeSDP         = "application/sdp"
	ContentTypeText        = "text/plain"
	ContentTypeCPIM        = "message/cpim"
	ContentTypeSipfrag     = "message/sipfrag"
	ContentTypeMultipart   = "multipart/related"
	ContentTypeMixed       = "multipart/mixed"
)

// Пакеты событий
const (
	EventPresence      = "presence"
	EventPresenceWinfo = "presence.winfo"
	EventRefer         = "refer"
)

// Feature tags RCS / IMS
const (
	FeatureTagOMAIM   = "+g.oma.sip-im"
	FeatureTagCSVoice = "+g.3gpp.cs-voice"
	FeatureTagMMTel   = `+g.3gpp.icsi-ref="urn%3Aurn-7%3A3gpp-service.ims.icsi.mmtel"`
	FeatureTagVideo   = "video"

	IARIFileTransfer      = "urn:urn-7:3gpp-application.ims.iari.rcse.ft"
	IARIImageShare        = "urn:urn-7:3gpp-application.ims.iari.gsma-is"
	IARIPresenceDiscovery = "urn:urn-7:3gpp-application.ims.iari.rcse.dp"
)

// AllowedMethods значение Allow
const AllowedMethods = "INVITE, ACK, CANCEL, BYE, OPTIONS, MESSAGE, NOTIFY, UPDATE, REFER"

// IARIRef собирает feature tag +g.3gpp.iari-ref из списка IARI
func IARIRef(iaris ...string) string {
	escaped := make([]string, len(iaris))
	for i, iari := range iaris {
		escaped[i] = strings.ReplaceAll(iari, ":", "%3A")
	}
	return `+g.3gpp.iari-ref="` + strings.Join(escaped, ",") + `"`
}

// AcceptContact значение Accept-Contact для набора feature tags
func AcceptContact(featureTags []string) string {
	if len(featureTags) == 0 {
		return "*"
	}
	return "*;" + strings.Join(featureTags, ";")
}

// SessionExpiresValue значение Session-Expires (RFC 4028)
func SessionExpiresValue(seconds int, refresher string) string {
	v := strconv.Itoa(seconds)
	if refresher != "" {
		v += ";refresher=" + refresher
	}
	return v
}

// RequestOpt дополнительная настройка запроса после построения
type RequestOpt func(req *sip.Request)

// WithHeader добавляет заголовок по имени и значению
func WithHeader(name, value string) RequestOpt {
	return func(req *sip.Request) {
		req.AppendHeader(sip.NewHeader(name, value))
	}
}

// WithHeaders добавляет готовые заголовки
func WithHeaders(headers ...sip.Header) RequestOpt {
	return func(req *sip.Request) {
		for _, h := range headers {
			req.AppendHeader(h)
		}
	}
}

func setBody(msg sip.Message, contentType string, data []byte) {
	if len(data) > 0 {
		ct := sip.ContentTypeHeader(contentType)
		msg.AppendHeader(&ct)
	}
	msg.SetBody(data)
}

func appendExpires(msg sip.Message, seconds int) {
	expires := sip.ExpiresHeader(seconds)
	msg.AppendHeader(&expires)
}

// setToTag ставит тег в To ответа, заменяя тег, который мог поставить стек
func setToTag(resp *sip.Response, tag string) {
	to := resp.To()
	if to == nil || tag == "" {
		return
	}
	params := sip.HeaderParams{}
	for k, v := range to.Params {
		params[k] = v
	}
	params["tag"] = tag
	resp.RemoveHeader("To")
	resp.AppendHeader(&sip.ToHeader{DisplayName: to.DisplayName, Address: to.Address, Params: params})
}
