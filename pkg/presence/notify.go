package presence

import (
	"log/slog"
	"mime"
	"strings"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/presence/pidf"
	"github.com/arzzra/ims_phone/pkg/presence/refresh"
	"github.com/arzzra/ims_phone/pkg/sip/message"
)

const subscriptionTerminated = "terminated"

// handleNotify обрабатывает NOTIFY подписок presence и presence.winfo.
// Ошибки разбора тела только логируются, на NOTIFY всегда отвечаем 200.
func (s *Service) handleNotify(req *sip.Request) *sip.Response {
	var flow *refresh.SubscribeManager
	switch {
	case s.presence.MatchNotify(req):
		flow = s.presence
	case s.winfo.MatchNotify(req):
		flow = s.winfo
	default:
		s.logger.Debug("notify outside of known subscriptions",
			slog.String("event", refresh.EventPackage(req)))
		return s.respond(req, 481, "Call/Transaction Does Not Exist")
	}

	body := req.Body()
	if len(body) > 0 {
		contentType := ""
		if ct := req.ContentType(); ct != nil {
			contentType = ct.Value()
		}
		if flow == s.winfo {
			s.onWatcherInfo(body)
		} else {
			s.onPresenceBody(contentType, body)
		}
	}

	if state, reason := subscriptionState(req); state == subscriptionTerminated {
		flow.HandleTerminated(reason)
	}
	return s.respond(req, 200, "OK")
}

func (s *Service) respond(req *sip.Request, code int, reason string) *sip.Response {
	resp, err := s.factory.Response(req, code, reason, "")
	if err != nil {
		s.logger.Error("failed to build response", slog.Any("error", err))
		return nil
	}
	return resp
}

func (s *Service) onPresenceBody(contentType string, body []byte) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		s.logger.Warn("notify with bad content type", slog.String("content_type", contentType))
		return
	}

	switch mediaType {
	case message.ContentTypeMultipart:
		boundary, ok := pidf.BoundaryFromContentType(contentType)
		if !ok {
			s.logger.Warn("multipart notify without boundary")
			return
		}
		s.metrics.NotifyReceived("multipart")
		mp := pidf.SplitMultipart(body, boundary)
		if part, ok := mp.Part(message.ContentTypeRLMI); ok {
			s.onResourceList(part.Body)
		}
		for _, part := range mp.PartsOf(message.ContentTypePIDF) {
			s.onPresenceDocument(part.Body)
		}

	case message.ContentTypePIDF:
		s.metrics.NotifyReceived("pidf")
		s.onPresenceDocument(body)

	case message.ContentTypeRLMI:
		s.metrics.NotifyReceived("rlmi")
		s.onResourceList(body)

	default:
		s.logger.Debug("notify body ignored", slog.String("content_type", mediaType))
	}
}

func (s *Service) onResourceList(body []byte) {
	list, err := pidf.ParseResourceList(body)
	if err != nil {
		s.logger.Error("malformed resource list dropped", slog.Any("error", err))
		return
	}
	for _, r := range list.Resources {
		s.events.Publish(ResourceStateChanged{List: list.URI, Resource: r})
	}
}

func (s *Service) onPresenceDocument(body []byte) {
	doc, err := pidf.ParseDocument(body)
	if err != nil {
		s.logger.Error("malformed presence document dropped", slog.Any("error", err))
		return
	}
	s.events.Publish(PresenceInfoChanged{Contact: doc.Entity, Document: doc})
}

func (s *Service) onWatcherInfo(body []byte) {
	s.metrics.NotifyReceived("winfo")
	info, err := pidf.ParseWatcherInfo(body)
	if err != nil {
		s.logger.Error("malformed watcher info dropped", slog.Any("error", err))
		return
	}
	for _, list := range info.Lists {
		for _, w := range list.Watchers {
			s.events.Publish(WatcherChanged{Resource: list.Resource, Watcher: w})
		}
	}
}

// subscriptionState состояние и reason из Subscription-State
func subscriptionState(req *sip.Request) (state, reason string) {
	h := req.GetHeader("Subscription-State")
	if h == nil {
		return "", ""
	}
	parts := strings.Split(h.Value(), ";")
	state = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(p), "=")
		if strings.EqualFold(k, "reason") {
			reason = v
		}
	}
	return state, reason
}

// handleOptions отвечает на запрос возможностей тегами текущего документа
func (s *Service) handleOptions(req *sip.Request) *sip.Response {
	s.mu.Lock()
	var caps pidf.Capabilities
	if s.doc.Capabilities != nil {
		caps = *s.doc.Capabilities
	}
	s.mu.Unlock()

	resp, err := s.factory.OptionsResponse(req, FeatureTags(caps), "")
	if err != nil {
		s.logger.Error("failed to build options response", slog.Any("error", err))
		return s.respond(req, 500, "Server Internal Error")
	}
	return resp
}

// FeatureTags теги Contact для набора возможностей
func FeatureTags(caps pidf.Capabilities) []string {
	var tags []string
	if caps.IMSession {
		tags = append(tags, message.FeatureTagOMAIM)
	}
	if caps.VideoShare {
		tags = append(tags, message.FeatureTagCSVoice)
	}

	var iaris []string
	if caps.FileTransfer {
		iaris = append(iaris, message.IARIFileTransfer)
	}
	if caps.ImageShare {
		iaris = append(iaris, message.IARIImageShare)
	}
	if caps.PresenceDiscovery {
		iaris = append(iaris, message.IARIPresenceDiscovery)
	}
	if len(iaris) > 0 {
		tags = append(tags, message.IARIRef(iaris...))
	}
	return tags
}
