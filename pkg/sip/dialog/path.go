// Package dialog хранит идентичность и состояние последовательности одного SIP диалога.
package dialog

import (
	"fmt"
	"sync"

	"github.com/emiago/sipgo/sip"
)

// Refresher определяет, какая сторона обновляет сессию (RFC 4028)
type Refresher string

const (
	RefresherUAC Refresher = "uac"
	RefresherUAS Refresher = "uas"
)

// Content тело, которое держит сторона диалога (последний offer, PIDF документ и т.п.)
type Content struct {
	ContentType string
	Data        []byte
}

// IsEmpty проверяет наличие тела
func (c Content) IsEmpty() bool {
	return len(c.Data) == 0
}

// Key ключ диалога: Call-ID + теги
type Key struct {
	CallID    string
	LocalTag  string
	RemoteTag string
}

// String возвращает строковое представление ключа диалога
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.CallID, k.LocalTag, k.RemoteTag)
}

// DialogPath описывает один логический SIP диалог.
//
// Call-ID и локальный тег неизменны. Удаленный тег устанавливается один раз.
// CSeq только растет: вызывающий увеличивает его перед построением каждого
// нового запроса внутри диалога.
//
// Все методы безопасны для конкурентного использования.
type DialogPath struct {
	mu sync.RWMutex

	callID      string
	localParty  sip.Uri
	remoteParty sip.Uri
	localTag    string
	remoteTag   string
	target      sip.Uri
	routes      routeSet

	seq *sequence

	sessionExpires int
	refresher      Refresher

	localContent  Content
	remoteContent Content

	inviteRequest  *sip.Request
	inviteResponse *sip.Response
}

// NewDialogPath создает новый диалог.
//
// Параметры:
//   - callID: глобально уникальный Call-ID
//   - target: Request-URI первого запроса
//   - localParty, remoteParty: адреса для From и To
//   - cseq: начальное значение счетчика (первый запрос получит cseq+1)
//   - routes: исходный route set (обычно из регистрации / outbound proxy)
func NewDialogPath(callID string, target, localParty, remoteParty sip.Uri, cseq uint32, routes []sip.Uri) (*DialogPath, error) {
	if callID == "" {
		return nil, ErrEmptyCallID
	}

	return &DialogPath{
		callID:      callID,
		localParty:  localParty,
		remoteParty: remoteParty,
		localTag:    NewTag(),
		target:      target,
		routes:      newRouteSet(routes),
		seq:         newSequence(cseq),
	}, nil
}

// NewTag генерирует локальный тег
func NewTag() string {
	return sip.RandString(10)
}

// CallID возвращает Call-ID диалога
func (p *DialogPath) CallID() string {
	return p.callID
}

// LocalParty возвращает адрес для From
func (p *DialogPath) LocalParty() sip.Uri {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.localParty
}

// RemoteParty возвращает адрес для To
func (p *DialogPath) RemoteParty() sip.Uri {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteParty
}

// LocalTag возвращает локальный тег
func (p *DialogPath) LocalTag() string {
	return p.localTag
}

// RemoteTag возвращает удаленный тег (пустой до установления диалога)
func (p *DialogPath) RemoteTag() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteTag
}

// SetRemoteTag устанавливает удаленный тег.
// Повторная установка того же значения допустима, другое значение отклоняется.
func (p *DialogPath) SetRemoteTag(tag string) error {
	if tag == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.remoteTag != "" && p.remoteTag != tag {
		return fmt.Errorf("%w: %s != %s", ErrRemoteTagChanged, p.remoteTag, tag)
	}
	p.remoteTag = tag
	return nil
}

// Key возвращает ключ диалога
func (p *DialogPath) Key() Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Key{CallID: p.callID, LocalTag: p.localTag, RemoteTag: p.remoteTag}
}

// Target возвращает текущий remote target
func (p *DialogPath) Target() sip.Uri {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target
}

// SetTarget обновляет remote target (например, из Contact ответа)
func (p *DialogPath) SetTarget(target sip.Uri) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = target
}

// RequestURI возвращает Request-URI с учетом loose/strict routing
func (p *DialogPath) RequestURI() sip.Uri {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.routes.requestURI(p.target)
}

// RouteSet возвращает копию route set
func (p *DialogPath) RouteSet() []sip.Uri {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.routes.uris()
}

// RouteHeaders возвращает Route заголовки для запроса в диалоге
func (p *DialogPath) RouteHeaders() []sip.Header {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.routes.headers()
}

// SetRouteSet заменяет route set
func (p *DialogPath) SetRouteSet(routes []sip.Uri) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = newRouteSet(routes)
}

// UpdateFromResponse применяет к диалогу данные 2xx ответа на запрос,
// создающий диалог: удаленный тег, target из Contact, route set из Record-Route.
func (p *DialogPath) UpdateFromResponse(resp *sip.Response) error {
	if resp == nil {
		return nil
	}

	if to := resp.To(); to != nil && to.Params != nil {
		if tag, ok := to.Params.Get("tag"); ok {
			if err := p.SetRemoteTag(tag); err != nil {
				return err
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if contact := resp.Contact(); contact != nil {
		p.target = contact.Address
	}
	if len(resp.GetHeaders("Record-Route")) > 0 {
		p.routes = routeSetFromRecordRoute(resp)
	}
	return nil
}

// IncrementCSeq увеличивает CSeq перед отправкой нового запроса и возвращает новое значение
func (p *DialogPath) IncrementCSeq() uint32 {
	return p.seq.next()
}

// CSeq возвращает текущий CSeq без изменения
func (p *DialogPath) CSeq() uint32 {
	return p.seq.current()
}

// AcceptRemoteCSeq проверяет CSeq входящего запроса в этом диалоге
func (p *DialogPath) AcceptRemoteCSeq(cseq uint32, method string) bool {
	return p.seq.acceptRemote(cseq, method)
}

// SetSessionExpires задает параметры session timer
func (p *DialogPath) SetSessionExpires(seconds int, refresher Refresher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionExpires = seconds
	p.refresher = refresher
}

// SessionExpires возвращает интервал session timer и обновляющую сторону
func (p *DialogPath) SessionExpires() (int, Refresher) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionExpires, p.refresher
}

// SetLocalContent запоминает последнее отправленное тело.
// Оно нужно для повторного построения запроса после challenge.
func (p *DialogPath) SetLocalContent(contentType string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.localContent = Content{ContentType: contentType, Data: data}
}

// LocalContent возвращает последнее отправленное тело
func (p *DialogPath) LocalContent() Content {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.localContent
}

// SetRemoteContent запоминает тело, полученное от удаленной стороны
func (p *DialogPath) SetRemoteContent(contentType string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteContent = Content{ContentType: contentType, Data: data}
}

// RemoteContent возвращает тело удаленной стороны
func (p *DialogPath) RemoteContent() Content {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteContent
}

// SetInvite сохраняет INVITE и его финальный ответ для ACK/CANCEL
func (p *DialogPath) SetInvite(req *sip.Request, resp *sip.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req != nil {
		p.inviteRequest = req
		if cseq := req.CSeq(); cseq != nil {
			p.seq.setInvite(cseq.SeqNo)
		}
	}
	if resp != nil {
		p.inviteResponse = resp
	}
}

// InviteRequest возвращает сохраненный INVITE
func (p *DialogPath) InviteRequest() *sip.Request {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inviteRequest
}

// InviteCSeq возвращает CSeq исходного INVITE
func (p *DialogPath) InviteCSeq() uint32 {
	return p.seq.inviteCSeq()
}

// IsSigEstablished проверяет, что диалог установлен (получен удаленный тег)
func (p *DialogPath) IsSigEstablished() bool {
	return p.RemoteTag() != ""
}
