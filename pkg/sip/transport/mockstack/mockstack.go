// Package mockstack предоставляет in-memory реализацию transport.Stack для тестов.
//
// Ответы задаются сценарием: каждый отправленный запрос получает ответ
// от следующего Responder в очереди. Responder, вернувший nil, имитирует
// транзакцию без ответа (Timer B/F), а nil Responder оставляет транзакцию
// висеть до ее завершения вызывающим.
package mockstack

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/transport"
)

// ErrTransactionTimeout ошибка транзакции без ответа
var ErrTransactionTimeout = errors.New("mock transaction timeout")

// Responder формирует ответ на запрос, nil означает отсутствие ответа
type Responder func(req *sip.Request) *sip.Response

// Stack in-memory стек
type Stack struct {
	mu sync.Mutex

	cfg        transport.Config
	inited     bool
	initCount  int
	closeCount int
	InitErr    error

	callSeq  int
	script   []Responder
	fallback Responder
	sent     []*sip.Request
	sentCh   chan *sip.Request
	handlers map[sip.RequestMethod]transport.RequestHandler

	contact sip.ContactHeader
	routes  []sip.Uri
}

// New создает стек, отвечающий 200 OK на все запросы вне сценария
func New() *Stack {
	return &Stack{
		fallback: Reply(200, "OK"),
		sentCh:   make(chan *sip.Request, 128),
		handlers: make(map[sip.RequestMethod]transport.RequestHandler),
		contact: sip.ContactHeader{Address: sip.Uri{
			Scheme: "sip",
			User:   "alice",
			Host:   "192.0.2.10",
			Port:   5060,
		}},
		routes: []sip.Uri{{
			Scheme:    "sip",
			Host:      "pcscf.ims.example.com",
			Port:      5060,
			UriParams: sip.HeaderParams{"lr": ""},
		}},
	}
}

// Push добавляет ответы в очередь сценария
func (s *Stack) Push(r ...Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, r...)
}

// SetFallback задает ответ для запросов сверх сценария
func (s *Stack) SetFallback(r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
}

// Sent возвращает копию списка отправленных запросов
func (s *Stack) Sent() []*sip.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*sip.Request, len(s.sent))
	copy(out, s.sent)
	return out
}

// SentCh канал, в который попадает каждый отправленный запрос
func (s *Stack) SentCh() <-chan *sip.Request {
	return s.sentCh
}

// Counts возвращает число вызовов Init и Close
func (s *Stack) Counts() (inits, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCount, s.closeCount
}

// Deliver передает входящий запрос зарегистрированному обработчику
func (s *Stack) Deliver(req *sip.Request) *sip.Response {
	s.mu.Lock()
	h := s.handlers[req.Method]
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(req)
}

// Init реализует transport.Stack
func (s *Stack) Init(_ context.Context, cfg transport.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCount++
	if s.InitErr != nil {
		return s.InitErr
	}
	s.cfg = cfg
	s.inited = true
	return nil
}

// Close реализует transport.Stack
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	s.inited = false
	return nil
}

// GenerateCallID реализует transport.Stack
func (s *Stack) GenerateCallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callSeq++
	return "call-" + strconv.Itoa(s.callSeq) + "@mock"
}

// RouteSet реализует transport.Stack
func (s *Stack) RouteSet() []sip.Uri {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sip.Uri, len(s.routes))
	copy(out, s.routes)
	return out
}

// SetRouteSet заменяет маршрут
func (s *Stack) SetRouteSet(routes []sip.Uri) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = routes
}

// LocalContact реализует transport.Stack
func (s *Stack) LocalContact() sip.ContactHeader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contact
}

// OnRequest реализует transport.Stack
func (s *Stack) OnRequest(method sip.RequestMethod, h transport.RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Send реализует transport.Stack
func (s *Stack) Send(_ context.Context, req *sip.Request) (transport.ClientTx, error) {
	s.mu.Lock()
	s.sent = append(s.sent, req)
	var r Responder
	if len(s.script) > 0 {
		r, s.script = s.script[0], s.script[1:]
	} else {
		r = s.fallback
	}
	s.mu.Unlock()

	select {
	case s.sentCh <- req:
	default:
	}

	tx := newClientTx()
	if r == nil {
		// транзакция висит до Terminate
		return tx, nil
	}
	resp := r(req)
	if resp == nil {
		tx.fail(ErrTransactionTimeout)
		return tx, nil
	}
	tx.responses <- resp
	return tx, nil
}

type clientTx struct {
	responses chan *sip.Response
	done      chan struct{}
	once      sync.Once
	mu        sync.Mutex
	err       error
}

func newClientTx() *clientTx {
	return &clientTx{
		responses: make(chan *sip.Response, 1),
		done:      make(chan struct{}),
	}
}

func (t *clientTx) Responses() <-chan *sip.Response { return t.responses }
func (t *clientTx) Done() <-chan struct{}           { return t.done }

func (t *clientTx) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *clientTx) Terminate() {
	t.once.Do(func() { close(t.done) })
}

func (t *clientTx) fail(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.Terminate()
}
