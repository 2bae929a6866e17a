// Package auth хранит digest challenge одного потока и подписывает повторные запросы.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emiago/sipgo/sip"
	"github.com/icholy/digest"
)

var (
	// ErrNoChallenge 401/407 без заголовка challenge
	ErrNoChallenge = errors.New("challenge header missing")
	// ErrInvalidChallenge challenge не удалось разобрать
	ErrInvalidChallenge = errors.New("invalid digest challenge")
	// ErrNoCredentials учетные данные не заданы
	ErrNoCredentials = errors.New("no credentials configured")
)

const (
	headerWWWAuthenticate    = "WWW-Authenticate"
	headerAuthorization      = "Authorization"
	headerProxyAuthenticate  = "Proxy-Authenticate"
	headerProxyAuthorization = "Proxy-Authorization"
)

type challenge struct {
	chal  *digest.Challenge
	proxy bool
	count int
}

// Agent держит challenge, полученные одним потоком (REGISTER, PUBLISH, SUBSCRIBE).
// Агент принадлежит одному потоку, мьютекс защищает от гонки с таймером.
type Agent struct {
	mu       sync.Mutex
	username string
	password string

	challenges map[string]*challenge
	realms     []string
}

// NewAgent создает агента с учетными данными IMS private identity
func NewAgent(username, password string) *Agent {
	return &Agent{
		username:   username,
		password:   password,
		challenges: make(map[string]*challenge),
	}
}

// ReadChallenge сохраняет challenge из 401 (WWW-Authenticate) или 407 (Proxy-Authenticate).
// Для остальных ответов ничего не делает. Повторный challenge того же realm
// заменяет предыдущий и сбрасывает nonce count.
func (a *Agent) ReadChallenge(resp *sip.Response) error {
	if resp == nil {
		return nil
	}

	var name string
	var proxy bool
	switch int(resp.StatusCode) {
	case 401:
		name = headerWWWAuthenticate
	case 407:
		name, proxy = headerProxyAuthenticate, true
	default:
		return nil
	}

	headers := resp.GetHeaders(name)
	if len(headers) == 0 {
		return fmt.Errorf("%w: %s", ErrNoChallenge, name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, h := range headers {
		chal, err := digest.ParseChallenge(h.Value())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
		}
		if _, ok := a.challenges[chal.Realm]; !ok {
			a.realms = append(a.realms, chal.Realm)
		}
		a.challenges[chal.Realm] = &challenge{chal: chal, proxy: proxy}
	}
	return nil
}

// StampCredentials добавляет Authorization / Proxy-Authorization для каждого
// сохраненного challenge. Старые заголовки авторизации удаляются.
func (a *Agent) StampCredentials(req *sip.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.challenges) == 0 {
		return nil
	}
	if a.username == "" {
		return ErrNoCredentials
	}

	req.RemoveHeader(headerAuthorization)
	req.RemoveHeader(headerProxyAuthorization)

	for _, realm := range a.realms {
		c := a.challenges[realm]
		c.count++

		cred, err := digest.Digest(c.chal, digest.Options{
			Method:   req.Method.String(),
			URI:      req.Recipient.String(),
			Username: a.username,
			Password: a.password,
			Count:    c.count,
		})
		if err != nil {
			return fmt.Errorf("digest for realm %q: %w", realm, err)
		}

		name := headerAuthorization
		if c.proxy {
			name = headerProxyAuthorization
		}
		req.AppendHeader(sip.NewHeader(name, cred.String()))
	}
	return nil
}

// HasChallenge true, если есть хотя бы один challenge
func (a *Agent) HasChallenge() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.challenges) > 0
}

// Realms возвращает realm сохраненных challenge в порядке получения
func (a *Agent) Realms() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.realms))
	copy(out, a.realms)
	return out
}

// Reset забывает все challenge
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.challenges = make(map[string]*challenge)
	a.realms = nil
}
