// Package xdm клиент XCAP сервера (XDMS) для списков контактов RCS
// и иконки пользователя.
package xdm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mellium.im/xmlstream"
)

// Списки resource-lists RCS
const (
	ListGranted = "rcs"
	ListBlocked = "rcs_blockedcontacts"
	ListRevoked = "rcs_revokedcontacts"
)

const (
	contentTypeElement     = "application/xcap-el+xml"
	contentTypePresContent = "application/vnd.oma.pres-content+xml"
	nsPresContent          = "urn:oma:xml:prs:pres-content"

	headerIntendedIdentity = "X-3GPP-Intended-Identity"

	// maxBodySize ограничение на чтение тела ответа
	maxBodySize = 1 << 20

	DefaultTimeout = 10 * time.Second
)

var (
	// ErrInvalidConfig некорректная конфигурация клиента
	ErrInvalidConfig = errors.New("invalid xdm config")
	// ErrEmptyContact пустой URI контакта
	ErrEmptyContact = errors.New("empty contact uri")
)

// Config параметры XDMS
type Config struct {
	// RootURL корень XCAP, например https://xcap.ims.example.com/xcap-root
	RootURL string
	// XUI публичная identity пользователя (sip:alice@ims.example.com)
	XUI      string
	User     string
	Password string
	Timeout  time.Duration
	// UserAgent значение User-Agent
	UserAgent string
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.RootURL == "" {
		return fmt.Errorf("%w: empty root url", ErrInvalidConfig)
	}
	u, err := url.Parse(c.RootURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: root url %q", ErrInvalidConfig, c.RootURL)
	}
	if c.XUI == "" {
		return fmt.Errorf("%w: empty xui", ErrInvalidConfig)
	}
	return nil
}

// Icon иконка пользователя
type Icon struct {
	ContentType string
	Data        []byte
}

// Response ответ XDMS
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccessful 2xx
func (r *Response) IsSuccessful() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsNotFound 404
func (r *Response) IsNotFound() bool {
	return r != nil && r.StatusCode == http.StatusNotFound
}

// Header значение заголовка ответа
func (r *Response) Header(name string) string {
	if r == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// ETag entity-tag документа после изменения
func (r *Response) ETag() string {
	return strings.Trim(r.Header("ETag"), `"`)
}

// Option опция клиента
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger задает логгер
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client XCAP клиент
type Client struct {
	cfg    Config
	root   string
	http   *http.Client
	logger *slog.Logger
}

// NewClient создает клиента
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		root:   strings.TrimRight(cfg.RootURL, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "xdm"))
	return c, nil
}

// AddContactToGrantedList разрешает контакту видеть presence
func (c *Client) AddContactToGrantedList(ctx context.Context, contact string) (*Response, error) {
	return c.putEntry(ctx, ListGranted, contact)
}

// RemoveContactFromGrantedList
func (c *Client) RemoveContactFromGrantedList(ctx context.Context, contact string) (*Response, error) {
	return c.deleteEntry(ctx, ListGranted, contact)
}

// AddContactToBlockedList
func (c *Client) AddContactToBlockedList(ctx context.Context, contact string) (*Response, error) {
	return c.putEntry(ctx, ListBlocked, contact)
}

// RemoveContactFromBlockedList
func (c *Client) RemoveContactFromBlockedList(ctx context.Context, contact string) (*Response, error) {
	return c.deleteEntry(ctx, ListBlocked, contact)
}

// AddContactToRevokedList
func (c *Client) AddContactToRevokedList(ctx context.Context, contact string) (*Response, error) {
	return c.putEntry(ctx, ListRevoked, contact)
}

// RemoveContactFromRevokedList
func (c *Client) RemoveContactFromRevokedList(ctx context.Context, contact string) (*Response, error) {
	return c.deleteEntry(ctx, ListRevoked, contact)
}

// UploadEndUserIcon загружает иконку в pres-content
func (c *Client) UploadEndUserIcon(ctx context.Context, icon Icon) (*Response, error) {
	if len(icon.Data) == 0 || icon.ContentType == "" {
		return nil, fmt.Errorf("%w: empty icon", ErrInvalidConfig)
	}
	body, err := presContent(icon)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, c.iconURL(), contentTypePresContent, body)
}

// DeleteEndUserIcon удаляет иконку
func (c *Client) DeleteEndUserIcon(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodDelete, c.iconURL(), "", nil)
}

func (c *Client) putEntry(ctx context.Context, list, contact string) (*Response, error) {
	if contact == "" {
		return nil, ErrEmptyContact
	}
	body, err := entryElement(contact)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, c.entryURL(list, contact), contentTypeElement, body)
}

func (c *Client) deleteEntry(ctx context.Context, list, contact string) (*Response, error) {
	if contact == "" {
		return nil, ErrEmptyContact
	}
	return c.do(ctx, http.MethodDelete, c.entryURL(list, contact), "", nil)
}

// entryURL селектор узла entry в списке resource-lists
func (c *Client) entryURL(list, contact string) string {
	return c.root + "/resource-lists/users/" + url.PathEscape(c.cfg.XUI) +
		"/index/~~/resource-lists/list%5B@name=%22" + url.PathEscape(list) + "%22%5D" +
		"/entry%5B@uri=%22" + url.PathEscape(contact) + "%22%5D"
}

func (c *Client) iconURL() string {
	return c.root + "/org.openmobilealliance.pres-content/users/" + url.PathEscape(c.cfg.XUI) +
		"/oma_status-icon/rcs_status_icon"
}

func (c *Client) do(ctx context.Context, method, target, contentType string, body []byte) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("xdm %s: %w", method, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	req.Header.Set(headerIntendedIdentity, `"`+c.cfg.XUI+`"`)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xdm %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("xdm %s: read body: %w", method, err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, Body: data}
	c.logger.Debug("xcap request done",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode))
	return resp, nil
}

func entryElement(contact string) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	_, err := xmlstream.Copy(enc, xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Local: "entry"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "uri"}, Value: contact}},
	}))
	if err == nil {
		err = enc.Flush()
	}
	if err != nil {
		return nil, fmt.Errorf("xdm entry: %w", err)
	}
	return buf.Bytes(), nil
}

func presContent(icon Icon) ([]byte, error) {
	text := func(local, value string) xml.TokenReader {
		return xmlstream.Wrap(
			xmlstream.Token(xml.CharData(value)),
			xml.StartElement{Name: xml.Name{Local: local}},
		)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	_, err := xmlstream.Copy(enc, xmlstream.Wrap(
		xmlstream.MultiReader(
			text("mime-type", icon.ContentType),
			text("encoding", "base64"),
			text("data", base64.StdEncoding.EncodeToString(icon.Data)),
		),
		xml.StartElement{
			Name: xml.Name{Local: "content"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: nsPresContent}},
		},
	))
	if err == nil {
		err = enc.Flush()
	}
	if err != nil {
		return nil, fmt.Errorf("xdm pres-content: %w", err)
	}
	return buf.Bytes(), nil
}
