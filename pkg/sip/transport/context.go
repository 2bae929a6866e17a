package transport

import (
	"strconv"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// TransactionContext результат одного цикла отправки и ожидания:
// полученный финальный ответ или таймаут.
type TransactionContext struct {
	Request  *sip.Request
	Response *sip.Response

	timeout bool
}

// NewTimeoutContext создает контекст транзакции без ответа
func NewTimeoutContext(req *sip.Request) *TransactionContext {
	return &TransactionContext{Request: req, timeout: true}
}

// NewResponseContext создает контекст транзакции с ответом
func NewResponseContext(req *sip.Request, resp *sip.Response) *TransactionContext {
	return &TransactionContext{Request: req, Response: resp}
}

// IsTimeout true, если ответ не пришел
func (tc *TransactionContext) IsTimeout() bool {
	return tc.timeout || tc.Response == nil
}

// StatusCode код ответа, 0 при таймауте
func (tc *TransactionContext) StatusCode() int {
	if tc.IsTimeout() {
		return 0
	}
	return int(tc.Response.StatusCode)
}

// ReasonPhrase фраза ответа
func (tc *TransactionContext) ReasonPhrase() string {
	if tc.IsTimeout() {
		return ""
	}
	return tc.Response.Reason
}

// IsSuccess true для 2xx
func (tc *TransactionContext) IsSuccess() bool {
	code := tc.StatusCode()
	return code >= 200 && code < 300
}

// Header возвращает значение заголовка ответа
func (tc *TransactionContext) Header(name string) (string, bool) {
	if tc.IsTimeout() {
		return "", false
	}
	h := tc.Response.GetHeader(name)
	if h == nil {
		return "", false
	}
	return strings.TrimSpace(h.Value()), true
}

// Expires возвращает значение Expires ответа
func (tc *TransactionContext) Expires() (int, bool) {
	return tc.intHeader("Expires")
}

// MinExpires возвращает значение Min-Expires ответа (подсказка для 423)
func (tc *TransactionContext) MinExpires() (int, bool) {
	return tc.intHeader("Min-Expires")
}

// SIPETag возвращает entity-tag ответа на PUBLISH
func (tc *TransactionContext) SIPETag() (string, bool) {
	v, ok := tc.Header("SIP-ETag")
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Body тело ответа
func (tc *TransactionContext) Body() []byte {
	if tc.IsTimeout() {
		return nil
	}
	return tc.Response.Body()
}

// Method метод исходного запроса
func (tc *TransactionContext) Method() string {
	if tc.Request == nil {
		return ""
	}
	return tc.Request.Method.String()
}

func (tc *TransactionContext) intHeader(name string) (int, bool) {
	v, ok := tc.Header(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
