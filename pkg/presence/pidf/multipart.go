package pidf

import (
	"bytes"
	"mime"
	"strings"
)

// Part одна часть multipart тела
type Part struct {
	// ContentType тип без параметров, в нижнем регистре
	ContentType string
	// Params параметры Content-Type (charset, type, ...)
	Params map[string]string
	// Headers заголовки части, ключи в нижнем регистре
	Headers map[string]string
	Body    []byte
}

// Multipart разобранное multipart тело NOTIFY
type Multipart struct {
	Parts []Part
}

// Part возвращает первую часть с типом contentType
func (m Multipart) Part(contentType string) (Part, bool) {
	ct := strings.ToLower(contentType)
	for _, p := range m.Parts {
		if p.ContentType == ct {
			return p, true
		}
	}
	return Part{}, false
}

// PartsOf возвращает все части с типом contentType в порядке следования
func (m Multipart) PartsOf(contentType string) []Part {
	ct := strings.ToLower(contentType)
	var out []Part
	for _, p := range m.Parts {
		if p.ContentType == ct {
			out = append(out, p)
		}
	}
	return out
}

// BoundaryFromContentType достает boundary из Content-Type multipart тела
func BoundaryFromContentType(contentType string) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return "", false
	}
	b, ok := params["boundary"]
	return b, ok && b != ""
}

// SplitMultipart делит тело по разделителю "--boundary".
//
// Разбор нестрогий: каждая часть обрезается от пробельных символов,
// часть без пустой строки между заголовками и телом или с неразбираемым
// Content-Type пропускается, остальные части возвращаются.
func SplitMultipart(body []byte, boundary string) Multipart {
	var m Multipart
	if boundary == "" {
		return m
	}
	delim := []byte("--" + boundary)

	chunks := bytes.Split(body, delim)
	// первый кусок преамбула
	for _, chunk := range chunks[1:] {
		if bytes.HasPrefix(chunk, []byte("--")) {
			break
		}
		part, ok := parsePart(bytes.TrimSpace(chunk))
		if !ok {
			continue
		}
		m.Parts = append(m.Parts, part)
	}
	return m
}

func parsePart(raw []byte) (Part, bool) {
	if len(raw) == 0 {
		return Part{}, false
	}

	head, body, ok := cutHeaders(raw)
	if !ok {
		return Part{}, false
	}

	headers := make(map[string]string)
	for _, line := range strings.Split(string(head), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return Part{}, false
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	ct, ok := headers["content-type"]
	if !ok {
		return Part{}, false
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return Part{}, false
	}

	return Part{
		ContentType: strings.ToLower(mediaType),
		Params:      params,
		Headers:     headers,
		Body:        bytes.TrimSpace(body),
	}, true
}

func cutHeaders(raw []byte) (head, body []byte, ok bool) {
	if h, b, found := bytes.Cut(raw, []byte("\r\n\r\n")); found {
		return h, b, true
	}
	if h, b, found := bytes.Cut(raw, []byte("\n\n")); found {
		return h, b, true
	}
	return nil, nil, false
}
