package http

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/clbanning/mxj/v2"
	"github.com/goccy/go-json"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

const (
	ContentTypeJSON           = "application/json"
	ContentTypeXML            = "application/xml"
	ContentTypeTextXML        = "text/xml"
	ContentTypeText           = "text/plain"
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// EncodeBody turns a node's body value into a request body. Maps and slices
// become JSON, strings are sent as they are.
func EncodeBody(body any, contentType string) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, contentType, nil
	case string:
		if b == "" {
			return nil, contentType, nil
		}
		if contentType == "" {
			if json.Valid([]byte(b)) {
				contentType = ContentTypeJSON
			} else {
				contentType = ContentTypeText
			}
		}
		return strings.NewReader(b), contentType, nil
	case []byte:
		return bytes.NewReader(b), contentType, nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}

	if contentType == "" {
		contentType = ContentTypeJSON
	}

	return bytes.NewReader(encoded), contentType, nil
}

// DecodeBody parses a response body by content type. JSON and XML become
// structured values, text stays a string.
func DecodeBody(contentTypeHeader string, body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(contentTypeHeader)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentTypeHeader, ";")[0])
	}

	switch {
	case mediaType == ContentTypeJSON || strings.HasSuffix(mediaType, "+json"):
		var decoded any
		if err := json.Unmarshal(body, &decoded); err == nil {
			return decoded
		}
	case mediaType == ContentTypeXML || mediaType == ContentTypeTextXML || strings.HasSuffix(mediaType, "+xml"):
		mv, err := mxj.NewMapXml(body)
		if err == nil {
			return map[string]any(mv)
		}
	case strings.HasPrefix(mediaType, "text/"):
		return string(body)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}

	if utf8.Valid(body) {
		return string(body)
	}

	return map[string]any{
		"contentType": contentTypeHeader,
		"size":        len(body),
	}
}

// FlattenHeaders keeps the first value of every header.
func FlattenHeaders(headers map[string][]string) map[string]any {
	flat := make(map[string]any, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return flat
}

// HeaderValues converts resolved header values to strings.
func HeaderValues(headers map[string]any) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = expressions.ToString(value)
	}
	return out
}
