package recorder

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	mediaTypeJSON = "application/json"
	mediaTypeText = "text/plain"
)

// requestDocument is a received request as a JSON document, so constraints can
// address any part of it: "$.path", "$.query.<name>", "$.headers.<Name>", "$.body...".
type requestDocument map[string]interface{}

var supportedMediaTypes = map[string]func([]byte, *url.URL) (requestDocument, error){
	mediaTypeJSON: parseJSONRequest,
	mediaTypeText: parsePlainTextRequest,
}

func parseRequest(req *http.Request, data []byte) (requestDocument, error) {
	mediaType, err := parseMediaTypeHeader(req.Header)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Content-Type header")
	}

	parse, ok := supportedMediaTypes[mediaType]
	if !ok {
		log.Infof("unsupported media type %s, reading body as text", mediaType)
		parse = parsePlainTextRequest
	}

	doc, err := parse(data, req.URL)
	if err != nil {
		return nil, err
	}
	doc["method"] = req.Method

	headers := make(map[string]interface{}, len(req.Header))
	for name, values := range req.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	doc["headers"] = headers
	return doc, nil
}

func parseJSONRequest(data []byte, url *url.URL) (requestDocument, error) {
	var body interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, errors.Wrap(err, "unable to parse request body")
		}
	}

	return requestDocument{
		"path":  url.Path,
		"body":  body,
		"query": parseQueryValues(url),
	}, nil
}

func parsePlainTextRequest(data []byte, url *url.URL) (requestDocument, error) {
	var body interface{}
	if len(data) > 0 {
		body = string(data)
	}

	return requestDocument{
		"path":  url.Path,
		"body":  body,
		"query": parseQueryValues(url),
	}, nil
}

func parseMediaTypeHeader(header http.Header) (string, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return mediaTypeText, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	return mediaType, nil
}

func parseQueryValues(url *url.URL) map[string]interface{} {
	queryValues := make(map[string]interface{})
	for q, v := range url.Query() {
		if len(v) > 0 {
			escapeValue(queryValues, q, v[0])
		}
	}
	return queryValues
}

// escapeValue nests bracketed query keys, so "filter[tag]=blue" is reachable as $.query.filter.tag.
func escapeValue(values map[string]interface{}, query, val string) {
	open := strings.Index(query, "[")
	if open < 0 {
		values[query] = val
		return
	}

	key := query[:open]
	rest := query[open+1:]
	closing := strings.Index(rest, "]")
	if closing < 0 {
		values[query] = val
		return
	}

	valueMap, ok := values[key].(map[string]interface{})
	if !ok {
		valueMap = make(map[string]interface{})
		values[key] = valueMap
	}
	escapeValue(valueMap, rest[:closing]+rest[closing+1:], val)
}

// encodeValues quotes query keys used in bracket notation so jsonpath reads them as names.
func (r requestDocument) encodeValues(path string) string {
	query, ok := r["query"].(map[string]interface{})
	if !ok {
		return path
	}
	return encodeMapValues(query, path)
}

func encodeMapValues(m map[string]interface{}, path string) string {
	result := path
	for k, v := range m {
		result = strings.ReplaceAll(result, "["+k+"]", "[\""+k+"\"]")
		if nested, ok := v.(map[string]interface{}); ok {
			result = encodeMapValues(nested, result)
		}
	}
	return result
}
