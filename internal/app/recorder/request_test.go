package recorder

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	for _, tt := range []struct {
		name        string
		contentType string
		body        string
		wantBody    interface{}
		wantErr     bool
	}{
		{name: "json object", contentType: "application/json; charset=utf-8", body: `{"itemId":"sock"}`, wantBody: map[string]interface{}{"itemId": "sock"}},
		{name: "json array", contentType: "application/json", body: `[1,2]`, wantBody: []interface{}{1.0, 2.0}},
		{name: "empty json", contentType: "application/json", body: ``, wantBody: nil},
		{name: "invalid json", contentType: "application/json", body: `{`, wantErr: true},
		{name: "no content type", body: `hello`, wantBody: "hello"},
		{name: "csv read as text", contentType: "text/csv", body: `a,b`, wantBody: "a,b"},
		{name: "malformed content type", contentType: "application/json; charset", body: `{}`, wantErr: true},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/carts/c-1/items?filter[tag]=blue&page=2", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			doc, err := parseRequest(req, []byte(tt.body))

			require.Equalf(t, tt.wantErr, err != nil, "error %v", err)
			if tt.wantErr {
				return
			}
			assert.Equal(t, tt.wantBody, doc["body"])
			assert.Equal(t, "/carts/c-1/items", doc["path"])
			assert.Equal(t, http.MethodPost, doc["method"])
			assert.Equal(t, map[string]interface{}{
				"filter": map[string]interface{}{"tag": "blue"},
				"page":   "2",
			}, doc["query"])
		})
	}
}

func TestEncodeValues(t *testing.T) {
	doc := requestDocument{"query": parseQueryValues(&url.URL{RawQuery: "filter[tag]=blue"})}

	assert.Equal(t, `$.query.filter["tag"]`, doc.encodeValues("$.query.filter[tag]"))
	assert.Equal(t, "$.body.id", doc.encodeValues("$.body.id"))
}

func TestConstraintCheck(t *testing.T) {
	for _, tt := range []struct {
		name       string
		constraint Constraint
		actual     interface{}
		wantErr    bool
	}{
		{name: "equal", constraint: Constraint{Path: "$.body.id", Format: "%v", Values: []interface{}{"a"}}, actual: "a"},
		{name: "different", constraint: Constraint{Path: "$.body.id", Format: "%v", Values: []interface{}{"a"}}, actual: "b", wantErr: true},
		{name: "formatted", constraint: Constraint{Path: "$.path", Format: "/carts/%s/items", Values: []interface{}{"c-1"}}, actual: "/carts/c-1/items"},
		{name: "length", constraint: Constraint{Path: "$.body.items", Format: fmtLen, Values: []interface{}{2}}, actual: []interface{}{1, 2}},
		{name: "wrong length", constraint: Constraint{Path: "$.body.items", Format: fmtLen, Values: []interface{}{1}}, actual: []interface{}{1, 2}, wantErr: true},
		{name: "length of non array", constraint: Constraint{Path: "$.body.items", Format: fmtLen, Values: []interface{}{1}}, actual: "x", wantErr: true},
		{name: "length needs one value", constraint: Constraint{Path: "$.body.items", Format: fmtLen, Values: []interface{}{1, 2}}, actual: []interface{}{1}, wantErr: true},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constraint.check(tt.constraint.Values, tt.actual)
			assert.Equalf(t, tt.wantErr, err != nil, "error %v", err)
		})
	}
}

func TestLoadConstraint(t *testing.T) {
	c, err := loadConstraint([]byte(`{"interaction":"add item","path":"$.body.items","format":"_length_","values":[2]}`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2}, c.Values)
	assert.Equal(t, "add item_$.body.items", c.Key())

	c, err = loadConstraint([]byte(`{"interaction":"add item","path":"$.body.id","values":["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, "%v", c.Format)

	_, err = loadConstraint([]byte(`{`))
	assert.Error(t, err)
}

func TestModifiers(t *testing.T) {
	ms := newModifiers()
	second := 2
	ms.add(&Modifier{Path: "$.status", Value: "503", Attempt: &second})
	ms.add(&Modifier{Path: "$.body.message", Value: "changed"})

	status, body, err := ms.apply(200, []byte(`{"message":"original"}`))
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"message":"changed"}`, string(body))

	status, _, err = ms.apply(200, []byte(`{"message":"original"}`))
	require.NoError(t, err)
	assert.Equal(t, 503, status)

	status, body, err = ms.apply(204, nil)
	require.NoError(t, err)
	assert.Equal(t, 204, status)
	assert.JSONEq(t, `{"message":"changed"}`, string(body))
}

func TestLoadModifier(t *testing.T) {
	m, err := loadModifier([]byte(`{"interaction":"add item","path":"$.status","value":500,"attempt":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, *m.Attempt)

	_, err = loadModifier([]byte(`{"interaction":"add item","path":"$.status","value":"five hundred"}`))
	assert.Error(t, err)

	_, err = loadModifier([]byte(`{"interaction":"add item","path":"$.body.","value":1}`))
	assert.Error(t, err)
}
