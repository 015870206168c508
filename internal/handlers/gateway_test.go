package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestSplitRoute(t *testing.T) {
	cases := []struct {
		path    string
		name    string
		version string
		rest    string
	}{
		{"/math/v1/add", "math", "1", "/add"},
		{"/math/v2.1/add", "math", "2.1", "/add"},
		{"/math/add", "math", "", "/add"},
		{"/math/add/deep/path", "math", "", "/add/deep/path"},
		{"/math/v1/add/deep", "math", "1", "/add/deep"},
		{"/math", "math", "", "/"},
		{"/math/v1", "math", "1", "/"},
		{"/", "", "", "/"},
		// a segment that only looks like a version is part of the path
		{"/math/verify", "math", "", "/verify"},
	}

	for _, tc := range cases {
		name, version, rest := splitRoute(tc.path)
		assert.Equal(t, tc.name, name, tc.path)
		assert.Equal(t, tc.version, version, tc.path)
		assert.Equal(t, tc.rest, rest, tc.path)
	}
}

func TestClientIP(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(ctx))

	ctx = &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(ctx))

	// falls back to the connection address when no proxy header exists
	ctx = &fasthttp.RequestCtx{}
	assert.NotEmpty(t, clientIP(ctx))
}
