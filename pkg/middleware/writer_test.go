package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// bareWriter supports neither flushing nor hijacking.
type bareWriter struct{ h http.Header }

func (b *bareWriter) Header() http.Header {
	if b.h == nil {
		b.h = http.Header{}
	}
	return b.h
}
func (b *bareWriter) Write(p []byte) (int, error) { return len(p), nil }
func (b *bareWriter) WriteHeader(int)             {}

type hijackable struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackable) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStatusWriter_RecordsFirstStatusAndBytes(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, sw.statusCode)

	sw.WriteHeader(http.StatusSeeOther)
	sw.WriteHeader(http.StatusInternalServerError)
	_, _ = sw.Write([]byte("/login"))

	assert.Equal(t, http.StatusSeeOther, sw.statusCode)
	assert.Equal(t, 6, sw.bytes)
}

func TestStatusWriter_WriteWithoutHeaderKeeps200(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	_, _ = sw.Write([]byte("ok"))
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, sw.statusCode)
}

func TestStatusWriter_NestedMiddlewareShareOneWrapper(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	assert.Same(t, sw, newStatusWriter(sw))
}

func TestStatusWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	newStatusWriter(rec).Flush()
	assert.True(t, rec.Flushed)

	// No panic on a writer without Flush.
	newStatusWriter(&bareWriter{}).Flush()
}

func TestStatusWriter_Hijack(t *testing.T) {
	h := &hijackable{ResponseRecorder: httptest.NewRecorder()}
	_, _, err := newStatusWriter(h).Hijack()
	assert.NoError(t, err)
	assert.True(t, h.hijacked)

	_, _, err = newStatusWriter(&bareWriter{}).Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

func TestStatusWriter_ResponseControllerReachesUnderlying(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := http.NewResponseController(newStatusWriter(rec))
	assert.NoError(t, rc.Flush())
	assert.True(t, rec.Flushed)
}
