package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"
)

func helloHandler() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set(ContentLengthHeader, "11")
		_, _ = writer.Write([]byte("hello world"))
	})
}

func Test_NewCompressionHandler(t *testing.T) {

	t.Run("brotli is preferred when the client accepts both", func(t *testing.T) {
		handler := NewCompressionHandler(helloHandler())

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set(AcceptEncodingHeader, "gzip, br")

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		req := require.New(t)
		req.Equal(BrotliEncoding, recorder.Header().Get(ContentEncodingHeader))
		req.Empty(recorder.Header().Get(ContentLengthHeader))

		decoded, err := io.ReadAll(brotli.NewReader(recorder.Body))
		req.NoError(err)
		req.Equal("hello world", string(decoded))
	})

	t.Run("gzip is used when brotli is not accepted", func(t *testing.T) {
		handler := NewCompressionHandler(helloHandler())

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set(AcceptEncodingHeader, "gzip;q=0.8, identity")

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		req := require.New(t)
		req.Equal(GzipEncoding, recorder.Header().Get(ContentEncodingHeader))

		reader, err := gzip.NewReader(recorder.Body)
		req.NoError(err)

		decoded, err := io.ReadAll(reader)
		req.NoError(err)
		req.Equal("hello world", string(decoded))
	})

	t.Run("responses pass through untouched without accepted encodings", func(t *testing.T) {
		handler := NewCompressionHandler(helloHandler())

		request := httptest.NewRequest(http.MethodGet, "/", nil)

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		req := require.New(t)
		req.Empty(recorder.Header().Get(ContentEncodingHeader))
		req.Equal("hello world", recorder.Body.String())
	})

	t.Run("the accept encoding header is stripped before the wrapped handler runs", func(t *testing.T) {
		var seen string
		handler := NewCompressionHandler(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			seen = request.Header.Get(AcceptEncodingHeader)
		}))

		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set(AcceptEncodingHeader, "br")

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		require.Empty(t, seen)
	})
}
