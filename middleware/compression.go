package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	AcceptEncodingHeader  = "Accept-Encoding"
	ContentEncodingHeader = "Content-Encoding"
	ContentLengthHeader   = "Content-Length"

	BrotliEncoding = "br"
	GzipEncoding   = "gzip"
)

// NewCompressionHandler wraps a http.Handler with response compression negotiated from the request's Accept-Encoding
// header. Brotli is preferred over gzip; requests accepting neither pass through untouched. The Accept-Encoding
// header is removed from the request before it is forwarded so that wrapped handlers do not compress a second time.
func NewCompressionHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		encoding := selectEncoding(request.Header.Get(AcceptEncodingHeader))

		if encoding == "" {
			next.ServeHTTP(writer, request)
			return
		}

		request.Header.Del(AcceptEncodingHeader)

		var compressor io.WriteCloser
		switch encoding {
		case BrotliEncoding:
			compressor = brotli.NewWriter(writer)
		case GzipEncoding:
			compressor = gzip.NewWriter(writer)
		}

		writer.Header().Set(ContentEncodingHeader, encoding)
		writer.Header().Add("Vary", AcceptEncodingHeader)

		compressedWriter := &compressResponseWriter{
			ResponseWriter: writer,
			compressor:     compressor,
		}

		defer func() {
			_ = compressor.Close()
		}()

		next.ServeHTTP(compressedWriter, request)
	})
}

// selectEncoding picks the strongest supported encoding offered by an Accept-Encoding header value.
func selectEncoding(acceptEncoding string) string {
	supportsGzip := false

	for _, entry := range strings.Split(acceptEncoding, ",") {
		token := entry
		if idx := strings.Index(token, ";"); idx >= 0 {
			token = token[:idx]
		}
		token = strings.TrimSpace(token)

		switch token {
		case BrotliEncoding:
			return BrotliEncoding
		case GzipEncoding:
			supportsGzip = true
		}
	}

	if supportsGzip {
		return GzipEncoding
	}

	return ""
}

type compressResponseWriter struct {
	http.ResponseWriter
	compressor io.WriteCloser
}

func (writer *compressResponseWriter) WriteHeader(statusCode int) {
	//the compressed length is unknown, the stated length would be the uncompressed one
	writer.Header().Del(ContentLengthHeader)
	writer.ResponseWriter.WriteHeader(statusCode)
}

func (writer *compressResponseWriter) Write(data []byte) (int, error) {
	writer.Header().Del(ContentLengthHeader)
	return writer.compressor.Write(data)
}
