package middlewares

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GzipRequest decompresses gzip request bodies before the handlers see
// them. The statline HTTP handlers always post their payloads gzipped.
func GzipRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasGzipEncoding(c.Request.Header.Get("Content-Encoding")) {
			c.Next()
			return
		}

		zr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		raw := c.Request.Body
		c.Request.Body = readCloser{Reader: zr, close: func() error {
			zerr := zr.Close()
			if cerr := raw.Close(); zerr == nil {
				zerr = cerr
			}
			return zerr
		}}
		c.Request.Header.Del("Content-Length")

		c.Next()
	}
}

func hasGzipEncoding(enc string) bool {
	for _, part := range strings.Split(enc, ",") {
		if strings.EqualFold(strings.TrimSpace(part), "gzip") {
			return true
		}
	}
	return false
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }
