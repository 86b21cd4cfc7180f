package api

import (
	"compress/gzip"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// decodeRequest reads a JSON request body into v. Bodies may be gzip-encoded.
// Malformed gzip, unknown fields and bodies past requestBodyLimit all fail
// the decode.
func decodeRequest(c echo.Context, v any) error {
	var body io.Reader = c.Request().Body
	if hasGzipEncoding(c.Request().Header.Get(echo.HeaderContentEncoding)) {
		gr, err := gzip.NewReader(body)
		if err != nil {
			return err
		}
		defer gr.Close()
		body = gr
	}

	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, requestBodyLimit))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func hasGzipEncoding(header string) bool {
	if header == "" {
		return false
	}
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}
