package capture

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Pooled decompression readers. The recorder decodes every response body it
// preserves, so reader reuse matters on busy captures.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} { return new(gzip.Reader) },
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} { return brotli.NewReader(nil) },
	}
)

var emptyReader = strings.NewReader("")

// DecodeBody decodes a captured response body according to its
// Content-Encoding header value. Layered encodings are listed in application
// order, so decoding walks the list in reverse. Identity and empty layers are
// skipped; an unknown layer is an error and the caller should keep the raw
// bytes instead.
func DecodeBody(data []byte, contentEncoding string) ([]byte, error) {
	if len(data) == 0 || contentEncoding == "" {
		return data, nil
	}

	encodings := strings.Split(contentEncoding, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		var err error
		switch encoding {
		case "gzip":
			data, err = decodeGzip(data)
		case "br":
			data, err = decodeBrotli(data)
		case "deflate":
			data, err = decodeDeflate(data)
		case "identity", "":
			continue
		default:
			return nil, fmt.Errorf("unsupported content encoding layer: %s", encoding)
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s layer: %w", encoding, err)
		}
	}
	return data, nil
}

func decodeGzip(data []byte) ([]byte, error) {
	zr := gzipReaderPool.Get().(*gzip.Reader)
	defer func() {
		_ = zr.Reset(emptyReader)
		gzipReaderPool.Put(zr)
	}()
	if err := zr.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return io.ReadAll(zr)
}

func decodeBrotli(data []byte) ([]byte, error) {
	br := brotliReaderPool.Get().(*brotli.Reader)
	defer func() {
		_ = br.Reset(emptyReader)
		brotliReaderPool.Put(br)
	}()
	if err := br.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return io.ReadAll(br)
}

// decodeDeflate tries zlib-wrapped deflate first (RFC 1950), then falls back
// to a raw deflate stream (RFC 1951). Servers disagree on which one the
// "deflate" token means.
func decodeDeflate(data []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		defer zr.Close()
		return io.ReadAll(zr)
	}
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	return io.ReadAll(fr)
}
