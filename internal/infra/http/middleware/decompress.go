package middleware

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/armorlens/api/pkg/apierror"
)

var errDecompressedTooLarge = errors.New("decompressed body exceeds limit")

// DecompressConfig configures the decompression middleware.
type DecompressConfig struct {
	// MaxDecompressedSize caps the inflated body. Default: 32MB.
	MaxDecompressedSize int64

	// MaxCompressedSize caps the compressed input. Default: 8MB.
	MaxCompressedSize int64

	// MaxCompressionRatio rejects bodies that inflate more than this.
	// Default: 100.
	MaxCompressionRatio float64

	// AllowedEncodings specifies which encodings are allowed.
	// Default: ["gzip", "zstd"]
	AllowedEncodings []string
}

// DefaultDecompressConfig returns the default configuration.
func DefaultDecompressConfig() *DecompressConfig {
	return &DecompressConfig{
		MaxDecompressedSize: 32 << 20,
		MaxCompressedSize:   8 << 20,
		MaxCompressionRatio: 100,
		AllowedEncodings:    []string{"gzip", "zstd"},
	}
}

// UploadDecompressConfig sizes decompression for CSV uploads of up to
// maxCSV bytes. CSV compresses well, so the ratio limit is generous.
func UploadDecompressConfig(maxCSV int64) *DecompressConfig {
	cfg := DefaultDecompressConfig()
	if maxCSV > 0 {
		cfg.MaxDecompressedSize = maxCSV
		cfg.MaxCompressedSize = maxCSV
	}
	cfg.MaxCompressionRatio = 200
	return cfg
}

// Decompress inflates request bodies sent with Content-Encoding gzip or
// zstd. Place it before BodyLimit so the limit applies to the inflated
// size.
func Decompress(cfg *DecompressConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultDecompressConfig()
	}

	allowed := make(map[string]bool, len(cfg.AllowedEncodings))
	for _, enc := range cfg.AllowedEncodings {
		allowed[strings.ToLower(enc)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			if encoding == "" || encoding == "identity" || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			requestID := GetRequestID(r.Context())
			if !allowed[encoding] {
				apierror.New(http.StatusUnsupportedMediaType, apierror.CodeBadRequest,
					fmt.Sprintf("Unsupported Content-Encoding %q", encoding)).WriteJSONWithRequestID(w, requestID)
				return
			}

			body, err := inflate(r.Body, encoding, cfg)
			if err != nil {
				if errors.Is(err, errDecompressedTooLarge) {
					apierror.RequestTooLarge(cfg.MaxDecompressedSize).WriteJSONWithRequestID(w, requestID)
					return
				}
				apierror.BadRequest("Invalid compressed request body").WithError(err).WriteJSONWithRequestID(w, requestID)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")

			next.ServeHTTP(w, r)
		})
	}
}

// inflate reads the whole compressed body and decodes it, enforcing the
// size and ratio limits while streaming.
func inflate(body io.ReadCloser, encoding string, cfg *DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressed, err := io.ReadAll(io.LimitReader(body, cfg.MaxCompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read compressed body: %w", err)
	}
	if int64(len(compressed)) > cfg.MaxCompressedSize {
		return nil, errDecompressedTooLarge
	}
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		//nolint:gosec // MaxDecompressedSize is positive
		zr, err := zstd.NewReader(bytes.NewReader(compressed),
			zstd.WithDecoderMaxMemory(uint64(cfg.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}

	limit := cfg.MaxDecompressedSize
	if byRatio := int64(float64(len(compressed)) * cfg.MaxCompressionRatio); cfg.MaxCompressionRatio > 0 && byRatio < limit {
		limit = byRatio
	}

	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if n > limit {
		return nil, errDecompressedTooLarge
	}
	return out.Bytes(), nil
}
