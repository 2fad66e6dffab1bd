package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

const HeaderIdempotencyKey = "Idempotency-Key"

const (
	DefaultMaxKeyLength = 255

	// a request that crashed mid-flight releases its key after this long
	DefaultLockTimeout = 5 * time.Minute

	// long enough to cover a handheld that reconnects after a shift break
	DefaultRetentionPeriod = 24 * time.Hour

	// larger responses (XLSX exports) are served but not stored
	DefaultMaxResponseSize = 1 << 20
)

var (
	errKeyRequired = errors.NewAppError("IDEMPOTENCY_KEY_REQUIRED", "Idempotency-Key header is required for this operation", http.StatusBadRequest)
	errMismatch    = errors.NewAppError("IDEMPOTENCY_PARAMETER_MISMATCH", "request parameters differ from the original request with this idempotency key", http.StatusUnprocessableEntity)
	errInFlight    = errors.NewAppError("IDEMPOTENCY_CONCURRENT_REQUEST", "a request with this idempotency key is currently being processed", http.StatusConflict)
	errStorage     = errors.NewAppError("IDEMPOTENCY_STORAGE_UNAVAILABLE", "idempotency storage is temporarily unavailable", http.StatusServiceUnavailable)
)

// Config controls Middleware. Scanners and packing stations retry on flaky
// Wi-Fi; a retried scan or transfer carrying the same Idempotency-Key gets
// the first response back instead of moving stock twice.
type Config struct {
	ServiceName string
	Repository  KeyRepository

	// RequireKey rejects mutating requests that carry no key
	RequireKey   bool
	OnlyMutating bool

	// UserIDExtractor scopes keys to the acting operator
	UserIDExtractor func(*gin.Context) string

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

func DefaultConfig(serviceName string, repository KeyRepository, logger *logging.Logger, m *metrics.Metrics) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		OnlyMutating:    true,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
		Logger:          logger,
		Metrics:         m,
	}
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without a key pass through unless RequireKey is set. Keys are
// scoped to (service, operator), so two operators reusing a client token
// never see each other's responses.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.OnlyMutating && !mutating(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		switch {
		case key == "" && config.RequireKey:
			middleware.AbortWithAppError(c, errKeyRequired)
			return
		case key == "":
			c.Next()
			return
		}
		if err := ValidateKeyWithMaxLength(key, config.MaxKeyLength); err != nil {
			middleware.AbortWithAppError(c, errors.NewAppError("IDEMPOTENCY_KEY_INVALID",
				fmt.Sprintf("invalid idempotency key: %v", err), http.StatusBadRequest))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		a := &attempt{config: config, c: c, key: key, fingerprint: ComputeFingerprint(body)}
		if config.UserIDExtractor != nil {
			a.userID = config.UserIDExtractor(c)
		}
		a.run()
	}
}

// attempt is one request carrying an idempotency key
type attempt struct {
	config      *Config
	c           *gin.Context
	key         string
	userID      string
	fingerprint string
}

func (a *attempt) outcome(result string) {
	a.config.Metrics.RecordIdempotency(result)
}

func (a *attempt) run() {
	c := a.c
	ctx := c.Request.Context()
	logger := a.config.Logger.WithContext(ctx).With("idempotencyKey", a.key, "path", c.Request.URL.Path)

	now := time.Now().UTC()
	stored, owned, err := a.config.Repository.AcquireLock(ctx, &IdempotencyKey{
		Key:                a.key,
		UserID:             a.userID,
		ServiceID:          a.config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      c.Request.Method,
		RequestFingerprint: a.fingerprint,
		CreatedAt:          now,
		ExpiresAt:          now.Add(a.config.RetentionPeriod),
	})
	if err != nil {
		logger.WithError(err).Error("Idempotency lock unavailable")
		a.outcome("storage_error")
		middleware.AbortWithAppError(c, errStorage)
		return
	}

	switch {
	case stored.RequestFingerprint != a.fingerprint || stored.RequestPath != c.Request.URL.Path:
		logger.Warn("Idempotency key reused with different parameters")
		a.outcome("mismatch")
		middleware.AbortWithAppError(c, errMismatch)
	case stored.IsCompleted():
		logger.Info("Replaying stored response", "statusCode", stored.ResponseCode)
		a.outcome("replay")
		for name, value := range stored.ResponseHeaders {
			c.Header(name, value)
		}
		c.Data(stored.ResponseCode, "application/json", stored.ResponseBody)
		c.Abort()
	case !owned && stored.IsLocked() && time.Since(*stored.LockedAt) < a.config.LockTimeout:
		a.outcome("concurrent")
		middleware.AbortWithAppError(c, errInFlight)
	default:
		a.outcome("miss")
		a.execute(stored.ID.Hex(), logger)
	}
}

// execute runs the handler and stores its response. 5xx responses release
// the key instead, so the client may retry with the same key.
func (a *attempt) execute(keyID string, logger *logging.Logger) {
	c := a.c
	ctx := c.Request.Context()

	recorder := &recordingWriter{ResponseWriter: c.Writer, status: http.StatusOK}
	c.Writer = recorder
	c.Next()

	if recorder.status >= http.StatusInternalServerError {
		if err := a.config.Repository.ReleaseLock(ctx, keyID); err != nil {
			logger.WithError(err).Error("Failed to release idempotency key")
		}
		return
	}

	body := recorder.body.Bytes()
	if len(body) > a.config.MaxResponseSize {
		logger.Warn("Response too large to store", "size", len(body))
		body = []byte(fmt.Sprintf(`{"code":"RESPONSE_NOT_CACHED","size":%d}`, len(body)))
	}
	if err := a.config.Repository.StoreResponse(ctx, keyID, recorder.status, body, firstHeaderValues(c.Writer.Header())); err != nil {
		logger.WithError(err).Error("Failed to store idempotent response")
		a.outcome("storage_error")
	}
}

// recordingWriter tees the response body so it can be stored
type recordingWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func firstHeaderValues(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
