package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrKeyRequired = errors.New("idempotency key is required for this operation")
	ErrKeyInvalid  = errors.New("invalid idempotency key format")
	ErrKeyTooLong  = errors.New("idempotency key exceeds maximum length")
)

// IdempotencyKey is one client token together with the request it first
// arrived with and, once the handler finished, the response to replay.
// Keys are unique per (service, user, key).
type IdempotencyKey struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Key                string             `bson:"key"`
	UserID             string             `bson:"userId"`
	ServiceID          string             `bson:"serviceId"`
	RequestPath        string             `bson:"requestPath"`
	RequestMethod      string             `bson:"requestMethod"`
	RequestFingerprint string             `bson:"requestFingerprint"`

	LockedAt *time.Time `bson:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
}

func (ik *IdempotencyKey) IsCompleted() bool {
	return ik.CompletedAt != nil
}

// IsLocked reports an attempt that is still running
func (ik *IdempotencyKey) IsLocked() bool {
	return ik.LockedAt != nil && ik.CompletedAt == nil
}

// KeyRepository stores idempotency keys
type KeyRepository interface {
	// AcquireLock upserts the key and locks it. The bool reports whether this
	// call owns the attempt.
	AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)

	// ReleaseLock unlocks a key without storing a response so the client can retry
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse caches the final response and marks the key completed
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	EnsureIndexes(ctx context.Context) error
}

// ':' is allowed so services can derive keys such as "packing:<session>:<order>"
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_:.-]+$`)

const scopeSeparator = ":"

// ScopedKey joins parts into a derived key, e.g. the key a packing session
// sends downstream when it debits consumables for one order.
func ScopedKey(scope string, parts ...string) string {
	return strings.Join(append([]string{scope}, parts...), scopeSeparator)
}

// ValidateKey validates key against DefaultMaxKeyLength
func ValidateKey(key string) error {
	return ValidateKeyWithMaxLength(key, DefaultMaxKeyLength)
}

func ValidateKeyWithMaxLength(key string, maxLength int) error {
	switch {
	case key == "":
		return ErrKeyRequired
	case len(key) > maxLength:
		return ErrKeyTooLong
	case !keyPattern.MatchString(key):
		return ErrKeyInvalid
	}
	return nil
}

// ComputeFingerprint hashes a request body. JSON bodies are hashed in
// canonical form, so a retry that only reorders fields or changes whitespace
// still matches the original attempt.
func ComputeFingerprint(body []byte) string {
	hash := sha256.Sum256(canonicalJSON(body))
	return hex.EncodeToString(hash[:])
}

func canonicalJSON(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return trimmed
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return body
	}
	// encoding/json writes map keys sorted
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

// NormalizeKey trims surrounding whitespace
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
