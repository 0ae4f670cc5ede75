package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenforge/authd/token"
)

const (
	secretKeyPrefix = "ask"
	authcodePrefix  = "aac"
)

// Secret key records are "<created-unix>:<key>" so the creation instant
// survives independently of the Redis TTL clock. The logical age check
// happens on every Get; Redis expiry is only a floor for cleanup.

// RedisSecretKeys is the production SecretKeys implementation.
type RedisSecretKeys struct {
	redis  redis.UniversalClient
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedisSecretKeys returns a SecretKeys store on client. maxAge bounds
// how long a stored key stays readable and doubles as the Redis TTL.
func NewRedisSecretKeys(client redis.UniversalClient, maxAge time.Duration) *RedisSecretKeys {
	return &RedisSecretKeys{
		redis:  client,
		prefix: secretKeyPrefix,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (s *RedisSecretKeys) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Get reads the key for tokenID, enforcing the logical maximum age on
// top of the store-side TTL. A record found past its age is deleted and
// reported absent.
func (s *RedisSecretKeys) Get(ctx context.Context, tokenID string) (token.SecretKey, error) {
	raw, err := s.redis.Get(ctx, s.key(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSecretKeyNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	createdAt, secret, err := decodeSecretKeyRecord(raw)
	if err != nil {
		return "", err
	}

	if s.now().Sub(createdAt) > s.maxAge {
		if err := s.redis.Del(ctx, s.key(tokenID)).Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", ErrSecretKeyNotFound
	}

	return secret, nil
}

// Add stores key under tokenID with the configured lifetime.
func (s *RedisSecretKeys) Add(ctx context.Context, tokenID string, key token.SecretKey) error {
	record := encodeSecretKeyRecord(s.now(), key)
	if err := s.redis.Set(ctx, s.key(tokenID), record, s.maxAge).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Remove deletes the key for tokenID. Deleting an absent key succeeds.
func (s *RedisSecretKeys) Remove(ctx context.Context, tokenID string) error {
	if err := s.redis.Del(ctx, s.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func encodeSecretKeyRecord(createdAt time.Time, key token.SecretKey) string {
	return strconv.FormatInt(createdAt.Unix(), 10) + ":" + string(key)
}

func decodeSecretKeyRecord(raw string) (time.Time, token.SecretKey, error) {
	sep := strings.IndexByte(raw, ':')
	if sep < 1 {
		return time.Time{}, "", fmt.Errorf("%w: corrupt secret key record", ErrUnavailable)
	}
	unix, err := strconv.ParseInt(raw[:sep], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: corrupt secret key record", ErrUnavailable)
	}
	return time.Unix(unix, 0), token.SecretKey(raw[sep+1:]), nil
}

// Authcode buckets are one Redis LIST per email holding
// "<created-unix>:<code>" entries in insertion order. Both scripts run
// the whole check/mutate sequence inside Redis, so concurrent requests
// for the same email cannot race past the capacity check or pop the
// same code twice.

const (
	authcodeAddRejected int64 = 0
	authcodeAddStored   int64 = 1

	authcodePopMissing int64 = 0
	authcodePopExpired int64 = 1
	authcodePopMatched int64 = 2
)

// KEYS[1] bucket, ARGV[1] entry, ARGV[2] cap, ARGV[3] now, ARGV[4] max age seconds.
var addAuthcodeLua = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) >= tonumber(ARGV[2]) then
  local oldest = redis.call('LINDEX', KEYS[1], 0)
  local sep = string.find(oldest, ':', 1, true)
  local created = tonumber(string.sub(oldest, 1, sep - 1))
  if tonumber(ARGV[3]) - created <= tonumber(ARGV[4]) then
    return 0
  end
  redis.call('LPOP', KEYS[1])
end
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

// KEYS[1] bucket, ARGV[1] code, ARGV[2] now, ARGV[3] max age seconds.
var popAuthcodeLua = redis.NewScript(`
local entries = redis.call('LRANGE', KEYS[1], 0, -1)
for _, entry in ipairs(entries) do
  local sep = string.find(entry, ':', 1, true)
  if string.sub(entry, sep + 1) == ARGV[1] then
    redis.call('LREM', KEYS[1], 1, entry)
    local created = tonumber(string.sub(entry, 1, sep - 1))
    if tonumber(ARGV[2]) - created > tonumber(ARGV[3]) then
      return {1, 0}
    end
    return {2, created}
  end
end
return {0, 0}
`)

// RedisAuthcodes is the production Authcodes implementation.
type RedisAuthcodes struct {
	redis     redis.UniversalClient
	prefix    string
	bucketCap int
	maxAge    time.Duration
	now       func() time.Time
}

// NewRedisAuthcodes returns an Authcodes store holding at most bucketCap
// live codes per email, each expiring maxAge after creation.
func NewRedisAuthcodes(client redis.UniversalClient, bucketCap int, maxAge time.Duration) *RedisAuthcodes {
	return &RedisAuthcodes{
		redis:     client,
		prefix:    authcodePrefix,
		bucketCap: bucketCap,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

func (s *RedisAuthcodes) key(email string) string {
	return s.prefix + ":" + email
}

// Add appends the code to its email's bucket; a full bucket whose
// oldest entry is still live refuses the insert.
func (s *RedisAuthcodes) Add(ctx context.Context, authcode Authcode) error {
	createdAt := authcode.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	entry := strconv.FormatInt(createdAt.Unix(), 10) + ":" + authcode.Code

	status, err := addAuthcodeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(authcode.UserEmail)},
		entry,
		s.bucketCap,
		s.now().Unix(),
		int64(s.maxAge/time.Second),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if status == authcodeAddRejected {
		return ErrAuthcodeBucketFull
	}
	return nil
}

// Pop removes the matching entry. Expired matches are removed too but
// reported absent, so a code can never be consumed twice nor revived.
func (s *RedisAuthcodes) Pop(ctx context.Context, email, code string) (Authcode, error) {
	result, err := popAuthcodeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(email)},
		code,
		s.now().Unix(),
		int64(s.maxAge/time.Second),
	).Int64Slice()
	if err != nil {
		return Authcode{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(result) != 2 {
		return Authcode{}, fmt.Errorf("%w: invalid pop script response", ErrUnavailable)
	}

	switch result[0] {
	case authcodePopMatched:
		return Authcode{
			UserEmail: email,
			Code:      code,
			CreatedAt: time.Unix(result[1], 0),
		}, nil
	case authcodePopMissing, authcodePopExpired:
		return Authcode{}, ErrAuthcodeNotFound
	default:
		return Authcode{}, fmt.Errorf("%w: unknown pop script status", ErrUnavailable)
	}
}
