package grant

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is an exported constant or variable used by the grant engine.
var ErrStoreUnavailable = errors.New("grant store unavailable")

// ErrGrantNotFound is returned when the target grant does not exist.
var ErrGrantNotFound = errors.New("grant not found")

// ErrGrantExpired is returned when the target grant is past its expiry.
var ErrGrantExpired = errors.New("grant expired")

// ErrDuplicateID is returned when Create collides with an existing grant id.
var ErrDuplicateID = errors.New("grant id already exists")

// ErrSecretMismatch is returned when a claim's bearer secret does not match
// the stored hash.
var ErrSecretMismatch = errors.New("grant secret mismatch")

// ErrClaimHeld is returned when another caller holds a live reservation on
// the grant.
var ErrClaimHeld = errors.New("grant claimed by another caller")

// ErrNotClaimOwner is returned when a finalize or release presents a claim
// token that does not own the reservation.
var ErrNotClaimOwner = errors.New("claim token does not own reservation")

// ErrAlreadyResolved is the sentinel matched by [ResolvedError] values.
var ErrAlreadyResolved = errors.New("grant already resolved")

// ErrFinalizeConflict signals a claim/finalize discipline violation: a
// finalize that disagrees with an existing terminal status. It never occurs
// when callers obey the discipline and must be logged loudly, not retried.
var ErrFinalizeConflict = errors.New("conflicting terminal status for grant")

// ResolvedError reports the observed terminal status of an already-resolved
// grant. Matches [ErrAlreadyResolved] under errors.Is.
type ResolvedError struct {
	Status Status
}

// Error describes the error operation and its observable behavior.
func (e *ResolvedError) Error() string {
	return "grant already resolved: " + e.Status.String()
}

// Is reports whether the target is [ErrAlreadyResolved].
func (e *ResolvedError) Is(target error) bool {
	return target == ErrAlreadyResolved
}

const (
	claimStatusNotFound   int64 = 0
	claimStatusExpired    int64 = 1
	claimStatusResolved   int64 = 2
	claimStatusClaimed    int64 = 3
	claimStatusHeld       int64 = 4
	claimStatusMismatch   int64 = 5
	claimStatusCorrupt    int64 = 6
	finalizeStatusOK      int64 = 1
	finalizeStatusNoOp    int64 = 2
	finalizeStatusConfl   int64 = 3
	finalizeStatusActive  int64 = 4
	finalizeStatusNotOwn  int64 = 5
	releaseStatusReleased int64 = 1
	releaseStatusNoOp     int64 = 3
)

// luaCommon holds the binary-record helpers shared by every script. The
// offsets mirror the layout documented in encoder.go (Lua strings are
// 1-indexed, so each offset is the Go offset plus one).
const luaCommon = `
local function read_be64(s, i)
  local n = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    n = n * 256 + b
  end
  return n
end

local function write_be64(n)
  local b = {}
  for k = 8, 1, -1 do
    b[k] = n % 256
    n = math.floor(n / 256)
  end
  return string.char(b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])
end

local zeros8 = string.rep(string.char(0), 8)
local zeros16 = string.rep(string.char(0), 16)

local function store_blob(key, blob)
  local ttl = redis.call("PTTL", key)
  if ttl > 0 then
    redis.call("SET", key, blob, "PX", ttl)
  else
    redis.call("SET", key, blob)
  end
end

-- Rewrites the record as reserved by claim_token until deadline.
local function reserve_blob(data, claim_token, deadline)
  return string.sub(data, 1, 2)
    .. string.char(1)
    .. string.sub(data, 4, 19)
    .. write_be64(deadline)
    .. claim_token
    .. string.sub(data, 44)
end

-- Rewrites the record into a terminal status, stamping resolvedAt and
-- splicing the new detail string after the subject.
local function terminal_blob(data, status, now_unix, detail)
  local subject_len = string.byte(data, 84)
  if not subject_len then
    return nil
  end
  local detail_len_pos = 85 + subject_len
  local old_detail_len = string.byte(data, detail_len_pos)
  if not old_detail_len then
    return nil
  end
  return string.sub(data, 1, 2)
    .. string.char(status)
    .. string.sub(data, 4, 11)
    .. write_be64(now_unix)
    .. zeros8
    .. zeros16
    .. string.sub(data, 44, detail_len_pos - 1)
    .. string.char(string.len(detail))
    .. detail
    .. string.sub(data, detail_len_pos + 1 + old_detail_len)
end
`

const createScript = `
local key = KEYS[1]
local index_key = KEYS[2]
local blob = ARGV[1]
local grant_id = ARGV[2]
local px = tonumber(ARGV[3])
local index_ttl = tonumber(ARGV[4])

if redis.call("EXISTS", key) == 1 then
  return 0
end

redis.call("SET", key, blob, "PX", px)
redis.call("SADD", index_key, grant_id)
local remaining = redis.call("TTL", index_key)
if remaining >= 0 and remaining < index_ttl then
  redis.call("EXPIRE", index_key, index_ttl)
elseif remaining == -1 then
  redis.call("EXPIRE", index_key, index_ttl)
end
return 1
`

const claimScript = luaCommon + `
local key = KEYS[1]
local claim_token = ARGV[1]
local now_unix = tonumber(ARGV[2])
local deadline = tonumber(ARGV[3])
local provided_hash = ARGV[4]

local data = redis.call("GET", key)
if not data then
  return {0}
end

local status = string.byte(data, 3)
if not status then
  return {6}
end

if status == 2 or status == 3 then
  return {2, status}
end

local expires_at = read_be64(data, 4)
if not expires_at then
  return {6}
end

if status == 1 then
  local held_until = read_be64(data, 20)
  if held_until and held_until > now_unix then
    return {4}
  end
  -- stale reservation from a crashed claimant: eligible for takeover
end

if expires_at <= now_unix then
  local expired = terminal_blob(data, 3, now_unix, "expired")
  if not expired then
    return {6}
  end
  store_blob(key, expired)
  return {1}
end

if provided_hash ~= "" and string.sub(data, 44, 75) ~= provided_hash then
  return {5}
end

local reserved = reserve_blob(data, claim_token, deadline)
store_blob(key, reserved)
return {3, reserved}
`

const finalizeScript = luaCommon + `
local key = KEYS[1]
local claim_token = ARGV[1]
local terminal_status = tonumber(ARGV[2])
local detail = ARGV[3]
local now_unix = tonumber(ARGV[4])

local data = redis.call("GET", key)
if not data then
  return {0}
end

local status = string.byte(data, 3)
if status == terminal_status then
  return {2}
end
if status == 2 or status == 3 then
  return {3, status}
end
if status == 0 then
  return {4}
end

if string.sub(data, 28, 43) ~= claim_token then
  return {5}
end

local blob = terminal_blob(data, terminal_status, now_unix, detail)
if not blob then
  return {6}
end
store_blob(key, blob)
return {1}
`

const releaseScript = luaCommon + `
local key = KEYS[1]
local claim_token = ARGV[1]

local data = redis.call("GET", key)
if not data then
  return {0}
end

local status = string.byte(data, 3)
if status == 2 or status == 3 then
  return {2, status}
end
if status == 0 then
  return {3}
end

if string.sub(data, 28, 43) ~= claim_token then
  return {5}
end

local blob = string.sub(data, 1, 2)
  .. string.char(0)
  .. string.sub(data, 4, 19)
  .. zeros8
  .. zeros16
  .. string.sub(data, 44)
store_blob(key, blob)
return {1}
`

const revokeAllScript = luaCommon + `
local index_key = KEYS[1]
local key_prefix = ARGV[1]
local now_unix = tonumber(ARGV[2])
local detail = ARGV[3]

local members = redis.call("SMEMBERS", index_key)
local revoked = {}

for _, grant_id in ipairs(members) do
  local key = key_prefix .. grant_id
  local data = redis.call("GET", key)
  if not data then
    redis.call("SREM", index_key, grant_id)
  else
    local status = string.byte(data, 3)
    if status == 0 then
      local expires_at = read_be64(data, 4)
      if expires_at and expires_at <= now_unix then
        local blob = terminal_blob(data, 3, now_unix, "expired")
        if blob then
          store_blob(key, blob)
        end
      else
        local blob = terminal_blob(data, 3, now_unix, detail)
        if blob then
          store_blob(key, blob)
          table.insert(revoked, grant_id)
        end
      end
    end
    -- reserved grants belong to their claimant and are skipped; the
    -- reservation deadline bounds how long that exclusion lasts
  end
end

return revoked
`

var (
	createLua    = redis.NewScript(createScript)
	claimLua     = redis.NewScript(claimScript)
	finalizeLua  = redis.NewScript(finalizeScript)
	releaseLua   = redis.NewScript(releaseScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

// Store is the Redis-backed grant store. It is the only component permitted
// to mutate grant status; every status transition is a single Lua script so
// two concurrent callers on the same id always have exactly one winner.
//
// Reservation discipline: Claim flips ACTIVE to RESERVED and hands back a
// [ClaimToken]; Finalize commits CONSUMED or REVOKED for the token holder;
// Release returns a reserved grant to ACTIVE. A reservation carries a
// deadline after which any claimant may take it over, so a crashed caller
// cannot park a grant forever.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	retention   time.Duration
	reservation time.Duration
}

// NewStore creates a grant [Store] backed by the given Redis client.
// prefix sets the key namespace. retention controls how long terminal
// grants stay readable after expiry before Redis TTL garbage-collects them.
// reservation bounds how long a claim may stay unfinalized.
func NewStore(redisClient redis.UniversalClient, prefix string, retention, reservation time.Duration) *Store {
	if prefix == "" {
		prefix = "gr"
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if reservation <= 0 {
		reservation = 30 * time.Second
	}
	return &Store{
		redis:       redisClient,
		prefix:      prefix,
		retention:   retention,
		reservation: reservation,
	}
}

func (s *Store) kindSegment(kind Kind) string {
	if kind == KindSession {
		return "s"
	}
	return "o"
}

func (s *Store) key(kind Kind, id string) string {
	return s.prefix + ":" + s.kindSegment(kind) + ":" + id
}

func (s *Store) keyPrefix(kind Kind) string {
	return s.prefix + ":" + s.kindSegment(kind) + ":"
}

func (s *Store) indexKey(kind Kind, subject string) string {
	return s.prefix + ":u:" + s.kindSegment(kind) + ":" + subject
}

// Create inserts a new ACTIVE grant and registers it in the subject index.
// Fails with [ErrDuplicateID] if the id collides; callers retry with a
// fresh id (collision probability is negligible by construction).
func (s *Store) Create(ctx context.Context, g *Grant) error {
	if g.Status != StatusActive {
		return errors.New("grants are created active")
	}

	blob, err := Encode(g)
	if err != nil {
		return err
	}

	now := time.Now()
	px := time.Unix(g.ExpiresAt, 0).Sub(now) + s.retention
	if px <= 0 {
		px = s.retention
	}
	indexTTL := int64(px / time.Second)
	if indexTTL < 1 {
		indexTTL = 1
	}

	created, err := createLua.Run(
		ctx,
		s.redis,
		[]string{s.key(g.Kind, g.ID), s.indexKey(g.Kind, g.Subject)},
		blob,
		g.ID,
		px.Milliseconds(),
		indexTTL,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if created == 0 {
		return ErrDuplicateID
	}

	return nil
}

// Claim atomically reserves an ACTIVE, unexpired grant for exclusive
// resolution. providedHash, when non-nil, must match the stored secret hash
// (session bearer check) for the claim to succeed.
//
// An ACTIVE grant found past its expiry is converted to a stored
// REVOKED("expired") on this first contact (lazy expiry) and the claim
// fails with [ErrGrantExpired].
func (s *Store) Claim(ctx context.Context, kind Kind, id string, providedHash *[32]byte) (*Grant, ClaimToken, error) {
	var token ClaimToken
	if _, err := rand.Read(token[:]); err != nil {
		return nil, token, err
	}

	hashArg := ""
	if providedHash != nil {
		hashArg = string(providedHash[:])
	}

	now := time.Now()
	result, err := claimLua.Run(
		ctx,
		s.redis,
		[]string{s.key(kind, id)},
		string(token[:]),
		now.Unix(),
		now.Add(s.reservation).Unix(),
		hashArg,
	).Result()
	if err != nil {
		return nil, token, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, token, fmt.Errorf("%w: invalid claim script response", ErrStoreUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, token, fmt.Errorf("%w: invalid claim script status", ErrStoreUnavailable)
	}

	switch code {
	case claimStatusNotFound:
		return nil, token, ErrGrantNotFound
	case claimStatusExpired:
		return nil, token, ErrGrantExpired
	case claimStatusResolved:
		return nil, token, &ResolvedError{Status: scriptStatus(parts)}
	case claimStatusHeld:
		return nil, token, ErrClaimHeld
	case claimStatusMismatch:
		return nil, token, ErrSecretMismatch
	case claimStatusClaimed:
		if len(parts) < 2 {
			return nil, token, fmt.Errorf("%w: missing claimed grant payload", ErrStoreUnavailable)
		}
		blob, err := scriptBlob(parts[1])
		if err != nil {
			return nil, token, err
		}
		g, err := Decode(blob)
		if err != nil {
			return nil, token, err
		}
		g.ID = id
		return g, token, nil
	case claimStatusCorrupt:
		return nil, token, ErrGrantCorrupt
	default:
		return nil, token, fmt.Errorf("%w: unknown claim script status", ErrStoreUnavailable)
	}
}

// Finalize commits the terminal status for a previously claimed grant.
// Idempotent: a duplicate finalize with the same terminal status is a
// no-op. A conflicting finalize returns [ErrFinalizeConflict], which only
// occurs when the claim/finalize discipline is violated.
func (s *Store) Finalize(ctx context.Context, kind Kind, id string, token ClaimToken, status Status, detail string) error {
	if !status.Terminal() {
		return errors.New("finalize requires a terminal status")
	}

	result, err := finalizeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(kind, id)},
		string(token[:]),
		int64(status),
		detail,
		time.Now().Unix(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return fmt.Errorf("%w: invalid finalize script response", ErrStoreUnavailable)
	}
	code, _ := parts[0].(int64)

	switch code {
	case finalizeStatusOK, finalizeStatusNoOp:
		return nil
	case claimStatusNotFound:
		return ErrGrantNotFound
	case finalizeStatusConfl:
		return fmt.Errorf("%w: grant %s is %s", ErrFinalizeConflict, id, scriptStatus(parts))
	case finalizeStatusActive:
		return fmt.Errorf("%w: grant %s was never claimed", ErrFinalizeConflict, id)
	case finalizeStatusNotOwn:
		return ErrNotClaimOwner
	case claimStatusCorrupt:
		return ErrGrantCorrupt
	default:
		return fmt.Errorf("%w: unknown finalize script status", ErrStoreUnavailable)
	}
}

// Release returns a claimed-but-unresolved grant to ACTIVE so another
// attempt may proceed. Releasing an already-ACTIVE grant is a no-op;
// releasing a terminal grant reports the observed status.
func (s *Store) Release(ctx context.Context, kind Kind, id string, token ClaimToken) error {
	result, err := releaseLua.Run(
		ctx,
		s.redis,
		[]string{s.key(kind, id)},
		string(token[:]),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return fmt.Errorf("%w: invalid release script response", ErrStoreUnavailable)
	}
	code, _ := parts[0].(int64)

	switch code {
	case releaseStatusReleased, releaseStatusNoOp:
		return nil
	case claimStatusNotFound:
		return ErrGrantNotFound
	case claimStatusResolved:
		return &ResolvedError{Status: scriptStatus(parts)}
	case finalizeStatusNotOwn:
		return ErrNotClaimOwner
	default:
		return fmt.Errorf("%w: unknown release script status", ErrStoreUnavailable)
	}
}

// Get fetches a single grant without mutating any state. Expiry is applied
// as a read-time classification only; the stored record is untouched.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (*Grant, error) {
	data, err := s.redis.Get(ctx, s.key(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	g, err := Decode(data)
	if err != nil {
		return nil, err
	}
	g.ID = id
	return g, nil
}

// FindActiveBySubject lists the subject's ACTIVE, unexpired grants.
func (s *Store) FindActiveBySubject(ctx context.Context, kind Kind, subject string) ([]*Grant, error) {
	grants, err := s.findBySubject(ctx, kind, subject)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]*Grant, 0, len(grants))
	for _, g := range grants {
		if g.Status == StatusActive && !g.Expired(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

// FindBySubject lists every grant still retained for the subject, terminal
// ones included. Used for audit views; resolved grants stay readable until
// the retention TTL garbage-collects them.
func (s *Store) FindBySubject(ctx context.Context, kind Kind, subject string) ([]*Grant, error) {
	return s.findBySubject(ctx, kind, subject)
}

func (s *Store) findBySubject(ctx context.Context, kind Kind, subject string) ([]*Grant, error) {
	indexKey := s.indexKey(kind, subject)

	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Grant{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Grant{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(kind, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	grants := make([]*Grant, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		g, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		g.ID = ids[i]
		grants = append(grants, g)
	}

	if len(stale) > 0 {
		// index entries whose records the retention TTL already collected
		_ = s.redis.SRem(ctx, indexKey, stale...).Err()
	}

	return grants, nil
}

// RevokeAllBySubject claims and finalizes REVOKED every ACTIVE grant of the
// subject in one atomic script, returning the ids it revoked. ACTIVE grants
// found past expiry are lazily converted to REVOKED("expired") and not
// included. A second call returns an empty slice.
func (s *Store) RevokeAllBySubject(ctx context.Context, kind Kind, subject, detail string) ([]string, error) {
	result, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.indexKey(kind, subject)},
		s.keyPrefix(kind),
		time.Now().Unix(),
		detail,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid revoke-all script response", ErrStoreUnavailable)
	}
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id, ok := part.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Ping returns a point-in-time store availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func scriptStatus(parts []interface{}) Status {
	if len(parts) < 2 {
		return StatusRevoked
	}
	if v, ok := parts[1].(int64); ok {
		return Status(v)
	}
	return StatusRevoked
}

func scriptBlob(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	default:
		return nil, fmt.Errorf("%w: invalid script payload", ErrStoreUnavailable)
	}
}
