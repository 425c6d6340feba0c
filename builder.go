package grantcore

import (
	"errors"

	"github.com/railstack/grantcore/grant"
	"github.com/railstack/grantcore/jwt"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by grantcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	allocator Allocator
	sink      NotifySink

	built bool
}

// New describes the new operation and its observable behavior.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAllocator wires the external seat-allocation collaborator consumed by
// Accept. Engines built without one reject Accept calls.
func (b *Builder) WithAllocator(a Allocator) *Builder {
	b.allocator = a
	return b
}

// WithNotifySink wires the status/notification sink receiving GrantCreated
// and GrantResolved events.
func (b *Builder) WithNotifySink(sink NotifySink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and constructs the [Engine]. Build
// performs no I/O; the first store round-trip happens on the first Engine
// call.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	var jwtManager *jwt.Manager
	if b.config.JWT.Enabled {
		manager, err := jwt.NewManager(jwt.Config{
			AccessTTL:     b.config.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(b.config.JWT.SigningMethod),
			PrivateKey:    b.config.JWT.PrivateKey,
			PublicKey:     b.config.JWT.PublicKey,
			Issuer:        b.config.JWT.Issuer,
			Audience:      b.config.JWT.Audience,
			Leeway:        b.config.JWT.Leeway,
		})
		if err != nil {
			return nil, err
		}
		jwtManager = manager
	}

	engine := &Engine{
		config: b.config,
		store: grant.NewStore(
			b.redis,
			b.config.Grant.RedisPrefix,
			b.config.Grant.RetentionTTL,
			b.config.Grant.ClaimReservationTTL,
		),
		jwtManager: jwtManager,
		allocator:  b.allocator,
		notify:     newNotifyDispatcher(b.config.Notify, b.sink),
		metrics:    NewMetrics(b.config.Metrics),
	}

	b.built = true
	return engine, nil
}
