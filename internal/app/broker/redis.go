package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const latest = "latest"

// RedisBroker keeps published artifacts in redis, one key per version plus a
// "latest" key pointing at the most recent publish.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(addr string) *RedisBroker {
	return &RedisBroker{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

func Key(consumer, provider, version string) string {
	return fmt.Sprintf("pact:%s-%s:%s", consumer, provider, version)
}

func (r *RedisBroker) Publish(ctx context.Context, a *contract.Artifact, version string) error {
	if version == "" {
		return errors.New("a version is required to publish")
	}

	data, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "unable to encode artifact")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, Key(a.Consumer, a.Provider, version), data, 0)
		pipe.Set(ctx, Key(a.Consumer, a.Provider, latest), data, 0)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "unable to store %s in redis", contract.FileName(a.Consumer, a.Provider))
	}

	log.Infof("published %s version %s to redis", contract.FileName(a.Consumer, a.Provider), version)
	return nil
}

// Fetch reads back the artifact stored for version, "latest" included.
func (r *RedisBroker) Fetch(ctx context.Context, consumer, provider, version string) (*contract.Artifact, error) {
	data, err := r.client.Get(ctx, Key(consumer, provider, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Errorf("no artifact published for %s version %s", contract.FileName(consumer, provider), version)
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read artifact from redis")
	}
	return contract.Parse(data)
}

func (r *RedisBroker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBroker) Close() error {
	return r.client.Close()
}
