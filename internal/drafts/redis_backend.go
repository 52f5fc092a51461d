package drafts

import (
	"context"
	"encoding"
	"fmt"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/socialpost/postctl/internal/config"
)

const (
	recordPrefix string = "draft-"
	indexPrefix  string = "draftIndex-"
)

// RedisBackend stores every record as a hash and keeps a set of keys per namespace for listing.
type RedisBackend struct {
	rdb LimitedRedisClient
}

// serializeStruct returns a list of alternating struct fields and values from the provided struct.
// Used to easily save a struct as a Hash in redis. It will only deconstruct exported fields.
func (RedisBackend) serializeStruct(strct any) []any {
	v := reflect.ValueOf(strct)
	t := v.Type()
	var output []any
	for i := 0; i < v.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		fieldName := t.Field(i).Name
		fieldValue := v.Field(i).Interface()
		marshaller, ok := fieldValue.(encoding.TextMarshaler)
		if !ok {
			output = append(output, fieldName, fieldValue)
			continue
		}
		rawBytes, err := marshaller.MarshalText()
		if err != nil {
			output = append(output, fieldName, fieldValue)
			continue
		}
		output = append(output, fieldName, string(rawBytes))
	}
	return output
}

// deserializeToStruct takes a result from a Hash value in Redis and converts it to a struct
func (RedisBackend) deserializeToStruct(hash map[string]string, output any) error {
	if len(hash) == 0 {
		// HGetAll returns an empty map when the key does not exist
		return apierrors.ErrDraftNotFound
	}
	decoder, err := mapstructure.NewDecoder(
		&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result: output,
		},
	)
	if err != nil {
		return err
	}
	return decoder.Decode(hash)
}

func recordKey(namespace, key string) string {
	return recordPrefix + namespace + "_" + key
}

func (r RedisBackend) Get(ctx context.Context, namespace, key string) (Record, error) {
	hash, err := r.rdb.HGetAll(ctx, recordKey(namespace, key)).Result()
	if err != nil {
		return Record{}, err
	}
	var record Record
	err = r.deserializeToStruct(hash, &record)
	return record, err
}

func (r RedisBackend) Set(ctx context.Context, record Record) error {
	err := r.rdb.HSet(ctx, recordKey(record.Namespace, record.Key), r.serializeStruct(record)...).Err()
	if err != nil {
		return err
	}
	return r.rdb.SAdd(ctx, indexPrefix+record.Namespace, record.Key).Err()
}

func (r RedisBackend) Delete(ctx context.Context, namespace, key string) error {
	err := r.rdb.Del(ctx, recordKey(namespace, key)).Err()
	if err != nil {
		return err
	}
	return r.rdb.SRem(ctx, indexPrefix+namespace, key).Err()
}

func (r RedisBackend) List(ctx context.Context, namespace string) ([]Record, error) {
	keys, err := r.rdb.SMembers(ctx, indexPrefix+namespace).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		record, err := r.Get(ctx, namespace, key)
		if err == apierrors.ErrDraftNotFound {
			// the index can outlive a record that was removed by hand
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r RedisBackend) Clear(ctx context.Context, namespace string) error {
	keys, err := r.rdb.SMembers(ctx, indexPrefix+namespace).Result()
	if err != nil {
		return err
	}
	toDelete := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		toDelete = append(toDelete, recordKey(namespace, key))
	}
	toDelete = append(toDelete, indexPrefix+namespace)
	return r.rdb.Del(ctx, toDelete...).Err()
}

func (r RedisBackend) Close() error {
	closer, ok := r.rdb.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

type RedisBackendOption func(*RedisBackend) error

func WithRedisConfig(draftsConfig config.DraftsConfig) RedisBackendOption {
	return func(r *RedisBackend) error {
		redisConfig := draftsConfig.Redis
		switch draftsConfig.Type {
		case config.DBTypeRedis:
			if redisConfig.IsSentinel {
				r.rdb = redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:       redisConfig.MasterName,
					SentinelAddrs:    redisConfig.Addresses,
					Password:         string(redisConfig.Password),
					DB:               redisConfig.DBIndex,
					SentinelPassword: string(redisConfig.Password),
				})
				return nil
			}
			r.rdb = redis.NewClient(&redis.Options{
				Password: string(redisConfig.Password),
				DB:       redisConfig.DBIndex,
				Addr:     redisConfig.Addresses[0],
			})
			return nil
		case config.DBTypeRedisMock:
			r.rdb = NewMockRedisClient()
			return nil
		default:
			return fmt.Errorf("unrecognized persistence type %v", draftsConfig.Type)
		}
	}
}

func WithRedisClient(rdb LimitedRedisClient) RedisBackendOption {
	return func(r *RedisBackend) error {
		r.rdb = rdb
		return nil
	}
}

func NewRedisBackend(options ...RedisBackendOption) (*RedisBackend, error) {
	backend := RedisBackend{}
	for _, opt := range options {
		err := opt(&backend)
		if err != nil {
			return nil, err
		}
	}
	if backend.rdb == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	return &backend, nil
}
