package drafts

import (
	"context"
	"encoding"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient implements LimitedRedisClient in memory. It is only suitable for tests and development:
// the integer results are always 1 regardless of how many records were affected and contexts are ignored.
type MockRedisClient struct {
	lock  sync.Mutex
	store map[string]any
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{store: map[string]any{}}
}

func convertValuesToMap(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return map[string]any{}, fmt.Errorf("number of provided values must be even")
	}
	output := map[string]any{}
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return map[string]any{}, fmt.Errorf("hash field names must be strings, got %T", values[i])
		}
		output[key] = values[i+1]
	}
	return output, nil
}

func (m *MockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.IntCmd{}
	val, err := convertValuesToMap(values...)
	if err != nil {
		res.SetErr(err)
		return &res
	}
	m.store[key] = val
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.MapStringStringCmd{}
	res.SetVal(map[string]string{})
	val, found := m.store[key]
	if !found {
		return &res
	}
	hash, ok := val.(map[string]any)
	if !ok {
		res.SetErr(fmt.Errorf("WRONGTYPE key %s does not hold a hash", key))
		return &res
	}
	output := map[string]string{}
	for k, v := range hash {
		switch typed := v.(type) {
		case string:
			output[k] = typed
		case encoding.TextMarshaler:
			raw, err := typed.MarshalText()
			if err != nil {
				res.SetErr(err)
				return &res
			}
			output[k] = string(raw)
		default:
			output[k] = fmt.Sprint(typed)
		}
	}
	res.SetVal(output)
	return &res
}

func (m *MockRedisClient) set(key string) (map[string]struct{}, error) {
	val, found := m.store[key]
	if !found {
		members := map[string]struct{}{}
		m.store[key] = members
		return members, nil
	}
	members, ok := val.(map[string]struct{})
	if !ok {
		return nil, fmt.Errorf("WRONGTYPE key %s does not hold a set", key)
	}
	return members, nil
}

func (m *MockRedisClient) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.IntCmd{}
	set, err := m.set(key)
	if err != nil {
		res.SetErr(err)
		return &res
	}
	for _, member := range members {
		set[fmt.Sprint(member)] = struct{}{}
	}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.StringSliceCmd{}
	res.SetVal([]string{})
	if _, found := m.store[key]; !found {
		return &res
	}
	set, err := m.set(key)
	if err != nil {
		res.SetErr(err)
		return &res
	}
	output := make([]string, 0, len(set))
	for member := range set {
		output = append(output, member)
	}
	sort.Strings(output)
	res.SetVal(output)
	return &res
}

func (m *MockRedisClient) SRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.IntCmd{}
	if _, found := m.store[key]; !found {
		res.SetVal(0)
		return &res
	}
	set, err := m.set(key)
	if err != nil {
		res.SetErr(err)
		return &res
	}
	for _, member := range members {
		delete(set, fmt.Sprint(member))
	}
	res.SetVal(1)
	return &res
}
