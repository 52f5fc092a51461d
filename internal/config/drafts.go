package config

import "fmt"

const DBTypeRedis string = "redis"
const DBTypeRedisMock string = "redis-mock"
const DBTypeSQLite string = "sqlite"

type RedisConfig struct {
	Addresses  []string
	IsSentinel bool
	Password   RedactedString
	MasterName string
	DBIndex    int
}

type EncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

type DraftsConfig struct {
	Type       string
	Redis      RedisConfig
	SQLitePath string
	Encryption EncryptionConfig
}

func (c DraftsConfig) Validate(e RunningEnvironment) error {
	switch c.Type {
	case DBTypeRedis:
		if len(c.Redis.Addresses) == 0 {
			return fmt.Errorf("redis drafts store needs at least one address")
		}
		if c.Redis.IsSentinel && c.Redis.MasterName == "" {
			return fmt.Errorf("redis sentinel setup needs a master name")
		}
	case DBTypeRedisMock:
		if e != Development {
			return fmt.Errorf("drafts type cannot be \"redis-mock\" in production")
		}
	case DBTypeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite drafts store needs a file path")
		}
	default:
		return fmt.Errorf("unknown drafts store type %q (must be one of redis, redis-mock, sqlite)", c.Type)
	}
	if c.Encryption.Enabled && len(c.Encryption.SecretKey) != 32 {
		return fmt.Errorf(
			"draft encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.Encryption.SecretKey),
		)
	}
	return nil
}
