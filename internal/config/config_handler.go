package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix string = "POSTCTL"

type ConfigHandler struct {
	mainViper   *viper.Viper
	secretViper *viper.Viper
	lock        *sync.Mutex
}

func (c *ConfigHandler) HandleChanges(callback func(Config, error)) {
	c.mainViper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("CONFIG", "message", "main config file changed", "path", e.Name)
		callback(c.Config())
	})
	c.secretViper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("CONFIG", "message", "secret config file changed", "path", e.Name)
		callback(c.Config())
	})
}

// NewConfigHandler creates a configuration handler that reads the configuration files, merges them and can
// watch them for changes. Merges replace whole arrays. The secret file overwrites the regular file and
// environment variables overwrite both, so the order of preference is env variables, secret config,
// regular config, built-in defaults. Both files are optional for the CLI.
func NewConfigHandler() *ConfigHandler {
	// a missing .env file is the common case
	_ = godotenv.Load()
	main := viper.New()
	main.SetConfigType("yaml")
	main.SetConfigName("config")
	setDefaults(main)
	secret := viper.New()
	secret.SetConfigType("yaml")
	secret.SetConfigName("secret_config")
	// Viper uses the first path that has a file, so the env variable always takes precedence
	configPaths := []string{}
	configPathEnv := os.Getenv("CONFIG_LOCATION")
	if configPathEnv != "" {
		configPaths = append(configPaths, configPathEnv)
	}
	if home, err := os.UserHomeDir(); err == nil {
		configPaths = append(configPaths, filepath.Join(home, ".postctl"))
	}
	configPaths = append(configPaths, ".")
	for _, path := range configPaths {
		main.AddConfigPath(path)
		secret.AddConfigPath(path)
	}
	return &ConfigHandler{secretViper: secret, mainViper: main, lock: &sync.Mutex{}}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runningEnvironment", string(Production))
	v.SetDefault("debugMode", false)
	v.SetDefault("api.baseURL", "http://localhost:3000")
	v.SetDefault("api.basePath", "/api")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.refreshPath", "/auth/refresh")
	v.SetDefault("api.cancelSuperseded", false)
	v.SetDefault("api.sessionCookieName", "access_token")
	v.SetDefault("api.rateLimits.enabled", false)
	v.SetDefault("api.rateLimits.rate", 10.0)
	v.SetDefault("api.rateLimits.burst", 20)
	v.SetDefault("session.idleTimeout", "15m")
	v.SetDefault("session.keepaliveInterval", "14m")
	v.SetDefault("session.loginPath", "/login")
	v.SetDefault("drafts.type", DBTypeSQLite)
	v.SetDefault("drafts.sqlitePath", "postctl-drafts.db")
	v.SetDefault("drafts.redis.addresses", []string{})
	v.SetDefault("drafts.redis.isSentinel", false)
	v.SetDefault("drafts.redis.password", "")
	v.SetDefault("drafts.redis.masterName", "")
	v.SetDefault("drafts.redis.dbIndex", 0)
	v.SetDefault("drafts.encryption.enabled", false)
	v.SetDefault("drafts.encryption.secretKey", "")
	v.SetDefault("upload.partSize", 25*1024*1024)
	v.SetDefault("upload.concurrency", 2)
	v.SetDefault("upload.secure", true)
	v.SetDefault("upload.endpoint", "")
	v.SetDefault("agent.host", "127.0.0.1")
	v.SetDefault("agent.port", 8765)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSizeMB", 50)
	v.SetDefault("logging.maxBackups", 3)
	v.SetDefault("monitoring.sentry.enabled", false)
	v.SetDefault("monitoring.sentry.dsn", "")
	v.SetDefault("monitoring.sentry.environment", "")
	v.SetDefault("monitoring.sentry.sampleRate", 0.0)
	v.SetDefault("monitoring.prometheus.enabled", false)
	v.SetDefault("monitoring.prometheus.port", 8766)
}

func decodeHooks() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			parseStringAsURL(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}

func (c *ConfigHandler) merge() error {
	var cm map[string]any
	err := c.secretViper.Unmarshal(&cm, decodeHooks())
	if err != nil {
		return err
	}
	return c.mainViper.MergeConfigMap(cm)
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

func (c *ConfigHandler) getConfig() (Config, error) {
	var output Config
	err := c.mainViper.ReadInConfig()
	if err != nil {
		if !isNotFound(err) {
			return Config{}, err
		}
		slog.Debug("CONFIG", "message", "could not find a config file - only defaults and environment variables will be used")
	}
	err = c.secretViper.ReadInConfig()
	if err != nil {
		if !isNotFound(err) {
			return Config{}, err
		}
		slog.Debug("CONFIG", "message", "could not find any secret config files")
	}
	// env variables overwrite the secret config if set
	for _, key := range c.mainViper.AllKeys() {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		err := c.secretViper.BindEnv(key, envKey)
		if err != nil {
			return Config{}, fmt.Errorf("config: unable to bind env %s: %w", envKey, err)
		}
	}
	// the secret config (with env variables merged) overwrites the regular configuration
	err = c.merge()
	if err != nil {
		return Config{}, err
	}
	err = c.mainViper.Unmarshal(&output, decodeHooks())
	if err != nil {
		return Config{}, err
	}
	err = output.Validate()
	if err != nil {
		return Config{}, err
	}
	return output, nil
}

func (c *ConfigHandler) Config() (Config, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.getConfig()
}

// ConfigFileUsed returns the path of the main configuration file, empty when only defaults are in use.
func (c *ConfigHandler) ConfigFileUsed() string {
	return c.mainViper.ConfigFileUsed()
}

func (c *ConfigHandler) Watch() {
	if c.mainViper.ConfigFileUsed() != "" {
		c.mainViper.WatchConfig()
	}
	if c.secretViper.ConfigFileUsed() != "" {
		c.secretViper.WatchConfig()
	}
}

func parseStringAsURL() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(url.URL{}) {
			return data, nil
		}
		dataStr, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("cannot cast URL value to string")
		}
		if dataStr == "" {
			return nil, fmt.Errorf("empty values are not allowed for URLs")
		}
		url, err := url.Parse(dataStr)
		if err != nil {
			return nil, err
		}
		return url, nil
	}
}
