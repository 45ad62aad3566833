// Package config loads the YAML configuration. Struct `default:` tags are
// applied before the file is parsed and `env:` tags override the parsed
// values, so secrets never need to live in the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = "1"

	DefaultConfigPath = "config.yaml"
	EnvConfigPath     = "RACE_POSTS_CONFIG"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

type Config struct {
	Version   string          `yaml:"version" default:"1"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Identity  IdentityConfig  `yaml:"identity"`
	Image     ImageConfig     `yaml:"image"`
	Blob      BlobConfig      `yaml:"blob"`
	Documents DocumentsConfig `yaml:"documents"`
	HTTP      HTTPConfig      `yaml:"http"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0" env:"RACE_POSTS_HOST"`
	Port string `yaml:"port" default:"12600" env:"PORT"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" env:"LOG_LEVEL"`
	Format string `yaml:"format" default:"console" env:"LOG_FORMAT"`
}

// IdentityConfig names the owner stamped on new posts until real
// authentication exists.
type IdentityConfig struct {
	DefaultOwner string `yaml:"default_owner" default:"fTs84KRoYw5pRZEWCq2Z" env:"RACE_POSTS_OWNER"`
}

type ImageConfig struct {
	MaxBytes int64 `yaml:"max_bytes" default:"500000"`
}

type BlobConfig struct {
	Backend        string             `yaml:"backend" default:"firebase" env:"RACE_POSTS_BLOB_BACKEND"`
	DiscardOrphans bool               `yaml:"discard_orphans" default:"false"`
	Firebase       FirebaseBlobConfig `yaml:"firebase"`
	S3             S3Config           `yaml:"s3"`
}

type FirebaseBlobConfig struct {
	BucketURL   string `yaml:"bucket_url" default:"https://firebasestorage.googleapis.com/v0/b/race-rest.appspot.com/o"`
	MediaSuffix string `yaml:"media_suffix" default:"alt=media"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	Region          string `yaml:"region" default:"auto"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"-" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"S3_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	KeyPrefix       string `yaml:"key_prefix" default:"images/"`
}

type DocumentsConfig struct {
	Backend  string                 `yaml:"backend" default:"firebase" env:"RACE_POSTS_DOCUMENT_BACKEND"`
	Firebase FirebaseDocumentConfig `yaml:"firebase"`
	SQLite   SQLiteConfig           `yaml:"sqlite"`
}

type FirebaseDocumentConfig struct {
	CollectionURL string `yaml:"collection_url" default:"https://race-rest-default-rtdb.firebaseio.com/posts"`
	Suffix        string `yaml:"suffix" default:".json"`
	AuthToken     string `yaml:"-" env:"FIREBASE_AUTH_TOKEN"`
}

type SQLiteConfig struct {
	Path        string `yaml:"path" default:"./posts.db" env:"RACE_POSTS_DB"`
	Compression string `yaml:"compression" default:"zstd"`
}

type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds" default:"30"`
}

var (
	blobBackends     = []string{"firebase", "s3", "memory"}
	documentBackends = []string{"firebase", "sqlite", "memory"}
)

// Path returns the config file location from the environment, falling back
// to DefaultConfigPath.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported configuration version %q", c.Version)
	}
	if !oneOf(c.Blob.Backend, blobBackends) {
		return fmt.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	if !oneOf(c.Documents.Backend, documentBackends) {
		return fmt.Errorf("unknown document backend %q", c.Documents.Backend)
	}
	if c.Blob.Backend == "s3" && (c.Blob.S3.Bucket == "" || c.Blob.S3.PublicBaseURL == "") {
		return errors.New("s3 blob backend requires bucket and public_base_url")
	}
	if c.Image.MaxBytes <= 0 {
		return fmt.Errorf("image.max_bytes must be positive, got %d", c.Image.MaxBytes)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be positive, got %d", c.HTTP.TimeoutSeconds)
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func ApplyDefaults(config any) {
	walk(config, "default", func(v string) (string, bool) { return v, true })
}

func applyEnv(config any) {
	walk(config, "env", os.LookupEnv)
}

// walk visits every settable field carrying tag and assigns the value that
// resolve returns for the tag's content.
func walk(config any, tag string, resolve func(string) (string, bool)) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			walk(field.Addr().Interface(), tag, resolve)
			continue
		}

		key := fieldType.Tag.Get(tag)
		if key == "" {
			continue
		}
		value, ok := resolve(key)
		if !ok {
			continue
		}

		if err := setField(field, value); err != nil {
			configLogger.Warn().
				Err(err).
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Str("tag", tag).
				Msg("Ignoring config value")
		}
	}
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		val, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(val)
	case reflect.Int, reflect.Int64:
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(val)
	case reflect.Float64:
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(val)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element %s", field.Type().Elem().Kind())
		}
		if field.Len() != 0 {
			return nil
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for j, part := range parts {
			slice.Index(j).SetString(strings.TrimSpace(part))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
