package repo

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Account returns the operator's remote account name. FAS_USERNAME is
// the variable other fedora tooling reads, so it is reused here.
func Account() (string, error) {
	name := os.Getenv("FAS_USERNAME")
	if name == "" {
		return "", errors.Mark(
			errors.New("FAS_USERNAME must be set to your fedorapeople account name"), ErrUsage)
	}
	return name, nil
}

// setFieldFromEnv assigns the named environment variable to a config
// field. Unset and empty variables leave the field alone.
func setFieldFromEnv(field reflect.Value, envVar string) error {
	value := os.Getenv(envVar)
	if value == "" {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "%s must be an integer", envVar)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "%s must be a boolean", envVar)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return errors.Newf("%s: unsupported slice type", envVar)
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return errors.Newf("%s: unsupported field kind %s", envVar, field.Kind())
	}
	return nil
}

// ApplyEnvironmentVariables overrides configuration fields from
// MIRRORPUSH_* environment variables. Call it after decoding the file
// and before Check.
func (c *Config) ApplyEnvironmentVariables() error {
	bindings := []struct {
		envVar string
		field  reflect.Value
	}{
		{"MIRRORPUSH_ROOT_DIR", reflect.ValueOf(&c.RootDir).Elem()},
		{"MIRRORPUSH_REMOTE_HOST", reflect.ValueOf(&c.RemoteHost).Elem()},
		{"MIRRORPUSH_REMOTE_PATH", reflect.ValueOf(&c.RemotePath).Elem()},
		{"MIRRORPUSH_REMOTE_GROUP", reflect.ValueOf(&c.RemoteGroup).Elem()},
		{"MIRRORPUSH_HTTP_ROOT", reflect.ValueOf(&c.HTTPRoot).Elem()},
		{"MIRRORPUSH_DATA_DIR", reflect.ValueOf(&c.DataDir).Elem()},
		{"MIRRORPUSH_STABLE", reflect.ValueOf(&c.Stable).Elem()},
		{"MIRRORPUSH_LOG_LEVEL", reflect.ValueOf(&c.Log.Level).Elem()},
		{"MIRRORPUSH_LOG_FORMAT", reflect.ValueOf(&c.Log.Format).Elem()},
	}

	for _, b := range bindings {
		if err := setFieldFromEnv(b.field, b.envVar); err != nil {
			return err
		}
	}
	return nil
}
