package config

import (
	"maps"
	"os"
	"strings"

	"github.com/habiliai/nativeagent/errors"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// resolveConfig overlays .env, .env.test (tests only) and the process
// environment onto the defaults already set in config.
func resolveConfig[T any](config *T, testing bool) error {
	if config == nil {
		return errors.New("config is nil")
	}

	files := []string{".env"}
	if testing {
		filename := ".env.test"
		if v := os.Getenv("ENV_TEST_FILE"); v != "" {
			filename = v
		}
		files = append(files, filename)
	}

	values := map[string]string{}
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		env, err := godotenv.Read(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", file)
		}
		maps.Copy(values, env)
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		values[k] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "env",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           config,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create config decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return errors.Wrapf(err, "failed to load config")
	}

	return nil
}
