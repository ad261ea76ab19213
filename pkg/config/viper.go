package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Source describes where a service reads its settings from. Precedence from
// low to high: Defaults, the YAML file, environment variables.
type Source struct {
	// Path is a directory holding <Name>.yaml or the path of a YAML file.
	Path string
	Name string

	Defaults map[string]any
	// Env binds extra variable names to keys, on top of the automatic
	// mapping that turns "chat.verify_join" into CHAT_VERIFY_JOIN.
	Env map[string]string
}

// Decode reads src into out. A missing file is not an error.
func Decode(src Source, out any) error {
	v, err := open(src)
	if err != nil {
		return err
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}

func open(src Source) (*viper.Viper, error) {
	v := viper.New()

	switch ext := strings.ToLower(filepath.Ext(src.Path)); ext {
	case ".yaml", ".yml":
		v.SetConfigFile(src.Path)
	default:
		v.SetConfigName(src.Name)
		v.SetConfigType("yaml")
		if src.Path != "" {
			v.AddConfigPath(src.Path)
		}
	}

	for key, val := range src.Defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	keys := make([]string, 0, len(src.Env))
	for key := range src.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := v.BindEnv(key, src.Env[key]); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	err := v.ReadInConfig()
	var missing viper.ConfigFileNotFoundError
	switch {
	case err == nil, errors.As(err, &missing), errors.Is(err, fs.ErrNotExist):
		return v, nil
	}
	return nil, fmt.Errorf("config: read %s: %w", src.Path, err)
}
