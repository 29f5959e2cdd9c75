package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// SetValue sets a configuration value by key
// Supported keys:
//   - root_path, database_path, sync_extension, line_ending, signature_level, architecture
//   - http_timeout: duration - Timeout for database downloads
//   - user_agent, output_format, log_level
//   - repositories.NAME.servers, repositories.NAME.usage: comma separated lists
//   - repositories.NAME.signature_level
//
// SetValue does not validate the result; call Validate before saving.
func (c *Config) SetValue(key, value string) error {
	if name, field, ok := repositoryKey(key); ok {
		return c.setRepositoryValue(name, field, value)
	}
	switch key {
	case "root_path":
		c.RootPath = value
	case "database_path":
		c.DatabasePath = value
	case "sync_extension":
		c.SyncExtension = value
	case "line_ending":
		c.LineEnding = value
	case "signature_level":
		c.SignatureLevel = value
	case "architecture":
		c.Architecture = value
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		c.Settings.HTTPTimeout = d
	case "user_agent":
		c.Settings.UserAgent = value
	case "output_format":
		c.Settings.OutputFormat = value
	case "log_level":
		c.Settings.LogLevel = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	if name, field, ok := repositoryKey(key); ok {
		return c.repositoryValue(name, field)
	}
	if key == "database_path" {
		return c.GetDatabasePath(), nil
	}
	value, ok := c.ToMap()[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return value, nil
}

// ToMap flattens the scalar settings into yaml key → value. This is useful for displaying the
// configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	flatten(reflect.ValueOf(*c), result)
	return result
}

func flatten(v reflect.Value, result map[string]string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlKey := strings.Split(yamlTag, ",")[0]

		fieldValue := v.Field(i)
		switch fieldValue.Kind() {
		case reflect.Struct:
			flatten(fieldValue, result)
		case reflect.Slice:
			// repositories are shown separately
		default:
			result[yamlKey] = fmt.Sprintf("%v", fieldValue.Interface())
		}
	}
}

const repositoryKeyPrefix = "repositories."

// repositoryKey splits "repositories.NAME.FIELD". Repository names cannot contain dots.
func repositoryKey(key string) (name, field string, ok bool) {
	rest, found := strings.CutPrefix(key, repositoryKeyPrefix)
	if !found {
		return "", "", false
	}
	name, field, ok = strings.Cut(rest, ".")
	return name, field, ok && name != "" && field != ""
}

func (c *Config) setRepositoryValue(name, field, value string) error {
	repo := c.GetRepository(name)
	if repo == nil {
		return fmt.Errorf("unknown repository: %s", name)
	}
	switch field {
	case "servers":
		repo.Servers = splitList(value)
	case "usage":
		repo.Usage = splitList(value)
	case "signature_level":
		repo.SignatureLevel = value
	default:
		return fmt.Errorf("unknown repository key: %s", field)
	}
	return nil
}

func (c *Config) repositoryValue(name, field string) (string, error) {
	repo := c.GetRepository(name)
	if repo == nil {
		return "", fmt.Errorf("unknown repository: %s", name)
	}
	switch field {
	case "servers":
		return strings.Join(repo.Servers, ","), nil
	case "usage":
		usage, err := repo.DatabaseUsage()
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(usage.String(), "|", ","), nil
	case "signature_level":
		level, err := repo.Level()
		if err != nil {
			return "", err
		}
		return level.String(), nil
	default:
		return "", fmt.Errorf("unknown repository key: %s", field)
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
