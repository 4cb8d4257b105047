package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// 🌱 环境变量覆盖
// =============================================================================
// 每个带 env tag 的字段对应一个变量，嵌套结构体逐层拼接：
//
//	Config.Messaging.NATS.URL → AGENTWEAVER_MESSAGING_NATS_URL
//
// env:"-" 或无 tag 的字段不参与覆盖。
// =============================================================================

var durationType = reflect.TypeOf(time.Duration(0))

// envBinding 一个变量名与其目标字段
type envBinding struct {
	key   string
	field reflect.Value
}

// envBindings 展开结构体，返回所有叶子字段的绑定
func envBindings(v reflect.Value, prefix string) []envBinding {
	var out []envBinding
	t := v.Type()
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		if f := v.Field(i); f.Kind() == reflect.Struct {
			out = append(out, envBindings(f, key)...)
		} else {
			out = append(out, envBinding{key: key, field: f})
		}
	}
	return out
}

// EnvKeys 列出当前前缀下所有可覆盖的变量名
func (l *Loader) EnvKeys() []string {
	bindings := envBindings(reflect.ValueOf(DefaultConfig()).Elem(), l.envPrefix)
	keys := make([]string, len(bindings))
	for i, b := range bindings {
		keys[i] = b.key
	}
	return keys
}

// applyEnv 所有无法解析的变量一起报告
func (l *Loader) applyEnv(cfg *Config) error {
	var errs []error
	for _, b := range envBindings(reflect.ValueOf(cfg).Elem(), l.envPrefix) {
		raw, ok := l.lookupEnv(b.key)
		if !ok || raw == "" {
			continue
		}
		if err := parseInto(b.field, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.key, raw, err))
		}
	}
	return errors.Join(errs...)
}

// parseInto 按字段类型解析字符串
func parseInto(field reflect.Value, raw string) error {
	if !field.CanSet() {
		return nil
	}
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
