package decode

import (
	"encoding/json"
	"reflect"
	"time"

	"CareChat/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 宽松解码：例如 "123" -> int、"true" -> bool（表单/环境变量场景必需）
	WeaklyTypedInput bool
	// 读取哪个 struct tag，默认 mapstructure
	TagName string
	// 出现目标结构体没有的键时报错
	ErrorUnused bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true, TagName: "mapstructure"}
}

// JSONTagOptions 按 json tag 解码（webhook 表单等外部输入）
func JSONTagOptions() Options {
	return Options{WeaklyTypedInput: true, TagName: "json"}
}

// Decode 将通用 map 解码到结构体 T。
func Decode[T any](m map[string]any, opts ...Options) (*T, error) {
	var out T
	if err := Into(m, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Into 解码到已有对象（保留 out 中未被覆盖的默认值）
func Into(m map[string]any, out any, opts ...Options) error {
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.TagName == "" {
		cfg.TagName = "mapstructure"
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          cfg.TagName,
		Result:           out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ErrorUnused:      cfg.ErrorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			floatToIntHook(),
			jsonRawStringToMapHook(),
		),
	})
	if err != nil {
		return errs.WrapMsg(err, "new decoder")
	}
	if err := dec.Decode(m); err != nil {
		return errs.ErrArgs.WrapMsg("decode", "err", err.Error())
	}
	return nil
}

// floatToIntHook 把 float64 自动转为整型（JSON 数字）
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// jsonRawStringToMapHook 把 JSON 字符串转为 map（嵌套在字符串里的 JSON 字段）
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
