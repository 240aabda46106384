package code

import (
	"errors"
	"reflect"
)

// lang 存储英文和中文文本，字段名即语言标识
type lang struct {
	en    string
	zh_cn string
}

var lng = FALLBACK_LNG

const FALLBACK_LNG = "en"

// GetMessage returns the message in the active language, falling back to English.
// GetMessage 根据当前语言返回消息，缺失时回退到英文
func (l lang) GetMessage() string {
	val := reflect.ValueOf(l)
	if f := val.FieldByName(lng); f.IsValid() && f.String() != "" {
		return f.String()
	}
	return val.FieldByName(FALLBACK_LNG).String()
}

// GetSupportedLanguages 返回支持的语言列表
func GetSupportedLanguages() []string {
	typ := reflect.TypeOf(lang{})
	languages := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		languages = append(languages, typ.Field(i).Name)
	}
	return languages
}

// SetGlobalDefaultLang 设置全局语言，不支持的语言回退为英文并返回错误
func SetGlobalDefaultLang(language string) error {
	for _, l := range GetSupportedLanguages() {
		if l == language {
			lng = language
			return nil
		}
	}
	lng = FALLBACK_LNG
	return errors.New("unsupported language type, set defaulting to " + FALLBACK_LNG)
}

// GetGlobalDefaultLang 获取全局语言
func GetGlobalDefaultLang() string {
	return lng
}
