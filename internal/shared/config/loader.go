package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// LoadFile 读取配置文件并反序列化到 out（mapstructure 标签），环境变量可覆盖文件中已有的键。
//
// onChange 非 nil 时开启热加载：文件变更后回调，由调用方自行 Unmarshal 到新对象再替换，
// 这里不直接改 out，避免与读者并发。
func LoadFile(configPath string, out any, onChange func(v *viper.Viper)) (*viper.Viper, error) {
	if !fileExist(configPath) {
		return nil, fmt.Errorf("config file not exist, configPath=%v", configPath)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}
	if err := v.Unmarshal(out, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", configPath, err)
	}

	if onChange != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Println("配置文件变更", e.Name, e.Op.String())
			onChange(v)
		})
		v.WatchConfig()
	}
	return v, nil
}

// DecodeHook 让配置里可以写 "500ms" 这样的时长和逗号分隔的列表。
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func fileExist(fileName string) bool {
	_, err := os.Stat(fileName)
	return err == nil
}
