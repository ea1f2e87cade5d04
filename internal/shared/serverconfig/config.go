package serverconfig

import (
	"time"

	"DocTrack/internal/shared/config"
	"DocTrack/internal/shared/idgen"
)

var Conf = Defaults()

// Defaults 是配置文件缺省键时使用的值。
func Defaults() Config {
	return Config{
		MongoDB: MongoDBConfig{
			URI:             "mongodb://127.0.0.1:27017",
			Database:        "doctrack",
			ConnectTimeoutS: 3,
		},
		Log: LogConfig{
			Level:   "info",
			MaxSize: 100,
		},
		Tracking: TrackingConfig{
			SaveTimeoutS: 5,
			SlowSave:     time.Second,
			NodeID:       idgen.DefaultNodeID,
		},
	}
}

// Load 加载配置到 Conf；cfgName 为空时向上查找 configs/conf.yml。
func Load(cfgName string) {
	config.Load(cfgName, &Conf)
}

// LoadFile 从指定文件加载一份新配置，不改全局 Conf。
func LoadFile(path string) (Config, error) {
	c := Defaults()
	if _, err := config.LoadFile(path, &c, nil); err != nil {
		return Config{}, err
	}
	return c, nil
}
