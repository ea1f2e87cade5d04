package serverconfig

import "time"

type Config struct {
	MongoDB  MongoDBConfig  `yaml:"mongodb" mapstructure:"mongodb"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Tracking TrackingConfig `yaml:"tracking" mapstructure:"tracking"`
}

type MongoDBConfig struct {
	URI             string `yaml:"uri" mapstructure:"uri"`
	Database        string `yaml:"database" mapstructure:"database"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s" mapstructure:"connect_timeout_s"`
}

type LogConfig struct {
	FileDir    string `yaml:"file_dir" mapstructure:"file_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"` // days
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
	Level      string `yaml:"level" mapstructure:"level"` // debug/info/warn/error...
	Dev        bool   `yaml:"dev" mapstructure:"dev"`
}

// TrackingConfig 是工作单元的运行参数。
type TrackingConfig struct {
	TenantID     string `yaml:"tenant_id" mapstructure:"tenant_id"`
	SaveTimeoutS int    `yaml:"save_timeout_s" mapstructure:"save_timeout_s"`
	// SlowSave 超过该耗时的保存打 WARN，0 关闭。
	SlowSave time.Duration `yaml:"slow_save" mapstructure:"slow_save"`
	// NodeID 是雪花标识的节点号（0..1023），同时写入的进程之间不能重复。
	NodeID int64 `yaml:"node_id" mapstructure:"node_id"`
}
