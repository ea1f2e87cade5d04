package serverconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"DocTrack/internal/shared/idgen"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write err=%v", err)
	}
	return path
}

func TestLoadFile_覆盖与缺省(t *testing.T) {
	path := writeConf(t, `
mongodb:
  uri: mongodb://db:27017
log:
  level: warn
tracking:
  tenant_id: t-1
  slow_save: 250ms
  node_id: 7
`)
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if c.MongoDB.URI != "mongodb://db:27017" || c.Log.Level != "warn" || c.Tracking.TenantID != "t-1" {
		t.Fatalf("期望文件中的值生效, got=%+v", c)
	}
	if c.MongoDB.Database != "doctrack" || c.MongoDB.ConnectTimeoutS != 3 || c.Tracking.SaveTimeoutS != 5 {
		t.Fatalf("期望缺省键使用默认值, got=%+v", c)
	}
	if c.Tracking.SlowSave != 250*time.Millisecond {
		t.Fatalf("期望时长字符串被解析, got=%v", c.Tracking.SlowSave)
	}
	if c.Tracking.NodeID != 7 {
		t.Fatalf("期望读到节点号, got=%d", c.Tracking.NodeID)
	}
}

func TestDefaults_节点号缺省(t *testing.T) {
	path := writeConf(t, `
log:
  level: debug
`)
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if c.Tracking.NodeID != idgen.DefaultNodeID {
		t.Fatalf("期望缺省节点号, got=%d", c.Tracking.NodeID)
	}
}

func TestLoadFile_环境变量覆盖(t *testing.T) {
	path := writeConf(t, `
mongodb:
  database: fromfile
`)
	t.Setenv("DOCTRACK_MONGODB_DATABASE", "fromenv")
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if c.MongoDB.Database != "fromenv" {
		t.Fatalf("期望环境变量覆盖, got=%q", c.MongoDB.Database)
	}
}

func TestLoadFile_文件不存在(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("期望返回错误")
	}
}
