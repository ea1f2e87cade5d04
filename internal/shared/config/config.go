package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfigRelPath = "configs/conf.yml"

// EnvPrefix 是环境变量覆盖的前缀，例如 DOCTRACK_MONGODB_URI 覆盖 mongodb.uri。
const EnvPrefix = "DOCTRACK"

// Load 解析配置路径并加载到 out，失败直接 panic，只用于进程启动。
func Load(cfgName string, out any) {
	path, err := Resolve(cfgName)
	if err != nil {
		panic(err)
	}
	if _, err := LoadFile(path, out, nil); err != nil {
		panic(err)
	}
}

// Resolve 决定配置文件路径。
//
// 约定：
// 1) 传入 cfgName（相对/绝对路径）则优先使用；
// 2) 否则从当前目录开始向上查找 `configs/conf.yml`。
func Resolve(cfgName string) (string, error) {
	curDir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if cfgName != "" {
		if filepath.IsAbs(cfgName) {
			return cfgName, nil
		}
		return filepath.Join(curDir, cfgName), nil
	}
	return findConfigUpward(curDir)
}

func findConfigUpward(startDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, defaultConfigRelPath)
		if fileExist(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config file not exist, searched %s from: %s", defaultConfigRelPath, startDir)
		}
		dir = parent
	}
}
