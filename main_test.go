package main

import (
	"strings"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("HOOK_RELAY_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsEmptyConfigPath(t *testing.T) {
	t.Setenv("HOOK_RELAY_CONFIG", "")

	opts, err := parseCLIFlags([]string{"--check-config"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "" || !opts.checkOnly {
		t.Fatalf("未指定配置文件时应仅使用环境变量，得到 %+v", opts)
	}
}

func TestParseCLIFlagsRejectsUnknown(t *testing.T) {
	useBufferWriters(t)
	if _, err := parseCLIFlags([]string{"--nope"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
	if _, err := parseCLIFlags([]string{"extra"}); err == nil {
		t.Fatalf("位置参数应返回错误")
	}
}

func TestParseCLIFlagsHelp(t *testing.T) {
	useBufferWriters(t)
	opts, err := parseCLIFlags([]string{"--help"})
	if err != nil {
		t.Fatalf("help 不应返回错误: %v", err)
	}
	if !opts.helpShown {
		t.Fatalf("help 模式应标记 helpShown")
	}
	if !strings.Contains(stdOutBuffer().String(), "--check-config") {
		t.Fatalf("help 输出应列出 --check-config")
	}
	if code := run(opts); code != 0 {
		t.Fatalf("help 模式应成功退出，得到 %d", code)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含加载失败提示，得到 %q", stdErrBuffer().String())
	}
}

func TestRunCheckConfigEnvOnly(t *testing.T) {
	t.Setenv("HOOK_RELAY_BASE_URL", "https://flows.example.com")
	t.Setenv("HOOK_RELAY_RETRY_POLICY", "json-not-found")
	useBufferWriters(t)
	if code := run(cliOptions{checkOnly: true}); code != 0 {
		t.Fatalf("仅环境变量配置应校验通过，得到 %d", code)
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "hook-relay") {
		t.Fatalf("version 输出应包含 hook-relay 标识")
	}
}
