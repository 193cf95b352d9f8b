package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 endpoint/mode/变体/策略字段，供转发日志复用。
func RequestFields(endpoint, mode, variant, policy string) logrus.Fields {
	return logrus.Fields{
		"endpoint_id":     endpoint,
		"routing_mode":    mode,
		"routing_variant": variant,
		"retry_policy":    policy,
	}
}
