// Package topic 解析标签网关发布的 MQTT 主题
//
// 主题格式: /<namespace>/<gateway>/<tag>/<attribute>，例如 /yyy/Study/f2734bec8248/rssi
package topic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDecode 主题格式不符合预期
var ErrDecode = errors.New("malformed topic")

// Topic 解码结果
type Topic struct {
	Source    string
	Entity    string
	Attribute string // 可以为空
}

// Decoder 主题解码器（无状态）
type Decoder struct {
	namespace string
}

// NewDecoder 创建解码器
func NewDecoder(namespace string) *Decoder {
	return &Decoder{namespace: namespace}
}

// Subscription 返回对应的 MQTT 订阅过滤器
func (d *Decoder) Subscription() string {
	return "/" + d.namespace + "/+/+/+"
}

// Decode 将主题解析为 (source, entity, attribute)
func (d *Decoder) Decode(topic string) (Topic, error) {
	if !strings.HasPrefix(topic, "/") {
		return Topic{}, fmt.Errorf("%w: %q", ErrDecode, topic)
	}

	parts := strings.Split(topic[1:], "/")
	if len(parts) != 4 {
		return Topic{}, fmt.Errorf("%w: %q has %d segments", ErrDecode, topic, len(parts))
	}
	if parts[0] != d.namespace {
		return Topic{}, fmt.Errorf("%w: %q outside namespace %q", ErrDecode, topic, d.namespace)
	}
	if parts[1] == "" || parts[2] == "" {
		return Topic{}, fmt.Errorf("%w: %q has empty gateway or tag", ErrDecode, topic)
	}

	return Topic{
		Source:    parts[1],
		Entity:    parts[2],
		Attribute: parts[3],
	}, nil
}
