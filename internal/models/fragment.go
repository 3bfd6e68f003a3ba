package models

// Attribute 标签上报的属性（主题最后一段）
type Attribute int

const (
	AttributeUnknown       Attribute = iota
	AttributeMAC                     // mac：序列起始
	AttributeRSSI                    // rssi
	AttributeVolt                    // volt
	AttributeTimer                   // tmr
	AttributeTransmitCount           // xcnt：序列结束
	AttributeButton                  // button：单次事件，不参与重组
)

var attributeNames = map[Attribute]string{
	AttributeUnknown:       "unknown",
	AttributeMAC:           "mac",
	AttributeRSSI:          "rssi",
	AttributeVolt:          "volt",
	AttributeTimer:         "tmr",
	AttributeTransmitCount: "xcnt",
	AttributeButton:        "button",
}

var attributesByName = map[string]Attribute{
	"mac":    AttributeMAC,
	"rssi":   AttributeRSSI,
	"volt":   AttributeVolt,
	"tmr":    AttributeTimer,
	"xcnt":   AttributeTransmitCount,
	"button": AttributeButton,
}

// ParseAttribute 解析属性名，未识别的返回 AttributeUnknown
func ParseAttribute(name string) Attribute {
	if a, ok := attributesByName[name]; ok {
		return a
	}
	return AttributeUnknown
}

func (a Attribute) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return "unknown"
}

// EntityKey 网关 + 标签，标识同一次读数的片段
type EntityKey struct {
	Source string // 网关名（主题第二段）
	Tag    string // 标签 MAC（主题第三段）
}

func (k EntityKey) String() string {
	return k.Source + "/" + k.Tag
}

// Fragment 一条解码后的遥测片段，创建后不再修改
type Fragment struct {
	Key        EntityKey
	Attribute  Attribute
	Name       string // 原始属性名
	RawValue   string // 去除首尾空白后的 payload
	ObservedAt int64  // 接收时间（Unix 秒）
}
