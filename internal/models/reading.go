package models

// 持久化列宽
const (
	MaxGatewayLen = 25
	MaxTagMACLen  = 12
)

// Reading 一次完整的标签读数，对应 tag_data 表的一行
type Reading struct {
	SubmitTime    int64  `json:"submit_time"`
	Gateway       string `json:"gateway"`
	TagMAC        string `json:"tag_mac"`
	RSSI          int64  `json:"rssi"`
	Volt          int64  `json:"volt"`
	Timer         int64  `json:"tmr"`
	TransmitCount int64  `json:"xcnt"`
}

// Key 读数所属的实体
func (r Reading) Key() EntityKey {
	return EntityKey{Source: r.Gateway, Tag: r.TagMAC}
}
