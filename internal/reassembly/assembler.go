package reassembly

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"
)

// ErrMalformedSequence 完成时序列不完整或取值非法
var ErrMalformedSequence = fmt.Errorf("%w: malformed sequence", ErrSequenceState)

// requiredAttributes 一次完整读数必须包含的属性
var requiredAttributes = []models.Attribute{
	models.AttributeMAC,
	models.AttributeRSSI,
	models.AttributeVolt,
	models.AttributeTimer,
	models.AttributeTransmitCount,
}

// Assemble 将完成的片段序列转换为一条读数
//
// 按属性名映射到列，不依赖到达顺序。gateway、tagMac、submitTime 取自首个
// (mac) 片段。缺少任一属性、属性重复或取值不是整数时返回 ErrMalformedSequence。
func Assemble(fragments []models.Fragment) (models.Reading, error) {
	if len(fragments) == 0 {
		return models.Reading{}, fmt.Errorf("%w: empty", ErrMalformedSequence)
	}

	first := fragments[0]
	if first.Attribute != models.AttributeMAC {
		return models.Reading{}, fmt.Errorf("%w: first fragment is %s, want mac", ErrMalformedSequence, first.Name)
	}
	if utf8.RuneCountInString(first.Key.Source) > models.MaxGatewayLen {
		return models.Reading{}, fmt.Errorf("%w: gateway %q longer than %d", ErrMalformedSequence, first.Key.Source, models.MaxGatewayLen)
	}
	if utf8.RuneCountInString(first.Key.Tag) > models.MaxTagMACLen {
		return models.Reading{}, fmt.Errorf("%w: tag %q longer than %d", ErrMalformedSequence, first.Key.Tag, models.MaxTagMACLen)
	}

	byAttr := make(map[models.Attribute]models.Fragment, len(fragments))
	for _, f := range fragments {
		if _, dup := byAttr[f.Attribute]; dup {
			return models.Reading{}, fmt.Errorf("%w: duplicate %s", ErrMalformedSequence, f.Name)
		}
		byAttr[f.Attribute] = f
	}

	var missing []string
	for _, a := range requiredAttributes {
		if _, ok := byAttr[a]; !ok {
			missing = append(missing, a.String())
		}
	}
	if len(missing) > 0 {
		return models.Reading{}, fmt.Errorf("%w: missing %v", ErrMalformedSequence, missing)
	}

	reading := models.Reading{
		SubmitTime: first.ObservedAt,
		Gateway:    first.Key.Source,
		TagMAC:     first.Key.Tag,
	}

	var errs []error
	parse := func(a models.Attribute) int64 {
		v, err := strconv.ParseInt(byAttr[a].RawValue, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q", a, byAttr[a].RawValue))
		}
		return v
	}
	reading.RSSI = parse(models.AttributeRSSI)
	reading.Volt = parse(models.AttributeVolt)
	reading.Timer = parse(models.AttributeTimer)
	reading.TransmitCount = parse(models.AttributeTransmitCount)

	if len(errs) > 0 {
		return models.Reading{}, fmt.Errorf("%w: non-integer value: %w", ErrMalformedSequence, errors.Join(errs...))
	}

	return reading, nil
}
