package reassembly

import (
	"errors"
	"fmt"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"
)

var (
	// ErrSequenceState 片段与实体当前的序列状态不匹配
	ErrSequenceState = errors.New("sequence state error")
	// ErrUnrecognizedAttribute 属性不在已知列表中
	ErrUnrecognizedAttribute = errors.New("unrecognized attribute")
)

// Action 属性对应的缓冲区动作
type Action int

const (
	ActionDrop     Action = iota // 丢弃
	ActionBegin                  // 开始（或重新开始）序列
	ActionAppend                 // 追加到活跃序列
	ActionComplete               // 追加并完成序列
	ActionIgnore                 // 单次事件，不影响序列
)

// actionTable 属性 -> 动作，覆盖全部 Attribute 取值
var actionTable = map[models.Attribute]Action{
	models.AttributeUnknown:       ActionDrop,
	models.AttributeMAC:           ActionBegin,
	models.AttributeRSSI:          ActionAppend,
	models.AttributeVolt:          ActionAppend,
	models.AttributeTimer:         ActionAppend,
	models.AttributeTransmitCount: ActionComplete,
	models.AttributeButton:        ActionIgnore,
}

// ActionFor 返回属性对应的动作
func ActionFor(a models.Attribute) Action {
	if action, ok := actionTable[a]; ok {
		return action
	}
	return ActionDrop
}

// Outcome 片段路由结果
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeIgnored
	OutcomeStarted
	OutcomeRestarted
	OutcomeBuffered
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeStarted:
		return "started"
	case OutcomeRestarted:
		return "restarted"
	case OutcomeBuffered:
		return "buffered"
	case OutcomeCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Decision 路由决策；Outcome 为 OutcomeCompleted 时 Fragments 为完整序列
type Decision struct {
	Outcome   Outcome
	Fragments []models.Fragment
}

// Router 按属性和实体状态决定片段去向
// 同一实体的片段必须串行调用 Route
type Router struct {
	buffer *Buffer
}

// NewRouter 创建路由器
func NewRouter(buffer *Buffer) *Router {
	return &Router{buffer: buffer}
}

// Buffer 返回底层缓冲区
func (r *Router) Buffer() *Buffer {
	return r.buffer
}

// Route 处理一个片段
func (r *Router) Route(f models.Fragment) (Decision, error) {
	switch ActionFor(f.Attribute) {
	case ActionBegin:
		if r.buffer.BeginOrReset(f) {
			return Decision{Outcome: OutcomeRestarted}, nil
		}
		return Decision{Outcome: OutcomeStarted}, nil

	case ActionAppend:
		if !r.buffer.Append(f) {
			return Decision{Outcome: OutcomeDropped},
				fmt.Errorf("%w: %s for inactive entity %s", ErrSequenceState, f.Name, f.Key)
		}
		return Decision{Outcome: OutcomeBuffered}, nil

	case ActionComplete:
		if !r.buffer.Append(f) {
			return Decision{Outcome: OutcomeDropped},
				fmt.Errorf("%w: %s for inactive entity %s", ErrSequenceState, f.Name, f.Key)
		}
		fragments, _ := r.buffer.Complete(f.Key)
		return Decision{Outcome: OutcomeCompleted, Fragments: fragments}, nil

	case ActionIgnore:
		return Decision{Outcome: OutcomeIgnored}, nil

	default:
		return Decision{Outcome: OutcomeDropped},
			fmt.Errorf("%w: %q", ErrUnrecognizedAttribute, f.Name)
	}
}
