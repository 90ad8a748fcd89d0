// Package revenue 实现单一资源 (如航段) 多舱位售卖的座位控制算法:
// 票价转换 (Fare Transformation)、EMSRb、EMSRb-MR、订座限额换算以及按剩余容量逐步重算的启发式方法.
package revenue

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/wyfcoding/revmgmt/xerrors"
)

// Method 优化方法.
type Method int

const (
	// MethodEMSRb 直接在原始舱位上运行 EMSRb.
	MethodEMSRb Method = iota + 1
	// MethodEMSRbMR 先做票价转换，再在有效策略上运行 EMSRb.
	MethodEMSRbMR
	// MethodEMSRbMRStep 按每个剩余容量重算 EMSRb-MR 并统计最便宜开放舱位.
	MethodEMSRbMRStep
)

var methodNames = map[Method]string{
	MethodEMSRb:       "EMSRb",
	MethodEMSRbMR:     "EMSRb_MR",
	MethodEMSRbMRStep: "EMSRb_MR_step",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "Method(" + strconv.Itoa(int(m)) + ")"
}

// Valid 判断是否为已知方法.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// ParseMethod 解析方法名，大小写不敏感.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return 0, xerrors.ErrUnsupportedMethod.Clone().WithDetail("unknown method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, xerrors.ErrUnsupportedMethod.Clone().WithDetail("unknown method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FareStructure 票价结构.
type FareStructure int

const (
	// FareStructureUndifferentiated 无差异化票价结构，各舱位仅价格不同.
	FareStructureUndifferentiated FareStructure = iota + 1
	// FareStructureDifferentiated 带限制条件的差异化票价结构，目前不支持.
	FareStructureDifferentiated
)

var fareStructureNames = map[FareStructure]string{
	FareStructureUndifferentiated: "undifferentiated",
	FareStructureDifferentiated:   "differentiated",
}

func (fs FareStructure) String() string {
	if name, ok := fareStructureNames[fs]; ok {
		return name
	}
	return "FareStructure(" + strconv.Itoa(int(fs)) + ")"
}

// ParseFareStructure 解析票价结构名，空串视为 undifferentiated.
func ParseFareStructure(s string) (FareStructure, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FareStructureUndifferentiated, nil
	}
	for fs, name := range fareStructureNames {
		if strings.EqualFold(name, s) {
			return fs, nil
		}
	}
	return 0, xerrors.ErrUnsupportedFareStructure.Clone().WithDetail("unknown fare structure %q", s)
}

func (fs FareStructure) MarshalText() ([]byte, error) {
	return []byte(fs.String()), nil
}

func (fs *FareStructure) UnmarshalText(text []byte) error {
	parsed, err := ParseFareStructure(string(text))
	if err != nil {
		return err
	}
	*fs = parsed
	return nil
}

// TopClassPolicy 决定最高舱位需求为零时票价转换如何处理该舱位.
type TopClassPolicy int

const (
	// ForceTopFare 将最高舱位的调整票价强制设为其原始票价，保证其始终有效.
	ForceTopFare TopClassPolicy = iota
	// DropUndemanded 最高舱位需求为零时视为无效策略，可能导致没有任何有效策略.
	DropUndemanded
)

// ParseTopClassPolicy 解析配置中的策略名.
func ParseTopClassPolicy(s string) (TopClassPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "force_top_fare":
		return ForceTopFare, nil
	case "drop_undemanded":
		return DropUndemanded, nil
	default:
		return 0, xerrors.InvalidArg("unknown top class policy").WithDetail("policy %q", s)
	}
}

func (p TopClassPolicy) String() string {
	if p == DropUndemanded {
		return "drop_undemanded"
	}
	return "force_top_fare"
}

// Level 对齐到舱位下标的一个取值，Valid 为 false 表示该舱位 "不适用" (已被剔除)，与合法的 0 区分.
type Level struct {
	Value float64
	Valid bool
}

// Defined 返回一个有效取值.
func Defined(v float64) Level {
	return Level{Value: v, Valid: true}
}

// NotApplicable 表示被剔除舱位的取值.
var NotApplicable = Level{}

var jsonNull = []byte("null")

// MarshalJSON 不适用的取值编码为 null.
func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return jsonNull, nil
	}
	return strconv.AppendFloat(nil, l.Value, 'g', -1, 64), nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*l = NotApplicable
		return nil
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return xerrors.InvalidArg("invalid level").WithCause(err)
	}
	*l = Defined(v)
	return nil
}

// Levels 与舱位顺序对齐的取值序列.
type Levels []Level

// DefinedIndices 返回有效取值的下标.
func (ls Levels) DefinedIndices() []int {
	out := make([]int, 0, len(ls))
	for i, l := range ls {
		if l.Valid {
			out = append(out, i)
		}
	}
	return out
}

// allZero 所有取值均有效且为 0.
func (ls Levels) allZero() bool {
	if len(ls) == 0 {
		return false
	}
	for _, l := range ls {
		if !l.Valid || l.Value != 0 {
			return false
		}
	}
	return true
}

func definedLevels(values []float64) Levels {
	out := make(Levels, len(values))
	for i, v := range values {
		out[i] = Defined(v)
	}
	return out
}
