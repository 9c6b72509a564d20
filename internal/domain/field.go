package domain

// Sentinel 是 IMDb 数据集中表示“缺失”的原始占位值。
const Sentinel = `\N`

// Opt 是一个可缺失的字符串字段。
//
// 约束：\N 只在读入时出现一次（ParseField），之后全程用 Present 表示缺失；
// 对外输出时再通过 OrEmpty 还原为空串。
type Opt struct {
	Value   string
	Present bool
}

// Some 构造一个存在的值。
func Some(v string) Opt { return Opt{Value: v, Present: true} }

// None 表示缺失。
func None() Opt { return Opt{} }

// ParseField 把原始单元格转换为 Opt：\N => 缺失，其余原样保留（包括空串）。
func ParseField(raw string) Opt {
	if raw == Sentinel {
		return None()
	}
	return Some(raw)
}

// OrEmpty 在序列化边界使用：缺失输出为空串。
func (o Opt) OrEmpty() string {
	if !o.Present {
		return ""
	}
	return o.Value
}
