package types

import (
	"sort"
	"strings"
)

// Capability 能力标签
// 词汇表是开放的，未知字符串同样可用于匹配
type Capability string

const (
	CapabilityResearch       Capability = "research"
	CapabilityAnalysis       Capability = "analysis"
	CapabilityCoordination   Capability = "coordination"
	CapabilityCommunication  Capability = "communication"
	CapabilityDataProcessing Capability = "data_processing"
	CapabilityPlanning       Capability = "planning"
	CapabilityExecution      Capability = "execution"
	CapabilityAPIClient      Capability = "api_client"
	CapabilityTextAnalysis   Capability = "text_analysis"
	CapabilityAPIInteraction Capability = "api_interaction"
)

var knownCapabilities = map[Capability]struct{}{
	CapabilityResearch:       {},
	CapabilityAnalysis:       {},
	CapabilityCoordination:   {},
	CapabilityCommunication:  {},
	CapabilityDataProcessing: {},
	CapabilityPlanning:       {},
	CapabilityExecution:      {},
	CapabilityAPIClient:      {},
	CapabilityTextAnalysis:   {},
	CapabilityAPIInteraction: {},
}

// IsKnown 是否为内置词汇
func (c Capability) IsKnown() bool {
	_, ok := knownCapabilities[c]
	return ok
}

// String implements fmt.Stringer.
func (c Capability) String() string { return string(c) }

// KnownCapabilities 返回内置词汇（按字典序）
func KnownCapabilities() []Capability {
	out := make([]Capability, 0, len(knownCapabilities))
	for c := range knownCapabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CapabilitySet 有序去重的能力集合
// 保留声明顺序，FailureManager 依赖“第一个能力”语义
type CapabilitySet []Capability

// NewCapabilitySet 创建能力集合，丢弃空值与重复项
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, 0, len(caps))
	seen := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		c = Capability(strings.TrimSpace(string(c)))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		set = append(set, c)
	}
	return set
}

// ParseCapabilities 从字符串列表构建能力集合
func ParseCapabilities(values ...string) CapabilitySet {
	caps := make([]Capability, len(values))
	for i, v := range values {
		caps[i] = Capability(v)
	}
	return NewCapabilitySet(caps...)
}

// Contains 是否包含某个能力
func (s CapabilitySet) Contains(c Capability) bool {
	for _, have := range s {
		if have == c {
			return true
		}
	}
	return false
}

// ContainsAll 子集判定：required ⊆ s
// 空需求恒为真
func (s CapabilitySet) ContainsAll(required CapabilitySet) bool {
	for _, c := range required {
		if !s.Contains(c) {
			return false
		}
	}
	return true
}

// ContainsAny 任一匹配
func (s CapabilitySet) ContainsAny(required CapabilitySet) bool {
	if len(required) == 0 {
		return true
	}
	for _, c := range required {
		if s.Contains(c) {
			return true
		}
	}
	return false
}

// First 返回第一个声明的能力
func (s CapabilitySet) First() (Capability, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[0], true
}

// Strings 转为字符串切片
func (s CapabilitySet) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}

// Clone 返回副本
func (s CapabilitySet) Clone() CapabilitySet {
	if s == nil {
		return nil
	}
	out := make(CapabilitySet, len(s))
	copy(out, s)
	return out
}
