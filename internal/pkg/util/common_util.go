package util

import (
	"slices"
	"strings"
)

// PtrStr 用于将 string 转换为 *string
func PtrStr(s string) *string {
	return &s
}

// UniqueUint64 去重并保持原有顺序，跳过 exclude 中的值
func UniqueUint64(ids []uint64, exclude ...uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || slices.Contains(exclude, id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ContainsFold 不区分大小写的子串匹配
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
