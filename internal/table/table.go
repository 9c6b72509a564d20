// Package table 提供对“有序记录序列”的最小关系运算：select / project /
// explode / distinct+sort / semi-join。
//
// 约束：所有函数都是纯函数，不修改输入切片，输出顺序稳定。
package table

import "sort"

// Select 保留 keep 返回 true 的行，保持原有顺序。
func Select[T any](rows []T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Project 把每一行映射为新的行（select 列 + rename 列）。
func Project[T, U any](rows []T, f func(T) U) []U {
	out := make([]U, 0, len(rows))
	for _, r := range rows {
		out = append(out, f(r))
	}
	return out
}

// Explode 把一行展开为零到多行，按输入顺序拼接。
func Explode[T, U any](rows []T, f func(T) []U) []U {
	out := make([]U, 0, len(rows))
	for _, r := range rows {
		out = append(out, f(r)...)
	}
	return out
}

// DistinctSorted 返回 key 的去重集合，按字典序升序。
func DistinctSorted[T any](rows []T, key func(T) string) []string {
	seen := make(map[string]struct{}, 64)
	out := make([]string, 0, 64)
	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SortStableBy 返回按 key 升序稳定排序后的副本。
func SortStableBy[T any](rows []T, key func(T) string) []T {
	out := append([]T(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// KeySet 构建 key 集合，用于 semi-join（isin）。
func KeySet[T any](rows []T, key func(T) string) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		set[key(r)] = struct{}{}
	}
	return set
}

// In 判断 k 是否在集合中。
func In(set map[string]struct{}, k string) bool {
	_, ok := set[k]
	return ok
}

// Index 把有序 key 列表转换为 key -> 下标 的映射（用于 id 分配后的 join）。
func Index(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}
