// Package chunker 实现了滑动窗口式的文本切块算法。
package chunker

import "strings"

// Split 将文本按固定窗口大小与重叠量从左到右切分。
//
// 窗口 i 的起点为 max(0, 上一窗口终点 - overlap)，除最后一个窗口外长度均为
// size；触达文本末尾的窗口被输出后即终止，不会产生多余的空尾窗。输入先做
// Trim，空白文本返回空序列。
//
// 前置条件：overlap < size。该退化配置不在运行时检查，由调用方保证，
// 否则窗口无法前进。
//
// 纯函数：相同输入总是产生相同输出。按 rune 计数以避免把多字节字符切坏。
func Split(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
