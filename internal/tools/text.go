package tools

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// GetNowDateTime "YYYY-MM-DD HH:MM:SS"（本地时区）
func GetNowDateTime() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// Ordinal 1 -> "1st", 2 -> "2nd", 11 -> "11th"
func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// FormatTimestamp 渲染成对话记录里的口语时间，如 "Friday the 21st of feb"
func FormatTimestamp(ts time.Time) string {
	return fmt.Sprintf("%s the %s of %s",
		ts.Weekday().String(), Ordinal(ts.Day()), strings.ToLower(ts.Format("Jan")))
}

// ChunkMessage 按 n 个字符切分长回复（聊天平台单条消息有长度上限）。
// 按 rune 切，不能把多字节字符劈成半截
func ChunkMessage(s string, n int) []string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return []string{s}
	}
	runes := []rune(s)
	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
