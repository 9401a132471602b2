// Package view 把后端记录渲染为 HTML 片段
package view

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// UnknownTime 无法确定时间时的占位文本
const UnknownTime = "未知时间"

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)

	epochSeconds = regexp.MustCompile(`^\d{10}$`)
	epochMillis  = regexp.MustCompile(`^\d{13}$`)

	timeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02 15:04",
		"2006/01/02",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC850,
		time.ANSIC,
		time.UnixDate,
		time.RubyDate,
	}

	displayLocation atomic.Pointer[time.Location]

	highlightPolicy = newHighlightPolicy()
)

func init() {
	displayLocation.Store(time.Local)
}

func newHighlightPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("mark", "em", "strong", "b", "span")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)).OnElements("span", "mark")
	return p
}

// SetTimeZone 设置时间显示所用的时区，name 为空时使用本地时区
func SetTimeZone(name string) error {
	if name == "" {
		displayLocation.Store(time.Local)
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("加载时区失败: %w", err)
	}
	displayLocation.Store(loc)
	return nil
}

// Location 当前显示时区
func Location() *time.Location {
	return displayLocation.Load()
}

// stringify 把任意值转为字符串，nil 为空串
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// EscapeText 转义 HTML 特殊字符
func EscapeText(value any) string {
	return htmlEscaper.Replace(stringify(value))
}

// EscapeOr 转义后为空时返回 fallback
func EscapeOr(value any, fallback string) string {
	if s := EscapeText(value); s != "" {
		return s
	}
	return fallback
}

// SanitizeHighlight 清理后端返回的高亮 HTML，只保留标记元素
func SanitizeHighlight(html string) string {
	return highlightPolicy.Sanitize(html)
}

// FormatTimestamp 把时间值格式化为 "2006/01/02 15:04"，withSeconds 时带秒
// 无法解析时原样返回
func FormatTimestamp(value any, withSeconds bool) string {
	s := strings.TrimSpace(stringify(value))
	if s == "" || s == "None" || s == "NaT" {
		return UnknownTime
	}

	loc := Location()
	layout := "2006/01/02 15:04"
	if withSeconds {
		layout = "2006/01/02 15:04:05"
	}

	for _, l := range timeLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t.In(loc).Format(layout)
		}
	}

	switch {
	case epochSeconds.MatchString(s):
		n, _ := strconv.ParseInt(s, 10, 64)
		return time.Unix(n, 0).In(loc).Format(layout)
	case epochMillis.MatchString(s):
		n, _ := strconv.ParseInt(s, 10, 64)
		return time.UnixMilli(n).In(loc).Format(layout)
	}

	return s
}

// FormatCount 每三位插入千分位逗号
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	b.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatScore 两位小数
func FormatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Truncate 按字符截取前 n 个
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
