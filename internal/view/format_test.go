package view

import (
	"html"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useUTC(t *testing.T) {
	t.Helper()
	require.NoError(t, SetTimeZone("UTC"))
	t.Cleanup(func() { _ = SetTimeZone("") })
}

func TestEscapeText_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		`<script>alert("x")</script>`,
		"Tom & Jerry's <b>show</b>",
		"&amp; already escaped",
		"中文 <内容> '引号' \"双引号\"",
	}
	for _, s := range inputs {
		escaped := EscapeText(s)
		assert.NotContains(t, escaped, "<")
		assert.NotContains(t, escaped, ">")
		assert.Equal(t, s, html.UnescapeString(escaped), "input %q", s)
	}
}

func TestEscapeText_Values(t *testing.T) {
	assert.Equal(t, "", EscapeText(nil))
	assert.Equal(t, "42", EscapeText(42))
	assert.Equal(t, "12", EscapeText(12.0))
	assert.Equal(t, "&amp;lt;", EscapeText("&lt;"))
	assert.Equal(t, "&#039;", EscapeText("'"))
	assert.Equal(t, "未知", EscapeOr("", "未知"))
	assert.Equal(t, "a&amp;b", EscapeOr("a&b", "未知"))
}

func TestFormatTimestamp(t *testing.T) {
	useUTC(t)

	cases := []struct {
		name        string
		in          any
		withSeconds bool
		want        string
	}{
		{"nil", nil, true, UnknownTime},
		{"empty", "", true, UnknownTime},
		{"none", "None", true, UnknownTime},
		{"nat", "NaT", false, UnknownTime},
		{"datetime", "2024-03-05 14:07:09", true, "2024/03/05 14:07:09"},
		{"datetime minutes", "2024-03-05 14:07:09", false, "2024/03/05 14:07"},
		{"iso with offset", "2024-03-05T14:07:09+08:00", true, "2024/03/05 06:07:09"},
		{"date only", "2024-03-05", false, "2024/03/05 00:00"},
		{"epoch seconds", "1700000000", true, "2023/11/14 22:13:20"},
		{"epoch millis", "1700000000123", true, "2023/11/14 22:13:20"},
		{"json number", float64(1700000000), true, "2023/11/14 22:13:20"},
		{"unparseable", "yesterday", true, "yesterday"},
		{"short digits", "12345", true, "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatTimestamp(tc.in, tc.withSeconds))
		})
	}
}

func TestSetTimeZone_Invalid(t *testing.T) {
	assert.Error(t, SetTimeZone("Nowhere/Invalid"))
}

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		7:        "7",
		999:      "999",
		1000:     "1,000",
		100000:   "100,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
		-123456:  "-123,456",
		-12:      "-12",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCount(in), "input %d", in)
	}
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "0.87", FormatScore(0.8666))
	assert.Equal(t, "1.00", FormatScore(1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "中文", Truncate("中文字符", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestSanitizeHighlight(t *testing.T) {
	out := SanitizeHighlight(`<mark>hit</mark><script>alert(1)</script><span class="hl" onclick="x()">a</span>`)
	assert.Contains(t, out, "<mark>hit</mark>")
	assert.Contains(t, out, `<span class="hl">a</span>`)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
}
