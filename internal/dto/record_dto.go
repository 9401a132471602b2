package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// 记录类型
const (
	KindMessage       = "message"
	KindContact       = "contact"
	KindWechatGroup   = "wechat_group"
	KindWechatContact = "wechat_contact"
)

// FlexString 兼容后端返回的字符串或数字字段
type FlexString string

// UnmarshalJSON 接受 JSON 字符串、数字、布尔值和 null
func (f *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err == nil {
			*f = FlexString(n.String())
			return nil
		}
		*f = FlexString(raw)
	}
	return nil
}

// String 返回原始字符串
func (f FlexString) String() string {
	return string(f)
}

// FlexBool 兼容后端返回的布尔、0/1 和字符串形式
type FlexBool bool

// UnmarshalJSON 接受 true/false、数字和 "true"/"1" 之类的字符串，无法识别时为 false
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		*b = true
	case "", "null", "false", "0", "no":
		*b = false
	default:
		f, err := strconv.ParseFloat(raw, 64)
		*b = FlexBool(err == nil && f != 0)
	}
	return nil
}

// ResultRecord 搜索、收藏、消息列表中的单条记录
type ResultRecord struct {
	Type         string `json:"type"`
	FavoriteType string `json:"favorite_type"`

	ID       FlexString `json:"id"`
	GroupID  FlexString `json:"group_id"`
	WechatID FlexString `json:"wechat_id"`

	IsFavorite    FlexBool   `json:"is_favorite"`
	Score         *float64   `json:"score,omitempty"`
	OriginalQuery FlexString `json:"original_query"`

	// message
	Sender     FlexString `json:"sender"`
	Time       FlexString `json:"time"`
	Content    FlexString `json:"content"`
	Source     FlexString `json:"source"`
	SourceFile FlexString `json:"source_file"`
	IsSent     FlexBool   `json:"is_sent"`

	// contact / wechat_contact
	Name     FlexString `json:"name"`
	Phone    FlexString `json:"phone"`
	Nickname FlexString `json:"nickname"`
	Remark   FlexString `json:"remark"`

	// wechat_group
	GroupName    FlexString `json:"group_name"`
	MemberCount  FlexString `json:"member_count"`
	Announcement FlexString `json:"announcement"`

	// Highlights 保存 highlighted_<field> 字段，键为去掉前缀后的字段名
	Highlights map[string]string `json:"-"`
	// Raw 原始 JSON 对象，未知类型时用于回退展示
	Raw map[string]interface{} `json:"-"`
	// DecodeErr 该条记录无法按已知字段解码，渲染为出错条目
	DecodeErr error `json:"-"`
}

// UnmarshalJSON 解码已知字段，并收集高亮字段和原始对象
// 单条记录解码失败时不返回错误，只记录在 DecodeErr 中，避免整个列表无法解析
func (r *ResultRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*r = ResultRecord{DecodeErr: fmt.Errorf("记录不是 JSON 对象: %w", err)}
		return nil
	}

	type plain ResultRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*r = ResultRecord{
			Type:      rawString(raw, "favorite_type", "type"),
			ID:        FlexString(rawString(raw, "id", "group_id", "wechat_id")),
			Raw:       raw,
			DecodeErr: err,
		}
		return nil
	}

	p.Raw = raw
	for key, value := range raw {
		if !strings.HasPrefix(key, "highlighted_") {
			continue
		}
		s, ok := value.(string)
		if !ok || s == "" {
			continue
		}
		if p.Highlights == nil {
			p.Highlights = make(map[string]string)
		}
		p.Highlights[strings.TrimPrefix(key, "highlighted_")] = s
	}

	*r = ResultRecord(p)
	return nil
}

// rawString 按顺序取第一个非空的字段值
func rawString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Kind 返回记录类型，收藏接口的 favorite_type 优先
func (r *ResultRecord) Kind() string {
	if r.FavoriteType != "" {
		return r.FavoriteType
	}
	return r.Type
}

// Identifier 返回记录的稳定标识：id，其次 group_id，再次 wechat_id
func (r *ResultRecord) Identifier() string {
	for _, v := range []FlexString{r.ID, r.GroupID, r.WechatID} {
		if v != "" {
			return v.String()
		}
	}
	return ""
}

// Highlight 返回字段的高亮版本
func (r *ResultRecord) Highlight(field string) string {
	if r.Highlights == nil {
		return ""
	}
	return r.Highlights[field]
}

// Members 返回群成员数，无法解析时为 0
func (r *ResultRecord) Members() int64 {
	n, err := strconv.ParseInt(r.MemberCount.String(), 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(r.MemberCount.String(), 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}
