package view

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"inspect-go/internal/dto"
	"inspect-go/internal/metrics"
)

// 片段接口
const (
	SearchPath         = "/ui/search"
	FavoritesPath      = "/ui/favorites"
	MessagesPath       = "/ui/messages"
	ToggleFavoritePath = "/ui/favorites/toggle"
	ContextPathPrefix  = "/ui/context/"
)

// 列表名称
const (
	ListSearch    = "search"
	ListFavorites = "favorites"
	ListMessages  = "messages"
)

// RegionTarget 列表所在区域的选择器
func RegionTarget(list string) string {
	return "#" + list + "-region"
}

// RenderContext 渲染一条记录所需的上下文
type RenderContext struct {
	// InFavorites 是否在收藏列表中渲染
	InFavorites bool
	// Query 当前搜索词
	Query      string
	List       string
	Generation int64
}

// ForList 按列表名构造渲染上下文
func ForList(list, query string, generation int64) RenderContext {
	return RenderContext{
		InFavorites: list == ListFavorites,
		Query:       query,
		List:        list,
		Generation:  generation,
	}
}

// pick 搜索上下文优先使用高亮字段，收藏上下文只用转义后的原始字段
func (c RenderContext) pick(rec *dto.ResultRecord, field, raw string) string {
	if !c.InFavorites {
		if h := rec.Highlight(field); h != "" {
			return SanitizeHighlight(h)
		}
	}
	return EscapeText(raw)
}

// domID 把任意标识转为可用于元素 id 的字符串
func domID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%x", r)
		}
	}
	return b.String()
}

// ItemDOMID 列表项的元素 id
func ItemDOMID(list, id string) string {
	return "item-" + list + "-" + domID(id)
}

// ContextDOMID 上下文占位容器的元素 id
func ContextDOMID(list, id string) string {
	return "context-" + list + "-" + domID(id)
}

func contextButtonDOMID(list, id string) string {
	return "ctx-btn-" + list + "-" + domID(id)
}

const renderErrorContent = `<div class="result-content error">渲染此项时出错</div>`

// RenderResult 渲染一条记录，内部 panic 会被恢复为错误片段
func RenderResult(rec *dto.ResultRecord, ctx RenderContext) (out template.HTML) {
	if rec == nil {
		return ""
	}
	kind := rec.Kind()
	id := rec.Identifier()
	if rec.DecodeErr != nil {
		metrics.RenderFailures.WithLabelValues(metricKind(kind)).Inc()
		if kind == "" {
			kind = "unknown"
		}
		return renderItem(ctx, id, kind, "", renderErrorContent, "", "")
	}
	if kind == "" {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.RenderFailures.WithLabelValues(metricKind(kind)).Inc()
			out = renderItem(ctx, id, kind, "", renderErrorContent, "", "")
		}
	}()

	var header, content, contextHTML, footer string
	switch kind {
	case dto.KindMessage:
		header, content, contextHTML, footer = renderMessage(rec, id, ctx)
	case dto.KindContact:
		header, content, footer = renderContact(rec, id, ctx)
	case dto.KindWechatGroup:
		header, content, footer = renderWechatGroup(rec, id, ctx)
	case dto.KindWechatContact:
		header, content, footer = renderWechatContact(rec, id, ctx)
	default:
		header, content, footer = renderUnknown(rec, kind, id, ctx)
	}

	return renderItem(ctx, id, kind, header, content, contextHTML, footer)
}

func metricKind(kind string) string {
	switch kind {
	case dto.KindMessage, dto.KindContact, dto.KindWechatGroup, dto.KindWechatContact:
		return kind
	}
	return "unknown"
}

func renderItem(ctx RenderContext, id, kind, header, content, contextHTML, footer string) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="result-item" data-item-id="%s" data-item-type="%s"`, EscapeText(id), EscapeText(kind))
	if id != "" {
		fmt.Fprintf(&b, ` id="%s"`, ItemDOMID(ctx.List, id))
	}
	b.WriteString(`>`)
	fmt.Fprintf(&b, `<div class="result-header">%s</div>`, header)
	b.WriteString(content)
	b.WriteString(contextHTML)
	fmt.Fprintf(&b, `<div class="result-footer">%s</div>`, footer)
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}

func scoreMeta(rec *dto.ResultRecord, ctx RenderContext) string {
	if rec.Score == nil || ctx.InFavorites {
		return ""
	}
	return fmt.Sprintf(` <span class="result-score"><i class="fas fa-chart-line"></i> 相关度: %s</span>`, FormatScore(*rec.Score))
}

func renderMessage(rec *dto.ResultRecord, id string, ctx RenderContext) (header, content, contextHTML, footer string) {
	header = fmt.Sprintf(`<div class="result-title">%s</div><div class="result-meta"><span><i class="fas fa-tag"></i> 聊天消息</span> <span><i class="far fa-clock"></i> %s</span>%s</div>`,
		EscapeOr(rec.Sender, "未知发送者"), EscapeText(FormatTimestamp(rec.Time, true)), scoreMeta(rec, ctx))
	content = fmt.Sprintf(`<div class="result-content">%s</div>`, ctx.pick(rec, "content", rec.Content.String()))

	source := rec.Source.String()
	if source == "" {
		source = rec.SourceFile.String()
	}

	var controls strings.Builder
	if !ctx.InFavorites && id != "" {
		contextHTML = fmt.Sprintf(`<div class="conversation-context-placeholder" id="%s" data-message-id="%s"></div>`,
			ContextDOMID(ctx.List, id), EscapeText(id))
		controls.WriteString(string(ContextButton(id, false, ctx, false)))
	}
	controls.WriteString(originalQueryButton(rec, ctx))
	controls.WriteString(string(FavoriteButton(dto.KindMessage, id, ctx.InFavorites || bool(rec.IsFavorite), ctx)))

	footer = fmt.Sprintf(`<div>来源: %s</div><div>%s</div>`, EscapeOr(source, "未知"), controls.String())
	return
}

func renderContact(rec *dto.ResultRecord, id string, ctx RenderContext) (header, content, footer string) {
	name := ctx.pick(rec, "name", rec.Name.String())
	if name == "" {
		name = "未知联系人"
	}
	phone := ctx.pick(rec, "phone", rec.Phone.String())
	if phone == "" {
		phone = "无"
	}

	header = fmt.Sprintf(`<div class="result-title">%s</div><div class="result-meta"><span><i class="fas fa-tag"></i> 通讯录联系人</span>%s</div>`,
		name, scoreMeta(rec, ctx))
	content = fmt.Sprintf(`<div class="result-content"><p><i class="fas fa-phone"></i> 电话: %s</p></div>`, phone)
	footer = plainFooter(rec, dto.KindContact, id, ctx)
	return
}

func renderWechatGroup(rec *dto.ResultRecord, id string, ctx RenderContext) (header, content, footer string) {
	name := ctx.pick(rec, "group_name", rec.GroupName.String())
	if name == "" {
		name = "未知群组"
	}

	var meta strings.Builder
	meta.WriteString(`<span><i class="fas fa-tag"></i> 微信群组</span>`)
	if n := rec.Members(); n > 0 {
		fmt.Fprintf(&meta, ` <span><i class="fas fa-users"></i> %s人</span>`, FormatCount(n))
	}
	meta.WriteString(scoreMeta(rec, ctx))
	header = fmt.Sprintf(`<div class="result-title">%s</div><div class="result-meta">%s</div>`, name, meta.String())

	var body strings.Builder
	body.WriteString(`<div class="result-content">`)
	if a := ctx.pick(rec, "announcement", rec.Announcement.String()); a != "" {
		fmt.Fprintf(&body, `<p><i class="fas fa-bullhorn"></i> 公告: %s</p>`, a)
	}
	body.WriteString(`</div>`)
	content = body.String()
	footer = plainFooter(rec, dto.KindWechatGroup, id, ctx)
	return
}

func renderWechatContact(rec *dto.ResultRecord, id string, ctx RenderContext) (header, content, footer string) {
	var name string
	if ctx.InFavorites {
		name = EscapeOr(rec.Nickname, EscapeText(rec.Remark))
	} else {
		for _, candidate := range []string{rec.Highlight("nickname"), rec.Highlight("remark")} {
			if candidate != "" {
				name = SanitizeHighlight(candidate)
				break
			}
		}
		if name == "" {
			name = EscapeOr(rec.Nickname, EscapeText(rec.Remark))
		}
	}
	if name == "" {
		name = "未知用户"
	}

	header = fmt.Sprintf(`<div class="result-title">%s</div><div class="result-meta"><span><i class="fas fa-tag"></i> 微信联系人</span>%s</div>`,
		name, scoreMeta(rec, ctx))

	var body strings.Builder
	body.WriteString(`<div class="result-content">`)
	if remark := ctx.pick(rec, "remark", rec.Remark.String()); remark != "" {
		fmt.Fprintf(&body, `<p><i class="fas fa-user-edit"></i> 备注: %s</p>`, remark)
	}
	if phone := ctx.pick(rec, "phone", rec.Phone.String()); phone != "" {
		fmt.Fprintf(&body, `<p><i class="fas fa-phone"></i> 电话: %s</p>`, phone)
	}
	if group := EscapeText(rec.GroupName); group != "" {
		fmt.Fprintf(&body, `<p><i class="fas fa-users"></i> 所在群: %s</p>`, group)
	}
	body.WriteString(`</div>`)
	content = body.String()
	footer = plainFooter(rec, dto.KindWechatContact, id, ctx)
	return
}

func renderUnknown(rec *dto.ResultRecord, kind, id string, ctx RenderContext) (header, content, footer string) {
	header = fmt.Sprintf(`<div class="result-title">未知类型: %s</div>`, EscapeText(kind))

	raw, err := json.Marshal(rec.Raw)
	if err != nil {
		raw = []byte(fmt.Sprint(rec.Raw))
	}
	content = fmt.Sprintf(`<div class="result-content">%s...</div>`, EscapeText(Truncate(string(raw), 100)))

	var controls strings.Builder
	controls.WriteString(originalQueryButton(rec, ctx))
	if id != "" {
		controls.WriteString(string(FavoriteButton(kind, id, ctx.InFavorites || bool(rec.IsFavorite), ctx)))
	}
	footer = fmt.Sprintf(`<div></div><div>%s</div>`, controls.String())
	return
}

func plainFooter(rec *dto.ResultRecord, kind, id string, ctx RenderContext) string {
	return fmt.Sprintf(`<div></div><div>%s%s</div>`,
		originalQueryButton(rec, ctx), FavoriteButton(kind, id, ctx.InFavorites || bool(rec.IsFavorite), ctx))
}

func originalQueryButton(rec *dto.ResultRecord, ctx RenderContext) string {
	if !ctx.InFavorites || rec.OriginalQuery == "" {
		return ""
	}
	q := EscapeText(rec.OriginalQuery)
	link := SearchPath + "?" + url.Values{"q": {rec.OriginalQuery.String()}}.Encode()
	return fmt.Sprintf(` <button class="btn btn-secondary btn-sm view-original-search-btn" data-query="%s" data-tab="searchTab" title="查看原始搜索: %s" hx-get="%s" hx-target="%s" hx-swap="innerHTML"><i class="fas fa-search"></i> 查看搜索</button>`,
		q, q, EscapeText(link), RegionTarget(ListSearch))
}

// FavoriteButton 收藏开关，favorited 决定标签、图标和下一次动作
func FavoriteButton(kind, id string, favorited bool, ctx RenderContext) template.HTML {
	class := "btn btn-secondary btn-sm favorite-btn"
	icon, label, title, action := "far", "收藏", "收藏", "add"
	if favorited {
		class += " favorited"
		icon, label, title, action = "fas", "已收藏", "取消收藏", "remove"
	}

	if id == "" {
		return template.HTML(fmt.Sprintf(` <button class="%s" data-type="%s" disabled><i class="%s fa-star"></i> %s</button>`,
			class, EscapeText(kind), icon, label))
	}

	params := url.Values{
		"type":   {kind},
		"id":     {id},
		"action": {action},
		"list":   {ctx.List},
		"gen":    {strconv.FormatInt(ctx.Generation, 10)},
	}
	target := "this"
	if ctx.InFavorites {
		target = "closest .result-item"
	}

	return template.HTML(fmt.Sprintf(` <button class="%s" data-type="%s" data-id="%s" data-query="%s" title="%s" hx-post="%s" hx-target="%s" hx-swap="outerHTML"><i class="%s fa-star"></i> %s</button>`,
		class, EscapeText(kind), EscapeText(id), EscapeText(ctx.Query), title,
		EscapeText(ToggleFavoritePath+"?"+params.Encode()), target, icon, label))
}

// ContextButton 会话上下文开关，oob 时作为带外替换输出
func ContextButton(messageID string, expanded bool, ctx RenderContext, oob bool) template.HTML {
	icon, label := "fa-comment-dots", "上下文"
	if expanded {
		icon, label = "fa-comment-slash", "隐藏上下文"
	}

	params := url.Values{
		"list": {ctx.List},
		"gen":  {strconv.FormatInt(ctx.Generation, 10)},
	}
	link := ContextPathPrefix + url.PathEscape(messageID) + "?" + params.Encode()

	swapOOB := ""
	if oob {
		swapOOB = ` hx-swap-oob="true"`
	}

	return template.HTML(fmt.Sprintf(`<button id="%s" class="btn btn-secondary btn-sm show-context-btn" data-message-id="%s" hx-get="%s" hx-target="#%s" hx-swap="innerHTML"%s><i class="fas %s"></i> %s</button>`,
		contextButtonDOMID(ctx.List, messageID), EscapeText(messageID), EscapeText(link),
		ContextDOMID(ctx.List, messageID), swapOOB, icon, label))
}

// RenderContextMessages 渲染会话上下文，当前消息加 current-message 标记
func RenderContextMessages(messages []*dto.ResultRecord, currentID string) template.HTML {
	if len(messages) == 0 {
		return `<p class="no-context">无上下文记录</p>`
	}

	var b strings.Builder
	b.WriteString(`<div class="conversation-context">`)
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		class := "context-message received"
		if msg.IsSent {
			class = "context-message sent"
		}
		if msg.Identifier() == currentID {
			class += " current-message"
		}

		body := EscapeText(msg.Content)
		if h := msg.Highlight("content"); h != "" {
			body = SanitizeHighlight(h)
		}

		fmt.Fprintf(&b, `<div class="%s"><div class="context-message-header"><span class="context-message-sender">%s</span><span class="context-message-time">%s</span></div><div class="context-message-content">%s</div></div>`,
			class, EscapeOr(msg.Sender, "未知"), EscapeText(FormatTimestamp(msg.Time, true)), body)
	}
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}
