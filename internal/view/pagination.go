package view

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// DefaultWindowSize 分页窗口大小
const DefaultWindowSize = 5

// PageItemKind 分页项类型
type PageItemKind string

const (
	PageKindPrev     PageItemKind = "prev"
	PageKindNumber   PageItemKind = "page"
	PageKindEllipsis PageItemKind = "ellipsis"
	PageKindNext     PageItemKind = "next"
)

// PageItem 分页控件中的一项
type PageItem struct {
	Kind     PageItemKind
	Label    string
	Page     int
	Current  bool
	Disabled bool
}

// Paginate 计算分页控件，total <= 1 时为空
func Paginate(current, total, window int) []PageItem {
	if total <= 1 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindowSize
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := max(1, current-window/2)
	end := min(total, start+window-1)
	if end-start+1 < window {
		start = max(1, end-window+1)
	}

	items := make([]PageItem, 0, window+6)
	items = append(items, PageItem{Kind: PageKindPrev, Label: "prev", Page: current - 1, Disabled: current == 1})

	if start > 1 {
		items = append(items, numberItem(1, current))
		if start > 2 {
			items = append(items, PageItem{Kind: PageKindEllipsis, Label: "..."})
		}
	}
	for i := start; i <= end; i++ {
		items = append(items, numberItem(i, current))
	}
	if end < total {
		if end < total-1 {
			items = append(items, PageItem{Kind: PageKindEllipsis, Label: "..."})
		}
		items = append(items, numberItem(total, current))
	}

	items = append(items, PageItem{Kind: PageKindNext, Label: "next", Page: current + 1, Disabled: current == total})
	return items
}

func numberItem(page, current int) PageItem {
	return PageItem{Kind: PageKindNumber, Label: strconv.Itoa(page), Page: page, Current: page == current}
}

// PageLink 返回加载某页的片段地址
type PageLink func(page int) string

// RenderPagination 渲染分页控件，target 为被替换区域的选择器
func RenderPagination(items []PageItem, link PageLink, target string) template.HTML {
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div class="pagination">`)
	for _, it := range items {
		switch it.Kind {
		case PageKindEllipsis:
			b.WriteString(`<span class="pagination-ellipsis">...</span>`)
		case PageKindPrev, PageKindNumber, PageKindNext:
			label := EscapeText(it.Label)
			if it.Kind == PageKindPrev {
				label = `<i class="fas fa-chevron-left"></i>`
			} else if it.Kind == PageKindNext {
				label = `<i class="fas fa-chevron-right"></i>`
			}

			class := "pagination-btn"
			if it.Current {
				class += " active"
			}
			if it.Disabled {
				fmt.Fprintf(&b, `<button class="%s" data-page="%d" disabled>%s</button>`, class, it.Page, label)
				continue
			}
			fmt.Fprintf(&b, `<button class="%s" data-page="%d" hx-get="%s" hx-target="%s" hx-swap="innerHTML">%s</button>`,
				class, it.Page, EscapeText(link(it.Page)), EscapeText(target), label)
		}
	}
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}
