package view

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageTemplates 解析内嵌的页面模板
func PageTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// SearchTypeOption 搜索类型下拉项
type SearchTypeOption struct {
	Value string
	Label string
}

// IndexData 首页模板数据
type IndexData struct {
	Title        string
	SearchTypes  []SearchTypeOption
	UploadButton template.HTML
	// Loading 各区域的加载占位，键为列表名
	Loading map[string]template.HTML
}

// NewIndexData 首页数据
func NewIndexData(title string) IndexData {
	options := make([]SearchTypeOption, 0, len(searchTypeNames))
	for _, t := range []string{"combined", "keyword", "semantic", "sender"} {
		options = append(options, SearchTypeOption{Value: t, Label: SearchTypeName(t)})
	}
	return IndexData{
		Title:        title,
		SearchTypes:  options,
		UploadButton: UploadButton(true, false),
		Loading: map[string]template.HTML{
			ListSearch:      LoadingIndicator(ListSearch),
			ListFavorites:   LoadingIndicator(ListFavorites),
			ListMessages:    LoadingIndicator(ListMessages),
			ListCallRecords: LoadingIndicator(ListCallRecords),
		},
	}
}
