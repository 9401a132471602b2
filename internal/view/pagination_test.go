package view

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(items []PageItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func numbered(items []PageItem) []int {
	var out []int
	for _, it := range items {
		if it.Kind == PageKindNumber {
			out = append(out, it.Page)
		}
	}
	return out
}

func TestPaginate_SinglePage(t *testing.T) {
	assert.Empty(t, Paginate(1, 0, 5))
	assert.Empty(t, Paginate(1, 1, 5))
}

func TestPaginate_SevenPagesMiddle(t *testing.T) {
	items := Paginate(4, 7, 5)

	assert.Equal(t, []string{"prev", "1", "2", "3", "4", "5", "6", "7", "next"}, labels(items))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, numbered(items))

	for _, it := range items {
		if it.Kind == PageKindNumber {
			assert.Equal(t, it.Page == 4, it.Current)
		}
	}
	assert.False(t, items[0].Disabled)
	assert.False(t, items[len(items)-1].Disabled)
}

func TestPaginate_Ellipses(t *testing.T) {
	items := Paginate(10, 20, 5)
	assert.Equal(t, []string{"prev", "1", "...", "8", "9", "10", "11", "12", "...", "20", "next"}, labels(items))

	first := Paginate(1, 20, 5)
	assert.Equal(t, []string{"prev", "1", "2", "3", "4", "5", "...", "20", "next"}, labels(first))
	assert.True(t, first[0].Disabled)
	assert.Equal(t, 0, first[0].Page)

	last := Paginate(20, 20, 5)
	assert.Equal(t, []string{"prev", "1", "...", "16", "17", "18", "19", "20", "next"}, labels(last))
	assert.True(t, last[len(last)-1].Disabled)
}

func TestPaginate_ClampsCurrent(t *testing.T) {
	items := Paginate(99, 20, 5)
	assert.Equal(t, labels(Paginate(20, 20, 5)), labels(items))

	items = Paginate(-3, 20, 0)
	assert.Equal(t, labels(Paginate(1, 20, DefaultWindowSize)), labels(items))
}

func TestPaginate_WindowContainsCurrent(t *testing.T) {
	for total := 5; total <= 30; total++ {
		for current := 1; current <= total; current++ {
			items := Paginate(current, total, 5)
			pages := numbered(items)
			assert.Contains(t, pages, current, "total=%d current=%d", total, current)

			var currents int
			for _, it := range items {
				if it.Current {
					currents++
				}
			}
			assert.Equal(t, 1, currents, "total=%d current=%d", total, current)
		}
	}
}

func TestRenderPagination(t *testing.T) {
	link := func(page int) string { return fmt.Sprintf("/ui/favorites?page=%d", page) }
	out := RenderPagination(Paginate(1, 3, 5), link, "#favorites-region")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(out)))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find(".pagination").Length())
	assert.Equal(t, 5, doc.Find("button.pagination-btn").Length())
	assert.Equal(t, 1, doc.Find("button.active").Length())

	prev := doc.Find("button.pagination-btn").First()
	_, disabled := prev.Attr("disabled")
	assert.True(t, disabled)

	third := doc.Find(`button[data-page="3"]`).First()
	href, _ := third.Attr("hx-get")
	assert.Equal(t, "/ui/favorites?page=3", href)
	target, _ := third.Attr("hx-target")
	assert.Equal(t, "#favorites-region", target)

	assert.Empty(t, RenderPagination(nil, link, "#x"))
}
