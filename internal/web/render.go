package web

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/controller"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
		"add":  func(a, b int) int { return a + b },
	}).ParseFS(templateFS, "templates/*.html"),
)

const (
	pageRangeDisplayed   = 2
	marginPagesDisplayed = 2
)

// pageItem 分页条中的一项；Break 表示省略号
type pageItem struct {
	Number int  `json:"number,omitempty"`
	Active bool `json:"active,omitempty"`
	Break  bool `json:"break,omitempty"`
}

// paginate 生成分页条：首尾各保留 margin 页，当前页附近保留 window 页，其余折叠为省略号
func paginate(current, total, window, margin int) []pageItem {
	if total <= 0 {
		return nil
	}
	left := window / 2
	right := window - left

	var items []pageItem
	for n := 1; n <= total; n++ {
		visible := n <= margin || n > total-margin || (n >= current-left && n <= current+right)
		if visible {
			items = append(items, pageItem{Number: n, Active: n == current})
			continue
		}
		if len(items) == 0 || !items[len(items)-1].Break {
			items = append(items, pageItem{Break: true})
		}
	}
	return items
}

// summary 结果提示行
func summary(v controller.View) string {
	if v.Result.Empty() {
		return "No articles found..."
	}
	return fmt.Sprintf("%d articles found – page %d of %d", v.Result.TotalCount, v.State.Page, v.Result.TotalPages)
}

// viewPayload JSON 接口与 SSE 返回的结构
type viewPayload struct {
	controller.View
	PageIndex int        `json:"pageIndex"`
	Summary   string     `json:"summary"`
	Pages     []pageItem `json:"pages"`
}

func newViewPayload(v controller.View) viewPayload {
	return viewPayload{
		View:      v,
		PageIndex: v.PageIndex(),
		Summary:   summary(v),
		Pages:     paginate(v.State.Page, v.TotalPages(), pageRangeDisplayed, marginPagesDisplayed),
	}
}

type sourceOption struct {
	ID      string
	Checked bool
}

type pageData struct {
	View        controller.View
	Summary     string
	Pages       []pageItem
	HasPrev     bool
	HasNext     bool
	Articles    []articles.Article
	Recommended []articles.Article
	Sources     []sourceOption
}

func newPageData(v controller.View, sources []string) pageData {
	d := pageData{
		View:     v,
		Summary:  summary(v),
		Pages:    paginate(v.State.Page, v.TotalPages(), pageRangeDisplayed, marginPagesDisplayed),
		HasPrev:  v.State.Page > 1,
		HasNext:  v.State.Page < v.TotalPages(),
		Articles: []articles.Article{},
	}
	if v.Result != nil {
		d.Articles = v.Result.Articles
		d.Recommended = v.Result.Recommended
	}
	for _, s := range sources {
		d.Sources = append(d.Sources, sourceOption{ID: s, Checked: v.State.HasSource(s)})
	}
	return d
}
