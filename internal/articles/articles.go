package articles

import (
	"strings"
	"time"
)

// Article 后端返回的单条聚合新闻，获取后不再修改
type Article struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	PublishDate time.Time `json:"publishDate"`
	// Publisher 来源标识，通常只有一个，第一个为主来源
	Publisher []string `json:"publisher"`
}

// MainPublisher 返回主来源，没有则为空
func (a Article) MainPublisher() string {
	if len(a.Publisher) == 0 {
		return ""
	}
	return a.Publisher[0]
}

// SortOrder 按发布时间排序的方向
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortOrder 未知取值一律按倒序处理
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(Ascending)) {
		return Ascending
	}
	return Descending
}

// Toggle 返回相反的排序方向
func (o SortOrder) Toggle() SortOrder {
	if o == Ascending {
		return Descending
	}
	return Ascending
}

// FilterState 当前的关键词 / 排序 / 来源 / 页码选择
type FilterState struct {
	Keyword   string    `json:"keyword"`
	SortOrder SortOrder `json:"sortOrder"`
	// Sources 有序集合，不含重复项；为空表示不过滤
	Sources []string `json:"sources"`
	Page    int      `json:"page"`
}

// DefaultFilterState 首屏加载使用的默认筛选条件
func DefaultFilterState() FilterState {
	return FilterState{SortOrder: Descending, Sources: []string{}, Page: 1}
}

// Clone 深拷贝，避免调用方共享 Sources 底层数组
func (f FilterState) Clone() FilterState {
	out := f
	out.Sources = append([]string{}, f.Sources...)
	return out
}

// Normalized 修正非法取值：页码至少为 1，排序方向合法，来源去重去空
func (f FilterState) Normalized() FilterState {
	out := f.Clone()
	if out.Page < 1 {
		out.Page = 1
	}
	out.SortOrder = ParseSortOrder(string(out.SortOrder))
	out.Sources = uniqueSources(out.Sources)
	return out
}

// HasSource 判断来源是否已选中
func (f FilterState) HasSource(id string) bool {
	for _, s := range f.Sources {
		if s == id {
			return true
		}
	}
	return false
}

// WithSource 返回加入或移除某来源后的新状态，原状态不变
func (f FilterState) WithSource(id string, included bool) FilterState {
	out := f.Clone()
	id = strings.TrimSpace(id)
	if id == "" {
		return out
	}
	if included {
		if !out.HasSource(id) {
			out.Sources = append(out.Sources, id)
		}
		return out
	}
	kept := out.Sources[:0]
	for _, s := range out.Sources {
		if s != id {
			kept = append(kept, s)
		}
	}
	out.Sources = kept
	return out
}

func uniqueSources(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// PageResult 一页文章及分页信息，每次成功请求后整体替换
type PageResult struct {
	Articles    []Article `json:"articles"`
	TotalCount  int       `json:"totalCount"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	Recommended []Article `json:"recommended,omitempty"`
}

// Empty 是否没有任何结果
func (p *PageResult) Empty() bool {
	return p == nil || len(p.Articles) == 0
}

// ValidPage 判断页码是否在 [1, TotalPages] 内
func (p *PageResult) ValidPage(n int) bool {
	return p != nil && n >= 1 && n <= p.TotalPages
}

// Response 后端接口的原始 JSON 结构
type Response struct {
	Articles            []Article `json:"articles"`
	AllArticlesLength   int       `json:"allArticlesLength"`
	Page                int       `json:"page"`
	TotalPages          int       `json:"totalPages"`
	RecommendedArticles []Article `json:"recommendedArticles,omitempty"`
}

// PageResult 转换为内部结构，articles 为 null 时统一成空切片
func (r Response) PageResult() *PageResult {
	list := r.Articles
	if list == nil {
		list = []Article{}
	}
	return &PageResult{
		Articles:    list,
		TotalCount:  r.AllArticlesLength,
		CurrentPage: r.Page,
		TotalPages:  r.TotalPages,
		Recommended: r.RecommendedArticles,
	}
}

// ToResponse 供 mock 接口输出使用
func (p *PageResult) ToResponse() Response {
	return Response{
		Articles:            p.Articles,
		AllArticlesLength:   p.TotalCount,
		Page:                p.CurrentPage,
		TotalPages:          p.TotalPages,
		RecommendedArticles: p.Recommended,
	}
}
