package articles

import (
	"sort"
	"strings"
)

// MatchesSources 来源过滤：sources 为空时保留全部，否则 publisher 与 sources 有交集才保留
func MatchesSources(a Article, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, p := range a.Publisher {
		for _, s := range sources {
			if p == s {
				return true
			}
		}
	}
	return false
}

// MatchesKeyword 标题包含关键词（忽略大小写），空关键词匹配全部
func MatchesKeyword(a Article, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Title), strings.ToLower(keyword))
}

// ApplySort 按发布时间稳定排序，返回新切片
func ApplySort(list []Article, order SortOrder) []Article {
	out := append([]Article{}, list...)
	sort.SliceStable(out, func(i, j int) bool {
		if order == Ascending {
			return out[i].PublishDate.Before(out[j].PublishDate)
		}
		return out[i].PublishDate.After(out[j].PublishDate)
	})
	return out
}

// ApplyFilters 先按关键词、来源过滤，再排序；用于对已获取的一页数据做本地筛选
func ApplyFilters(list []Article, f FilterState) []Article {
	filtered := make([]Article, 0, len(list))
	for _, a := range list {
		if !MatchesKeyword(a, f.Keyword) || !MatchesSources(a, f.Sources) {
			continue
		}
		filtered = append(filtered, a)
	}
	return ApplySort(filtered, ParseSortOrder(string(f.SortOrder)))
}
