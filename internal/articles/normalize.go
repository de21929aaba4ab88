package articles

import "strings"

// Normalize 清洗后端返回的文章：去掉标题首尾空白，按 ID（缺省时按链接）去重，保留首次出现的项
func Normalize(list []Article) []Article {
	out := make([]Article, 0, len(list))
	seen := make(map[string]struct{}, len(list))

	for _, a := range list {
		key := a.ID
		if key == "" {
			key = a.Link
		}
		if key != "" {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		a.Title = strings.TrimSpace(a.Title)
		a.Publisher = append([]string{}, a.Publisher...)
		out = append(out, a)
	}

	return out
}
