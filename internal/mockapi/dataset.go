// Package mockapi 提供文章接口的内存实现，仅用于本地开发与测试
package mockapi

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
)

const (
	PageSize         = 10
	recommendedCount = 3
)

// Dataset 内存中的文章集合，可并发查询
type Dataset struct {
	mu       sync.RWMutex
	articles []articles.Article
}

func NewDataset(list []articles.Article) *Dataset {
	return &Dataset{articles: articles.Normalize(list)}
}

// LoadDataset 从 JSON 文件读取文章数组
func LoadDataset(path string) (*Dataset, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mockapi: read dataset: %w", err)
	}
	var list []articles.Article
	if err := json.Unmarshal(bs, &list); err != nil {
		return nil, fmt.Errorf("mockapi: decode dataset: %w", err)
	}
	return NewDataset(list), nil
}

var seedPublishers = []string{"alz.org", "nih.gov", "reuters", "bbc", "medicalnewstoday"}

var seedTopics = []string{
	"Blood test detects early Alzheimer's signs",
	"New drug slows cognitive decline",
	"Sleep quality linked to memory",
	"Caregivers share daily routines",
	"Exercise and brain health study",
	"Diet patterns and dementia risk",
}

// SeedDataset 生成 n 条确定性的测试文章，发布时间逐小时递增
func SeedDataset(n int) *Dataset {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	list := make([]articles.Article, 0, n)
	for i := 0; i < n; i++ {
		pub := seedPublishers[i%len(seedPublishers)]
		list = append(list, articles.Article{
			ID:          fmt.Sprintf("a%03d", i+1),
			Title:       fmt.Sprintf("%s #%d", seedTopics[i%len(seedTopics)], i+1),
			Link:        fmt.Sprintf("https://%s/articles/%d", pub, i+1),
			Description: "Seed article for local development.",
			PublishDate: base.Add(time.Duration(i) * time.Hour),
			Publisher:   []string{pub},
		})
	}
	return NewDataset(list)
}

// Add 追加文章，便于测试构造场景
func (d *Dataset) Add(list ...articles.Article) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.articles = articles.Normalize(append(d.articles, list...))
}

// Len 文章总数
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.articles)
}

// Query 按接口约定过滤、排序、分页；越界页码返回空列表和真实的总页数
func (d *Dataset) Query(f articles.FilterState) *articles.PageResult {
	f = f.Normalized()

	d.mu.RLock()
	matched := articles.ApplyFilters(d.articles, f)
	newest := articles.ApplySort(d.articles, articles.Descending)
	d.mu.RUnlock()

	total := len(matched)
	totalPages := (total + PageSize - 1) / PageSize

	page := []articles.Article{}
	start := (f.Page - 1) * PageSize
	if start < total {
		end := start + PageSize
		if end > total {
			end = total
		}
		page = append(page, matched[start:end]...)
	}

	if len(newest) > recommendedCount {
		newest = newest[:recommendedCount]
	}

	return &articles.PageResult{
		Articles:    page,
		TotalCount:  total,
		CurrentPage: f.Page,
		TotalPages:  totalPages,
		Recommended: newest,
	}
}

// Sources 数据集中出现过的全部来源，按首次出现顺序
func (d *Dataset) Sources() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var f articles.FilterState
	for _, a := range d.articles {
		for _, p := range a.Publisher {
			f = f.WithSource(p, true)
		}
	}
	return f.Sources
}
