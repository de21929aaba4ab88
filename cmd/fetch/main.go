// 一个只请求一次文章接口的命令行入口：适合手动检查后端返回
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/LJTian/AlzNews/internal/config"
	"github.com/LJTian/AlzNews/internal/newsapi"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	backend string
	page    int
	sort    string
	keyword string
	sources []string
	asJSON  bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one page of approved articles from the news backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if f.backend == "" {
				f.backend = cfg.BackendURL
			}
			if f.timeout <= 0 {
				f.timeout = cfg.RequestTimeout
			}
			return runFetch(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.backend, "backend", "", "article endpoint (default BACKEND_URL)")
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().StringVarP(&f.sort, "sort", "s", string(articles.Descending), "sort order: asc or desc")
	cmd.Flags().StringVarP(&f.keyword, "keyword", "k", "", "title keyword")
	cmd.Flags().StringArrayVar(&f.sources, "source", nil, "news source, repeatable")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the wire response as JSON")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "request timeout (default REQUEST_TIMEOUT)")
	return cmd
}

func runFetch(ctx context.Context, w io.Writer, f fetchFlags) error {
	if f.page < 1 {
		return fmt.Errorf("fetch: page must be >= 1, got %d", f.page)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	state := articles.FilterState{
		Keyword:   f.keyword,
		SortOrder: articles.ParseSortOrder(f.sort),
		Sources:   f.sources,
		Page:      f.page,
	}.Normalized()

	res, err := newsapi.NewClient(f.backend).ListArticles(ctx, state)
	if err != nil {
		return err
	}

	if f.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.ToResponse())
	}
	printPage(w, res)
	return nil
}

func printPage(w io.Writer, res *articles.PageResult) {
	if len(res.Articles) == 0 {
		fmt.Fprintln(w, "No articles found...")
		return
	}
	fmt.Fprintf(w, "%d articles found – page %d of %d\n", res.TotalCount, res.CurrentPage, res.TotalPages)
	for _, a := range res.Articles {
		fmt.Fprintf(w, "%s  %-18s  %s\n", a.PublishDate.Format("2006-01-02"), a.MainPublisher(), a.Title)
	}
}
