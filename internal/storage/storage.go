package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LJTian/AlzNews/internal/articles"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrSessionNotFound 没有持久化的访客会话
var ErrSessionNotFound = errors.New("storage: session not found")

// VisitorSession 访客的筛选状态，重启后可恢复
type VisitorSession struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Keyword   string         `gorm:"size:256" json:"keyword"`
	SortOrder string         `gorm:"size:8" json:"sortOrder"`
	Sources   datatypes.JSON `gorm:"type:jsonb" json:"sources"`
	Page      int            `json:"page"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

// Store 持有 Postgres 与 Redis 连接，二者都可以为空：
// DB 为空时不持久化会话，Redis 为空时不缓存分页结果
type Store struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *zap.Logger
}

func NewStore(dsn, redisAddr string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var db *gorm.DB
	if dsn != "" {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("storage: open postgres: %w", err)
		}
	} else {
		log.Info("storage: POSTGRES_DSN empty, session persistence disabled")
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("storage: redis ping failed", zap.String("addr", redisAddr), zap.Error(err))
		}
	}

	return NewStoreWith(db, rdb, log)
}

// NewStoreWith 使用已建立的连接，db 非空时自动迁移表结构
func NewStoreWith(db *gorm.DB, rdb *redis.Client, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if db != nil {
		if err := db.AutoMigrate(&VisitorSession{}); err != nil {
			return nil, fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return &Store{DB: db, Redis: rdb, logger: log}, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func toRecord(id string, f articles.FilterState) (*VisitorSession, error) {
	f = f.Normalized()
	bs, err := json.Marshal(f.Sources)
	if err != nil {
		return nil, err
	}
	return &VisitorSession{
		ID:        id,
		Keyword:   truncateRunes(f.Keyword, 256),
		SortOrder: string(f.SortOrder),
		Sources:   datatypes.JSON(bs),
		Page:      f.Page,
	}, nil
}

func fromRecord(r *VisitorSession) (articles.FilterState, error) {
	var sources []string
	if len(r.Sources) > 0 {
		if err := json.Unmarshal(r.Sources, &sources); err != nil {
			return articles.FilterState{}, err
		}
	}
	f := articles.FilterState{
		Keyword:   r.Keyword,
		SortOrder: articles.ParseSortOrder(r.SortOrder),
		Sources:   sources,
		Page:      r.Page,
	}
	return f.Normalized(), nil
}

// SaveSession 写入或更新访客的筛选状态
func (s *Store) SaveSession(ctx context.Context, id string, f articles.FilterState) error {
	if s.DB == nil {
		return nil
	}
	rec, err := toRecord(id, f)
	if err != nil {
		return fmt.Errorf("storage: encode session: %w", err)
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"keyword", "sort_order", "sources", "page", "updated_at"}),
	}).Create(rec).Error
}

// LoadSession 读取访客的筛选状态
func (s *Store) LoadSession(ctx context.Context, id string) (articles.FilterState, error) {
	if s.DB == nil {
		return articles.FilterState{}, ErrSessionNotFound
	}
	var rec VisitorSession
	err := s.DB.WithContext(ctx).
		Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)}).
		Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return articles.FilterState{}, ErrSessionNotFound
	}
	if err != nil {
		return articles.FilterState{}, err
	}
	return fromRecord(&rec)
}

// PruneSessions 删除超过 ttl 未更新的会话，返回删除条数
func (s *Store) PruneSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	if s.DB == nil {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Where("updated_at < ?", time.Now().Add(-ttl)).Delete(&VisitorSession{})
	return res.RowsAffected, res.Error
}

// truncateRunes 按 rune 截断，保证不超过字段长度
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
