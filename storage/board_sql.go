package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/kanban"
)

// boardTaskRecord is one task row. Rows are keyed by owner and task id.
type boardTaskRecord struct {
	Owner       string `gorm:"primaryKey;size:128"`
	ID          string `gorm:"primaryKey;size:64"`
	Status      string `gorm:"size:16;index"`
	Position    int
	Title       string `gorm:"size:200"`
	Description string `gorm:"type:text"`
	Priority    string `gorm:"size:16"`
	AssignedTo  string `gorm:"size:128"`
	DueDate     string `gorm:"size:10"`
	Tags        string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (boardTaskRecord) TableName() string { return "board_tasks" }

// boardOwnerRecord marks owners that saved a board, so an empty board is told
// apart from a board that was never saved.
type boardOwnerRecord struct {
	Owner     string `gorm:"primaryKey;size:128"`
	UpdatedAt time.Time
}

func (boardOwnerRecord) TableName() string { return "board_owners" }

func (r boardTaskRecord) same(o boardTaskRecord) bool {
	return r.Status == o.Status &&
		r.Position == o.Position &&
		r.Title == o.Title &&
		r.Description == o.Description &&
		r.Priority == o.Priority &&
		r.AssignedTo == o.AssignedTo &&
		r.DueDate == o.DueDate &&
		r.Tags == o.Tags &&
		r.CreatedAt.Equal(o.CreatedAt)
}

// SQLBoardStore keeps one row per task in an embedded database and applies
// only the rows that changed on every save.
type SQLBoardStore struct {
	db *gorm.DB
}

// OpenSQLBoardStore opens (or creates) a sqlite database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLBoardStore(path string) (*SQLBoardStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return NewSQLBoardStore(db)
}

// NewSQLBoardStore migrates the board tables on db.
func NewSQLBoardStore(db *gorm.DB) (*SQLBoardStore, error) {
	if err := db.AutoMigrate(&boardTaskRecord{}, &boardOwnerRecord{}); err != nil {
		return nil, err
	}
	return &SQLBoardStore{db: db}, nil
}

func (s *SQLBoardStore) Load(ctx context.Context, owner string) (domain.Columns, bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&boardOwnerRecord{}).Where("owner = ?", owner).Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, nil
	}

	var rows []boardTaskRecord
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("status, position").Find(&rows).Error; err != nil {
		return nil, false, err
	}
	cols := domain.Columns{}
	for _, r := range rows {
		task, err := r.task()
		if err != nil {
			return nil, false, fmt.Errorf("%w: task %s: %v", kanban.ErrCorruptSnapshot, r.ID, err)
		}
		cols[task.Status] = append(cols[task.Status], task)
	}
	return cols, true, nil
}

func (s *SQLBoardStore) Save(ctx context.Context, owner string, cols domain.Columns) error {
	next := map[string]boardTaskRecord{}
	for _, st := range domain.Statuses {
		for i, t := range cols[st] {
			rec, err := taskRecord(owner, i, t)
			if err != nil {
				return err
			}
			next[t.ID] = rec
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []boardTaskRecord
		if err := tx.Where("owner = ?", owner).Find(&current).Error; err != nil {
			return err
		}
		var stale []string
		existing := make(map[string]boardTaskRecord, len(current))
		for _, r := range current {
			existing[r.ID] = r
			if _, keep := next[r.ID]; !keep {
				stale = append(stale, r.ID)
			}
		}
		if len(stale) > 0 {
			if err := tx.Where("owner = ? AND id IN ?", owner, stale).Delete(&boardTaskRecord{}).Error; err != nil {
				return err
			}
		}

		var changed []boardTaskRecord
		for id, rec := range next {
			if old, ok := existing[id]; ok && old.same(rec) {
				continue
			}
			changed = append(changed, rec)
		}
		if len(changed) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&changed).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&boardOwnerRecord{Owner: owner, UpdatedAt: time.Now().UTC()}).Error
	})
}

func taskRecord(owner string, pos int, t domain.Task) (boardTaskRecord, error) {
	tags, err := sonic.MarshalString(t.Tags)
	if err != nil {
		return boardTaskRecord{}, err
	}
	return boardTaskRecord{
		Owner:       owner,
		ID:          t.ID,
		Status:      string(t.Status),
		Position:    pos,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		AssignedTo:  t.AssignedTo,
		DueDate:     t.DueDate.String(),
		Tags:        tags,
		CreatedAt:   t.CreatedAt.UTC(),
	}, nil
}

func (r boardTaskRecord) task() (domain.Task, error) {
	due, err := domain.ParseDate(r.DueDate)
	if err != nil {
		return domain.Task{}, err
	}
	var tags []string
	if r.Tags != "" {
		if err := sonic.UnmarshalString(r.Tags, &tags); err != nil {
			return domain.Task{}, err
		}
	}
	return domain.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    domain.Priority(r.Priority),
		AssignedTo:  r.AssignedTo,
		DueDate:     due,
		Tags:        tags,
		Status:      domain.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}
