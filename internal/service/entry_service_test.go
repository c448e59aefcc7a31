package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"calling-journal-go/internal/model"
	"calling-journal-go/internal/service"
	"calling-journal-go/pkg/tasks"

	"gorm.io/gorm"
)

// fakeEntryRepo 是 EntryRepository 的内存实现。
type fakeEntryRepo struct {
	nextID  uint
	entries map[string]*model.JournalEntry
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]*model.JournalEntry)}
}

func entryKey(userID uint, date string) string {
	return fmt.Sprintf("%d|%s", userID, date)
}

func (r *fakeEntryRepo) Create(entry *model.JournalEntry) error {
	key := entryKey(entry.UserID, entry.Date)
	if _, ok := r.entries[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	copied := *entry
	r.entries[key] = &copied
	return nil
}

func (r *fakeEntryRepo) Update(entry *model.JournalEntry) error {
	entry.UpdatedAt = time.Now()
	copied := *entry
	r.entries[entryKey(entry.UserID, entry.Date)] = &copied
	return nil
}

func (r *fakeEntryRepo) Delete(userID uint, date string) error {
	key := entryKey(userID, date)
	if _, ok := r.entries[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.entries, key)
	return nil
}

func (r *fakeEntryRepo) FindByUserAndDate(userID uint, date string) (*model.JournalEntry, error) {
	entry, ok := r.entries[entryKey(userID, date)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *fakeEntryRepo) FindByUser(userID uint, offset, limit int) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date })
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// fakeObjectStore 记录上传的对象名。
type fakeObjectStore struct {
	uploaded []string
}

func (s *fakeObjectStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return err
	}
	s.uploaded = append(s.uploaded, objectName)
	return nil
}

func (s *fakeObjectStore) PresignedURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://storage.test/" + objectName, nil
}

func newEntryService(repo *fakeEntryRepo, store *fakeObjectStore, produced *[]tasks.EntryIndexTask) service.EntryService {
	return service.NewEntryService(repo, store, func(task tasks.EntryIndexTask) error {
		if produced != nil {
			*produced = append(*produced, task)
		}
		return nil
	})
}

func TestEntryGetBeforeCreate(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), &fakeObjectStore{}, nil)

	// 尚未创建时是“还没写”，不是异常
	if _, err := svc.Get(testUserID, "2024-01-01"); !errors.Is(err, service.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	// 随后创建同一天必须成功
	entry, err := svc.Create(testUserID, service.EntryInput{Date: "2024-01-01", Content: "first"})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if entry.Title != model.DefaultEntryTitle || entry.Mood != model.DefaultEntryMood {
		t.Fatalf("defaults not applied: %+v", entry)
	}
}

func TestEntryCreateThenUpdateNoDuplicate(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, &fakeObjectStore{}, nil)

	if _, err := svc.Create(testUserID, service.EntryInput{Date: "2024-03-05", Title: "Morning"}); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	newTitle := "Evening"
	newContent := "Long day."
	updated, err := svc.Update(testUserID, "2024-03-05", service.EntryUpdate{Title: &newTitle, Content: &newContent})
	if err != nil {
		t.Fatalf("Update err: %v", err)
	}
	if updated.Title != "Evening" || updated.Content != "Long day." {
		t.Fatalf("update not applied: %+v", updated)
	}

	// 同一天始终只有一条
	entries, _ := svc.List(testUserID, 0, 100)
	if len(entries) != 1 {
		t.Fatalf("expected a single entry for the date, got %d", len(entries))
	}

	got, err := svc.Get(testUserID, "2024-03-05")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.Title != "Evening" {
		t.Fatalf("get after update returned stale fields: %+v", got)
	}
}

func TestEntryCreateDuplicateFails(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), &fakeObjectStore{}, nil)

	if _, err := svc.Create(testUserID, service.EntryInput{Date: "2024-07-07"}); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if _, err := svc.Create(testUserID, service.EntryInput{Date: "2024-07-07"}); !errors.Is(err, service.ErrEntryExists) {
		t.Fatalf("expected ErrEntryExists, got %v", err)
	}
}

func TestEntryUpdateMissing(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), &fakeObjectStore{}, nil)

	title := "x"
	if _, err := svc.Update(testUserID, "2024-02-02", service.EntryUpdate{Title: &title}); !errors.Is(err, service.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestEntryDelete(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), &fakeObjectStore{}, nil)

	if _, err := svc.Create(testUserID, service.EntryInput{Date: "2024-05-05"}); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if err := svc.Delete(testUserID, "2024-05-05"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := svc.Get(testUserID, "2024-05-05"); !errors.Is(err, service.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound after delete, got %v", err)
	}
	if err := svc.Delete(testUserID, "2024-05-05"); !errors.Is(err, service.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound on second delete, got %v", err)
	}
}

func TestEntryInvalidDate(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), &fakeObjectStore{}, nil)

	if _, err := svc.Get(testUserID, "01-01-2024"); !errors.Is(err, service.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := svc.Create(testUserID, service.EntryInput{Date: "yesterday"}); !errors.Is(err, service.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestEntryIndexTasksPublished(t *testing.T) {
	var produced []tasks.EntryIndexTask
	svc := newEntryService(newFakeEntryRepo(), &fakeObjectStore{}, &produced)

	if _, err := svc.Create(testUserID, service.EntryInput{Date: "2024-06-06"}); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if err := svc.Delete(testUserID, "2024-06-06"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}

	if len(produced) != 2 {
		t.Fatalf("expected 2 index tasks, got %d", len(produced))
	}
	if produced[0].Action != tasks.ActionUpsert || produced[1].Action != tasks.ActionDelete {
		t.Fatalf("unexpected task actions: %+v", produced)
	}
}

func TestEntryAttachAudio(t *testing.T) {
	store := &fakeObjectStore{}
	svc := newEntryService(newFakeEntryRepo(), store, nil)

	if _, err := svc.Create(testUserID, service.EntryInput{Date: "2024-08-08"}); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	entry, url, err := svc.AttachAudio(context.Background(), testUserID, "2024-08-08", "note.m4a", bytes.NewReader([]byte("audio")), 5, "audio/mp4")
	if err != nil {
		t.Fatalf("AttachAudio err: %v", err)
	}
	if entry.AudioURL == "" {
		t.Fatal("audio_url not set on entry")
	}
	if len(store.uploaded) != 1 {
		t.Fatalf("expected 1 uploaded object, got %d", len(store.uploaded))
	}
	if url == "" {
		t.Fatal("expected presigned url")
	}

	// 没有条目的日期不能挂音频
	if _, _, err := svc.AttachAudio(context.Background(), testUserID, "2024-08-09", "note.m4a", bytes.NewReader(nil), 0, "audio/mp4"); !errors.Is(err, service.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
