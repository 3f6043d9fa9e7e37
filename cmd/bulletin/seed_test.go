package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/store"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

const seedYAML = `students:
  - first_name: Ada
    last_name: Lovelace
    class: 5B
    birth_date: 2015-12-10
  - first_name: Alan
    last_name: Turing
    birth_date: 2014-06-23
    active: false
notices:
  - title: Sports day
    body: Bring your **trainers**.
    pinned: true
    published_at: 2026-03-01T08:00:00Z
announcements:
  - text: Bake sale on Friday
    priority: 10
  - text: Old news
    active: false
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// recordingWriter captures what the seed command saves
type recordingWriter struct {
	migrated      bool
	students      []entities.Student
	notices       []entities.Notice
	announcements []entities.Announcement
	failOn        string
}

func (w *recordingWriter) Migrate(context.Context) error {
	if w.failOn == "migrate" {
		return errors.New("migration failed")
	}
	w.migrated = true
	return nil
}

func (w *recordingWriter) SaveStudents(_ context.Context, students []entities.Student) error {
	if w.failOn == "students" {
		return errors.New("student 1: student first name is required")
	}
	w.students = students
	return nil
}

func (w *recordingWriter) SaveNotices(_ context.Context, notices []entities.Notice) error {
	w.notices = notices
	return nil
}

func (w *recordingWriter) SaveAnnouncements(_ context.Context, announcements []entities.Announcement) error {
	w.announcements = announcements
	return nil
}

func TestLoadSeedFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		data, err := loadSeedFile(writeSeed(t, seedYAML))
		require.NoError(t, err)

		require.Len(t, data.Students, 2)
		assert.Equal(t, time.Date(2015, 12, 10, 0, 0, 0, 0, time.UTC), data.Students[0].BirthDate.UTC())
		require.Len(t, data.Notices, 1)
		assert.True(t, data.Notices[0].Pinned)
		require.Len(t, data.Announcements, 2)
	})

	t.Run("empty file", func(t *testing.T) {
		data, err := loadSeedFile(writeSeed(t, ""))
		require.NoError(t, err)
		assert.Empty(t, data.Students)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := loadSeedFile(writeSeed(t, "teachers:\n  - name: Ms Frizzle\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding seed file")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadSeedFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening seed file")
	})
}

func TestSeedRecords(t *testing.T) {
	data, err := loadSeedFile(writeSeed(t, seedYAML))
	require.NoError(t, err)

	t.Run("active defaults to true", func(t *testing.T) {
		writer := &recordingWriter{}
		require.NoError(t, seedRecords(context.Background(), writer, data))

		assert.True(t, writer.migrated)
		require.Len(t, writer.students, 2)
		assert.True(t, writer.students[0].Active)
		assert.False(t, writer.students[1].Active)
		assert.Equal(t, "Lovelace", writer.students[0].LastName)

		require.Len(t, writer.notices, 1)

		require.Len(t, writer.announcements, 2)
		assert.True(t, writer.announcements[0].Active)
		assert.Equal(t, 10, writer.announcements[0].Priority)
		assert.False(t, writer.announcements[1].Active)
	})

	t.Run("migration failure stops seeding", func(t *testing.T) {
		writer := &recordingWriter{failOn: "migrate"}
		require.Error(t, seedRecords(context.Background(), writer, data))
		assert.Nil(t, writer.students)
	})

	t.Run("save failure stops seeding", func(t *testing.T) {
		writer := &recordingWriter{failOn: "students"}
		require.Error(t, seedRecords(context.Background(), writer, data))
		assert.Nil(t, writer.notices)
	})
}

func TestSeedRecordsIntoSQLite(t *testing.T) {
	cfg := testConfig(t)
	db, err := store.Connect(cfg.Database, discardLogger())
	require.NoError(t, err)
	defer func() { _ = store.Close(db) }()

	records := store.NewGormStore(db, discardLogger())

	data, err := loadSeedFile(writeSeed(t, seedYAML))
	require.NoError(t, err)
	require.NoError(t, seedRecords(context.Background(), records, data))

	ctx := context.Background()

	students, err := records.BirthdaysOn(ctx, time.Date(2026, 12, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ada", students[0].FirstName)

	inactive, err := records.BirthdaysOn(ctx, time.Date(2026, 6, 23, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, inactive)

	announcements, err := records.ActiveAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, announcements, 1)
	assert.Equal(t, "Bake sale on Friday", announcements[0].Text)

	notices, err := records.PinnedNotices(ctx, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), 5)
	require.NoError(t, err)
	require.Len(t, notices, 1)
}
