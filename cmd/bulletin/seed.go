package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/store"
	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load records from a YAML file",
	Long: `Load students, notices and announcements from a YAML file into the
record database. Records with an id update the existing row.

Example file:
  students:
    - first_name: Ada
      last_name: Lovelace
      class: 5B
      birth_date: 2015-12-10
  notices:
    - title: Sports day
      body: Bring your **trainers**.
      pinned: true
      published_at: 2026-03-01T08:00:00Z
  announcements:
    - text: Bake sale on Friday
      priority: 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedFile is the YAML layout accepted by the seed command
type seedFile struct {
	Students      []seedStudent      `yaml:"students"`
	Notices       []entities.Notice  `yaml:"notices"`
	Announcements []seedAnnouncement `yaml:"announcements"`
}

// seedStudent is a student whose active flag defaults to true
type seedStudent struct {
	ID        uint      `yaml:"id"`
	FirstName string    `yaml:"first_name"`
	LastName  string    `yaml:"last_name"`
	Class     string    `yaml:"class"`
	BirthDate time.Time `yaml:"birth_date"`
	Active    *bool     `yaml:"active"`
}

// seedAnnouncement is an announcement whose active flag defaults to true
type seedAnnouncement struct {
	ID       uint   `yaml:"id"`
	Text     string `yaml:"text"`
	Priority int    `yaml:"priority"`
	Active   *bool  `yaml:"active"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := loadSeedFile(args[0])
	if err != nil {
		return err
	}

	cfg, logger, closeLog, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	db, err := store.Connect(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(db) }()

	if err := seedRecords(cmd.Context(), store.NewGormStore(db, logger), data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d students, %d notices, %d announcements\n",
		len(data.Students), len(data.Notices), len(data.Announcements))
	return nil
}

// loadSeedFile reads and decodes a seed file, rejecting unknown keys
func loadSeedFile(path string) (*seedFile, error) {
	file, err := os.Open(path) // #nosec G304 - path is the command argument
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var data seedFile
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding seed file %s: %w", path, err)
	}

	return &data, nil
}

// seedRecords migrates the tables and saves every record in data
func seedRecords(ctx context.Context, writer ports.RecordWriter, data *seedFile) error {
	if err := writer.Migrate(ctx); err != nil {
		return err
	}

	if err := writer.SaveStudents(ctx, data.students()); err != nil {
		return err
	}
	if err := writer.SaveNotices(ctx, data.Notices); err != nil {
		return err
	}
	return writer.SaveAnnouncements(ctx, data.announcements())
}

func (f *seedFile) students() []entities.Student {
	students := make([]entities.Student, 0, len(f.Students))
	for _, s := range f.Students {
		students = append(students, entities.Student{
			ID:        s.ID,
			FirstName: s.FirstName,
			LastName:  s.LastName,
			Class:     s.Class,
			BirthDate: s.BirthDate,
			Active:    activeOrDefault(s.Active),
		})
	}
	return students
}

func (f *seedFile) announcements() []entities.Announcement {
	announcements := make([]entities.Announcement, 0, len(f.Announcements))
	for _, a := range f.Announcements {
		announcements = append(announcements, entities.Announcement{
			ID:       a.ID,
			Text:     a.Text,
			Priority: a.Priority,
			Active:   activeOrDefault(a.Active),
		})
	}
	return announcements
}

func activeOrDefault(active *bool) bool {
	return active == nil || *active
}
