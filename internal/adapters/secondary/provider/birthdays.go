package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// BirthdayFetcher turns today's student birthdays into dynamic slides that expire at the
// end of the local day
type BirthdayFetcher struct {
	store    ports.RecordStore
	clock    ports.TimeProvider
	location *time.Location
	limit    int
	caser    cases.Caser
}

// NewBirthdayFetcher creates a fetcher reading from store. "Today" is evaluated in loc.
func NewBirthdayFetcher(store ports.RecordStore, clock ports.TimeProvider, loc *time.Location, limit int) *BirthdayFetcher {
	if clock == nil {
		clock = ports.NewRealTimeProvider()
	}
	if loc == nil {
		loc = time.Local
	}

	return &BirthdayFetcher{
		store:    store,
		clock:    clock,
		location: loc,
		limit:    limit,
		caser:    cases.Title(language.Und),
	}
}

// FetchSlides returns one slide per student celebrating today
func (f *BirthdayFetcher) FetchSlides(ctx context.Context) ([]entities.Slide, error) {
	now := f.clock.Now().In(f.location)

	students, err := f.store.BirthdaysOn(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("loading birthdays: %w", err)
	}

	if f.limit > 0 && len(students) > f.limit {
		students = students[:f.limit]
	}

	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, f.location)

	slides := make([]entities.Slide, 0, len(students))
	for i := range students {
		student := &students[i]
		name := f.caser.String(strings.ToLower(student.FullName()))

		slides = append(slides, entities.NewDynamicSlide(
			fmt.Sprintf("birthday-%d", student.ID),
			fmt.Sprintf("Happy birthday, %s!", name),
			birthdayPayload(name, student, now),
			endOfDay,
		))
	}

	return slides, nil
}

func birthdayPayload(name string, student *entities.Student, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", name)
	fmt.Fprintf(&b, "Turns **%d** today!", student.AgeOn(today))
	if student.Class != "" {
		fmt.Fprintf(&b, "\n\nClass %s", student.Class)
	}
	return b.String()
}

var _ ports.SlideFetcher = (*BirthdayFetcher)(nil)
