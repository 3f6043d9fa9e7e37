package entities

import (
	"errors"
	"strings"
	"time"
)

// Student is a school member whose birthday can be featured
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	FirstName string    `gorm:"size:100;not null" json:"firstName" yaml:"first_name"`
	LastName  string    `gorm:"size:100;not null" json:"lastName" yaml:"last_name"`
	Class     string    `gorm:"size:50" json:"class" yaml:"class"`
	BirthDate time.Time `gorm:"not null" json:"birthDate" yaml:"birth_date"`
	// BirthMonth and BirthDay are denormalized for date lookups across SQL dialects
	BirthMonth int       `gorm:"index:idx_student_birthday" json:"-" yaml:"-"`
	BirthDay   int       `gorm:"index:idx_student_birthday" json:"-" yaml:"-"`
	Active     bool      `gorm:"index;not null" json:"active" yaml:"active"`
	CreatedAt  time.Time `json:"createdAt" yaml:"-"`
}

// FullName returns the student's display name
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Validate ensures the student record is usable
func (s *Student) Validate() error {
	if strings.TrimSpace(s.FirstName) == "" {
		return errors.New("student first name is required")
	}
	if s.BirthDate.IsZero() {
		return errors.New("student birth date is required")
	}
	return nil
}

// AgeOn returns the age the student turns on the given day
func (s *Student) AgeOn(day time.Time) int {
	age := day.Year() - s.BirthDate.Year()
	if day.Month() < s.BirthDate.Month() ||
		(day.Month() == s.BirthDate.Month() && day.Day() < s.BirthDate.Day()) {
		age--
	}
	return age
}

// Notice is an entry in the school notice list
type Notice struct {
	ID          uint       `gorm:"primaryKey" json:"id" yaml:"id"`
	Title       string     `gorm:"size:200;not null" json:"title" yaml:"title"`
	Body        string     `gorm:"type:text" json:"body" yaml:"body"`
	Pinned      bool       `gorm:"index" json:"pinned" yaml:"pinned"`
	PublishedAt time.Time  `gorm:"index" json:"publishedAt" yaml:"published_at"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" yaml:"expires_at"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"-"`
}

// Validate ensures the notice is usable
func (n *Notice) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return errors.New("notice title is required")
	}
	if n.ExpiresAt != nil && !n.PublishedAt.IsZero() && n.ExpiresAt.Before(n.PublishedAt) {
		return errors.New("notice cannot expire before it is published")
	}
	return nil
}

// VisibleAt reports whether the notice is published and unexpired at t
func (n *Notice) VisibleAt(t time.Time) bool {
	if n.PublishedAt.After(t) {
		return false
	}
	return n.ExpiresAt == nil || t.Before(*n.ExpiresAt)
}

// Announcement is one line in the scrolling ticker
type Announcement struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	Text      string    `gorm:"size:500;not null" json:"text" yaml:"text"`
	Priority  int       `gorm:"index" json:"priority" yaml:"priority"`
	Active    bool      `gorm:"index;not null" json:"active" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}

// Validate ensures the announcement is usable
func (a *Announcement) Validate() error {
	if strings.TrimSpace(a.Text) == "" {
		return errors.New("announcement text is required")
	}
	return nil
}
