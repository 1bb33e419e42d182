package repository

import (
	"time"

	"github.com/okian/whovapes/internal/domain/model"
)

type celebrityRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:120;not null;index"`
	WikiKey   string `gorm:"size:255"`
	Rating    int    `gorm:"not null;index"`
	Wins      int    `gorm:"not null"`
	Matches   int    `gorm:"not null"`
	YesVotes  int    `gorm:"not null"`
	NoVotes   int    `gorm:"not null"`
	Confirmed *bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (celebrityRow) TableName() string { return "celebrities" }

type matchRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	CelebrityA    string    `gorm:"size:36;not null;index"`
	CelebrityB    string    `gorm:"size:36;not null;index"`
	WinnerID      string    `gorm:"size:36;not null"`
	KFactor       int       `gorm:"not null"`
	RatingABefore int       `gorm:"not null"`
	RatingAAfter  int       `gorm:"not null"`
	RatingBBefore int       `gorm:"not null"`
	RatingBAfter  int       `gorm:"not null"`
	ClientKey     string    `gorm:"size:64"`
	CreatedAt     time.Time `gorm:"index"`
}

func (matchRow) TableName() string { return "match_outcomes" }

type skipRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	CelebrityA string    `gorm:"size:36;not null;index"`
	CelebrityB string    `gorm:"size:36;not null;index"`
	CreatedAt  time.Time `gorm:"index"`
}

func (skipRow) TableName() string { return "skip_events" }

func fromCelebrity(c model.Celebrity) celebrityRow {
	return celebrityRow{
		ID:        c.ID,
		Name:      c.Name,
		WikiKey:   c.WikiKey,
		Rating:    c.Rating,
		Wins:      c.Wins,
		Matches:   c.Matches,
		YesVotes:  c.YesVotes,
		NoVotes:   c.NoVotes,
		Confirmed: c.Confirmed,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (r celebrityRow) toModel() model.Celebrity {
	return model.Celebrity{
		ID:        r.ID,
		Name:      r.Name,
		WikiKey:   r.WikiKey,
		Rating:    r.Rating,
		Wins:      r.Wins,
		Matches:   r.Matches,
		YesVotes:  r.YesVotes,
		NoVotes:   r.NoVotes,
		Confirmed: r.Confirmed,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func fromMatch(m model.MatchOutcome) matchRow {
	return matchRow{
		ID:            m.ID,
		CelebrityA:    m.CelebrityA,
		CelebrityB:    m.CelebrityB,
		WinnerID:      m.WinnerID,
		KFactor:       m.KFactor,
		RatingABefore: m.RatingABefore,
		RatingAAfter:  m.RatingAAfter,
		RatingBBefore: m.RatingBBefore,
		RatingBAfter:  m.RatingBAfter,
		ClientKey:     m.ClientKey,
		CreatedAt:     m.CreatedAt,
	}
}

func (r matchRow) toModel() model.MatchOutcome {
	return model.MatchOutcome{
		ID:            r.ID,
		CelebrityA:    r.CelebrityA,
		CelebrityB:    r.CelebrityB,
		WinnerID:      r.WinnerID,
		KFactor:       r.KFactor,
		RatingABefore: r.RatingABefore,
		RatingAAfter:  r.RatingAAfter,
		RatingBBefore: r.RatingBBefore,
		RatingBAfter:  r.RatingBAfter,
		ClientKey:     r.ClientKey,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
