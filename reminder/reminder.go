package reminder

import (
	"context"
	"fmt"
	"time"

	"notekeeper/db"
	"notekeeper/timezone"

	"go.uber.org/zap"
)

const (
	scanTick      = 60 * time.Second
	dueSoonWindow = 10 * time.Minute
	displayLayout = "02-01-2006 15:04"

	fmtReminder = "Напоминание о заметке назначенной на %s. Текст Вашей заметки: %s"
)

// SendFunc delivers a reminder text to the Telegram chat.
type SendFunc func(chatID int64, text string) error

// Scanner periodically polls the note store for notes due within the
// lookahead window and notifies their owners. It is the only writer of the
// processed flag.
type Scanner struct {
	db     *db.Database
	send   SendFunc
	logger *zap.SugaredLogger
}

func NewScanner(d *db.Database, send SendFunc, l *zap.SugaredLogger) *Scanner {
	return &Scanner{
		db:     d,
		send:   send,
		logger: l,
	}
}

// Run scans once per tick until the context is cancelled. Notes whose
// notification wasn't confirmed stay unprocessed and are retried on the next
// cycle, including the first cycle after a restart.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(scanTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan performs one poll-and-notify cycle. A failure on one note doesn't
// block the others.
func (s *Scanner) Scan(ctx context.Context) {
	notes, err := s.db.DueSoon(ctx, dueSoonWindow)
	if err != nil {
		s.logger.Errorw("failed fetching due notes", "err", err)
		return
	}

	for _, note := range notes {
		usr, err := s.db.UserByID(ctx, note.UserID)
		if err != nil {
			s.logger.Errorw("failed fetching note owner", "note", note.ID, "err", err)
			continue
		}

		if usr == nil {
			// owner is gone; leave the note unprocessed so it's picked up
			// again should the user record reappear
			continue
		}

		at := note.ReminderTime.In(timezone.Display()).Format(displayLayout)
		txt := fmt.Sprintf(fmtReminder, at, note.Text)

		if err := s.send(usr.TelegramID, txt); err != nil {
			// delivery not confirmed, keep the note eligible for the next cycle
			s.logger.Errorw("failed sending reminder", "note", note.ID, "err", err)
			continue
		}

		if err := s.db.MarkProcessed(ctx, note.ID); err != nil {
			s.logger.Errorw("failed marking note processed", "note", note.ID, "err", err)
		}
	}
}
