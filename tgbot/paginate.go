package tgbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notekeeper/db"
	"notekeeper/timezone"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

const (
	pageSize      = 4
	maxItemLen    = 200 // runes per listed note before truncation
	snapshotTTL   = 24 * time.Hour
	displayLayout = "02-01-2006 15:04"

	cbqNextPage = "nextpage"
	cbqPrevPage = "prevpage"

	fmtNoteItem = "%d. <b>%s</b>\n%s\n"
)

var (
	errNoSender    = errors.New("update has no sender")
	errBadCallback = errors.New("malformed callback data")
)

// snapshotItem is a note as it looked at listing time. Page turns render
// from the snapshot, not from the store.
type snapshotItem struct {
	Text string `json:"text"`
	At   string `json:"reminder_time"`
}

func makeSnapshot(notes []db.Note) []snapshotItem {
	items := make([]snapshotItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, snapshotItem{
			Text: n.Text,
			At:   n.ReminderTime.In(timezone.Display()).Format(displayLayout),
		})
	}
	return items
}

func snapshotKey(chat, user int64) string {
	return fmt.Sprintf("%d_%d", chat, user)
}

func pageCount(total int) int {
	return (total + pageSize - 1) / pageSize
}

func renderPage(items []snapshotItem, page int) string {
	offset := (page - 1) * pageSize
	if offset < 0 || offset >= len(items) {
		return ""
	}

	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}

	var sb strings.Builder
	for i, item := range items[offset:end] {
		sb.WriteString(fmt.Sprintf(fmtNoteItem, i+1, item.At, truncate(item.Text)))
	}
	return sb.String()
}

func truncate(txt string) string {
	runes := []rune(txt)
	if len(runes) <= maxItemLen {
		return txt
	}
	return string(runes[:maxItemLen]) + "..."
}

// pageKeyboard offers navigation only in directions where a page exists.
// Returns nil when there's nowhere to go.
func pageKeyboard(chat, user int64, page, pages, msgID int) *tg.InlineKeyboardMarkup {
	var row []tg.InlineKeyboardButton
	if page > 1 {
		row = append(row, tg.NewInlineKeyboardButtonData("Назад",
			pageCallback(cbqPrevPage, chat, user, page-1, msgID)))
	}
	if page < pages {
		row = append(row, tg.NewInlineKeyboardButtonData(fmt.Sprintf("Далее (%d/%d)", page, pages),
			pageCallback(cbqNextPage, chat, user, page+1, msgID)))
	}

	if len(row) == 0 {
		return nil
	}

	kb := tg.NewInlineKeyboardMarkup(tg.NewInlineKeyboardRow(row...))
	return &kb
}

type pageRef struct {
	chat      int64
	user      int64
	page      int
	messageID int // the listing message page turns reply to
}

func pageCallback(action string, chat, user int64, page, msgID int) string {
	return fmt.Sprintf("%s_%d_%d_%d_%d", action, chat, user, page, msgID)
}

func parsePageCallback(data string) (string, pageRef, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 5 {
		return "", pageRef{}, errBadCallback
	}

	var ref pageRef
	var err error
	if ref.chat, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
		return "", pageRef{}, errBadCallback
	}
	if ref.user, err = strconv.ParseInt(parts[2], 10, 64); err != nil {
		return "", pageRef{}, errBadCallback
	}
	if ref.page, err = strconv.Atoi(parts[3]); err != nil {
		return "", pageRef{}, errBadCallback
	}
	if ref.messageID, err = strconv.Atoi(parts[4]); err != nil {
		return "", pageRef{}, errBadCallback
	}

	return parts[0], ref, nil
}

// listNotes takes a snapshot of the user's notes, caches it for page turns
// and sends the first page.
func (b *TBot) listNotes(ctx context.Context, usr *db.User, msg *tg.Message) {
	notes, err := b.db.NotesByUser(ctx, usr.ID)
	if err != nil {
		b.logger.Errorw("failed listing notes", "err", err)
		b.SendMessage(msg.Chat.ID, txtFailedFetchNotes, msg.MessageID, nil)
		return
	}

	if len(notes) == 0 {
		b.SendMessage(msg.Chat.ID, txtNoNotes, msg.MessageID, nil)
		return
	}

	items := makeSnapshot(notes)
	data, err := json.Marshal(items)
	if err == nil {
		err = b.cache.Set(ctx, snapshotKey(msg.Chat.ID, msg.From.ID), data, snapshotTTL)
	}
	if err != nil {
		// pagination will report "no data"; the first page is still usable
		b.logger.Errorw("failed caching notes snapshot", "err", err)
	}

	pages := pageCount(len(items))
	kb := pageKeyboard(msg.Chat.ID, msg.From.ID, 1, pages, msg.MessageID)
	b.SendMessage(msg.Chat.ID, renderPage(items, 1), msg.MessageID, kb)
}

func (b *TBot) HandleCallback(ctx context.Context, cbq *tg.CallbackQuery) {
	action, ref, err := parsePageCallback(cbq.Data)
	if err != nil {
		return
	}

	switch action {
	case cbqNextPage, cbqPrevPage:
		b.turnPage(ctx, cbq, ref)
	}
}

func (b *TBot) turnPage(ctx context.Context, cbq *tg.CallbackQuery, ref pageRef) {
	if cbq.From == nil || cbq.From.ID != ref.user {
		b.answerCallback(cbq.ID, txtForeignButton)
		return
	}

	data, ok, err := b.cache.Get(ctx, snapshotKey(ref.chat, ref.user))
	if err != nil {
		b.logger.Errorw("failed reading notes snapshot", "err", err)
		b.answerCallback(cbq.ID, txtNoPageData)
		return
	}
	if !ok {
		b.answerCallback(cbq.ID, txtNoPageData)
		return
	}

	var items []snapshotItem
	if err := json.Unmarshal(data, &items); err != nil {
		b.logger.Errorw("failed decoding notes snapshot", "err", err)
		b.answerCallback(cbq.ID, txtNoPageData)
		return
	}

	pages := pageCount(len(items))
	if ref.page < 1 || ref.page > pages {
		b.answerCallback(cbq.ID, txtNoPageData)
		return
	}

	// the page is turned by replacing the listing message with a fresh one
	if cbq.Message != nil {
		b.deleteMessage(ref.chat, cbq.Message.MessageID)
	}

	kb := pageKeyboard(ref.chat, ref.user, ref.page, pages, ref.messageID)
	b.SendMessage(ref.chat, renderPage(items, ref.page), ref.messageID, kb)
	b.answerCallback(cbq.ID, "")
}
