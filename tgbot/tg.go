package tgbot

import (
	"context"
	"regexp"
	"strings"
	"time"

	"notekeeper/cache"
	"notekeeper/db"
	"notekeeper/duration"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Stage int

const (
	stageIdle Stage = iota
	stageEmail
	stageDueDate
	stageNoteText
)

const (
	txtAlreadyRegistered = "Вы уже зарегистрированы!"
	txtAskEmail          = "Здравствуйте! Для работы с ботом Вам будет необходимо зарегистрироваться. Пожалуйста, отправьте свой email адрес ниже."
	txtBadEmail          = "Введенный email адрес не является валидным. Проверьте свой адрес на ошибки и повторите еще раз."
	txtRegistered        = "Пользователь успешно зарегистрирован! Для добавления заметок используйте /addnote"
	txtRegisterFailed    = "Не удалось зарегистрировать пользователя."
	txtNotRegistered     = "Вы не зарегистрированы! Пройдите регистрацию через команду /start"
	txtAskDate           = "На какую дату Вы хотите установить заметку? Вы можете выбрать одно из значений ниже или ввести произвольную дату типа ДД-ММ-ГГГГ Ч:М."
	txtBadDate           = "Введите дату вида ДД-ММ-ГГГ Ч:М (01-08-2024 12:00) или выберите одно из значений ниже."
	txtAskText           = "Отлично! Введите текст Вашей заметки."
	txtNoteSaved         = "Заметка сохранена. Я пришлю напоминание о заметке за 10 минут или ранее до установленной даты."
	txtNoteSaveFailed    = "Не удалось сохранить заметку."
	txtNoNotes           = "Заметок нет."
	txtFailedFetchNotes  = "Не удалось получить список заметок."
	txtForeignButton     = "Это не для вас"
	txtNoPageData        = "Нет данных"
)

var emailPattern = regexp.MustCompile(`^[\w.+-]+@\w+\.[a-z]{2,3}$`)

// Shortcut durations offered while the bot waits for a date.
var datesKeyboard = tg.NewReplyKeyboard(
	tg.NewKeyboardButtonRow(
		tg.NewKeyboardButton("1м"),
		tg.NewKeyboardButton("10м"),
		tg.NewKeyboardButton("15м"),
	),
	tg.NewKeyboardButtonRow(
		tg.NewKeyboardButton("30м"),
		tg.NewKeyboardButton("1ч"),
		tg.NewKeyboardButton("1д"),
	),
)

type Command struct {
	Name string
	Len  int
}

func makeCommand(name string) *Command {
	return &Command{
		Name: name,
		Len:  len(name) + 2, // leading '/' and trailing space
	}
}

var (
	cmdStart   = makeCommand("start")
	cmdAddNote = makeCommand("addnote")
	cmdMyNotes = makeCommand("mynotes")
)

// API is the part of tg.BotAPI the handlers call. Tests substitute a
// recording fake.
type API interface {
	Request(c tg.Chattable) (*tg.APIResponse, error)
}

// Conversation state is keyed by chat and account so a user gets independent
// flows in different chats.
type sessionKey struct {
	chat int64
	user int64
}

type state struct {
	stage Stage
	due   time.Time // resolved date pending the note text
}

type TBot struct {
	bot           *tg.BotAPI
	api           API
	selfID        int64
	db            *db.Database
	cache         cache.Cache
	logger        *zap.SugaredLogger
	retryAttempts int
	retryDelay    time.Duration
	states        map[sessionKey]*state
}

func NewTBot(tgtoken string, d *db.Database, c cache.Cache, l *zap.SugaredLogger) (*TBot, error) {
	b, err := tg.NewBotAPI(tgtoken)
	if err != nil {
		l.Errorw("failed to initialize Telegram Bot", "err", err)
		return nil, err
	}

	b.Debug = false

	l.Infof("authorized on account %q (%q, %d)", b.Self.FirstName, b.Self.UserName, b.Self.ID)

	return &TBot{
		bot:           b,
		api:           b,
		selfID:        b.Self.ID,
		db:            d,
		cache:         c,
		logger:        l,
		retryAttempts: 3,
		retryDelay:    1 * time.Second,
		states:        make(map[sessionKey]*state),
	}, nil
}

// Run consumes updates sequentially until the context is cancelled. Handling
// one update at a time keeps per-session ordering without locking around the
// states map.
func (b *TBot) Run(ctx context.Context) {
	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	updates := b.bot.GetUpdatesChan(uCfg)
	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *TBot) handleUpdate(ctx context.Context, u tg.Update) {
	switch {
	case u.Message != nil:
		usr, err := b.ensureUser(ctx, u.Message.From)
		if err != nil {
			b.logger.Errorw("failed upserting user", "err", err)
			return
		}

		if u.Message.IsCommand() {
			b.HandleCommand(ctx, usr, u.Message)
		} else {
			b.HandleMessage(ctx, usr, u.Message)
		}

	case u.CallbackQuery != nil:
		if _, err := b.ensureUser(ctx, u.CallbackQuery.From); err != nil {
			b.logger.Errorw("failed upserting user", "err", err)
			return
		}

		b.HandleCallback(ctx, u.CallbackQuery)

	case u.MyChatMember != nil:
		b.handleChatMember(u.MyChatMember)
	}
}

// ensureUser records the account of every incoming update so the rest of the
// handlers always work with a persisted user row.
func (b *TBot) ensureUser(ctx context.Context, from *tg.User) (*db.User, error) {
	if from == nil {
		return nil, errNoSender
	}

	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	return b.db.EnsureUser(ctx, from.ID, from.UserName, name)
}

func (b *TBot) HandleCommand(ctx context.Context, usr *db.User, msg *tg.Message) {
	key := sessionKey{chat: msg.Chat.ID, user: msg.From.ID}
	userState := b.states[key]
	if userState == nil {
		userState = &state{stage: stageIdle}
		b.states[key] = userState
	}

	// commands interrupt any ongoing flow
	userState.stage = stageIdle

	switch msg.Command() {
	case cmdStart.Name:
		if usr.Registered() {
			b.SendMessage(msg.Chat.ID, txtAlreadyRegistered, msg.MessageID, nil)
			return
		}

		if b.sendMessage(msg.Chat.ID, txtAskEmail, -1, nil) != nil {
			return
		}

		userState.stage = stageEmail

	case cmdAddNote.Name:
		if !usr.Registered() {
			b.SendMessage(msg.Chat.ID, txtNotRegistered, msg.MessageID, nil)
			return
		}

		if b.sendMessage(msg.Chat.ID, txtAskDate, -1, datesKeyboard) != nil {
			return
		}

		userState.stage = stageDueDate

	case cmdMyNotes.Name:
		if !usr.Registered() {
			b.SendMessage(msg.Chat.ID, txtNotRegistered, msg.MessageID, nil)
			return
		}

		b.listNotes(ctx, usr, msg)
	}
	// unrecognized commands are dropped
}

func (b *TBot) HandleMessage(ctx context.Context, usr *db.User, msg *tg.Message) {
	key := sessionKey{chat: msg.Chat.ID, user: msg.From.ID}
	userState := b.states[key]
	if userState == nil {
		userState = &state{stage: stageIdle}
		b.states[key] = userState
	}

	switch userState.stage {
	case stageIdle:
		// plain messages outside of a flow are ignored

	case stageEmail:
		email := strings.TrimSpace(msg.Text)
		if !emailPattern.MatchString(email) {
			b.SendMessage(msg.Chat.ID, txtBadEmail, msg.MessageID, nil)
			return
		}

		if err := b.db.SetEmail(ctx, msg.From.ID, email); err != nil {
			b.logger.Errorw("failed registering user", "err", err)
			userState.stage = stageIdle
			b.sendMessage(msg.Chat.ID, txtRegisterFailed, -1, nil)
			return
		}

		userState.stage = stageIdle
		b.sendMessage(msg.Chat.ID, txtRegistered, -1, nil)

	case stageDueDate:
		due, ok := duration.Resolve(msg.Text)
		if !ok {
			b.sendMessage(msg.Chat.ID, txtBadDate, -1, datesKeyboard)
			return
		}

		userState.due = due
		userState.stage = stageNoteText
		b.sendMessage(msg.Chat.ID, txtAskText, -1, tg.NewRemoveKeyboard(false))

	case stageNoteText:
		if msg.Text == "" {
			return
		}

		due := userState.due
		userState.stage = stageIdle
		userState.due = time.Time{}

		if err := b.db.AddNote(ctx, usr.ID, msg.Text, due); err != nil {
			b.logger.Errorw("failed adding note", "err", err)
			b.sendMessage(msg.Chat.ID, txtNoteSaveFailed, -1, nil)
			return
		}

		b.sendMessage(msg.Chat.ID, txtNoteSaved, -1, tg.NewRemoveKeyboard(false))
	}
}

// handleChatMember makes the bot leave any group it gets added to; it only
// works in private chats.
func (b *TBot) handleChatMember(upd *tg.ChatMemberUpdated) {
	member := upd.NewChatMember
	if member.Status != "member" || member.User == nil {
		return
	}

	if !member.User.IsBot || member.User.ID != b.selfID {
		return
	}

	if _, err := b.api.Request(tg.LeaveChatConfig{ChatID: upd.Chat.ID}); err != nil {
		b.logger.Errorw("failed leaving group", "chat", upd.Chat.ID, "err", err)
	}
}

// SendReminder is the delivery callback handed to the reminder scanner.
func (b *TBot) SendReminder(chatID int64, text string) error {
	return b.sendMessage(chatID, text, -1, nil)
}

func (b *TBot) SendMessage(chat int64, txt string, replyTo int, kbMarkup *tg.InlineKeyboardMarkup) error {
	if kbMarkup != nil {
		return b.sendMessage(chat, txt, replyTo, *kbMarkup)
	}
	return b.sendMessage(chat, txt, replyTo, nil)
}

func (b *TBot) sendMessage(chat int64, txt string, replyTo int, markup any) error {
	m := tg.NewMessage(chat, txt)
	if replyTo >= 0 {
		m.ReplyToMessageID = replyTo
	}
	m.ParseMode = tg.ModeHTML
	m.DisableWebPagePreview = true
	if markup != nil {
		m.ReplyMarkup = markup
	}

	var err error
	robustExecute(b.retryAttempts, b.retryDelay, func() bool {
		_, err = b.api.Request(m)
		return err == nil
	})
	if err != nil {
		b.logger.Errorw("failed sending message", "err", err)
	}
	return err
}

func (b *TBot) answerCallback(id, txt string) {
	if _, err := b.api.Request(tg.NewCallback(id, txt)); err != nil {
		b.logger.Errorw("failed answering callback query", "err", err)
	}
}

func (b *TBot) deleteMessage(chat int64, msgID int) {
	if _, err := b.api.Request(tg.NewDeleteMessage(chat, msgID)); err != nil {
		b.logger.Errorw("failed deleting message", "err", err)
	}
}

func robustExecute(n int, d time.Duration, f func() bool) bool {
	for i := 0; i < n; i++ {
		if f() {
			return true
		}
		time.Sleep(d)
	}
	return false
}
