// Package telegram adapts the Bot API to the handlers and the dispatcher.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-fitness-bot/internal/handlers"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/scheduler"
	"telegram-fitness-bot/internal/utils"
)

// api is the part of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler receives inbound private-chat traffic.
type Handler interface {
	HandleText(ctx context.Context, c handlers.Conversation)
	HandleCallback(ctx context.Context, c handlers.Conversation)
}

type Bot struct {
	api     api
	log     *slog.Logger
	metrics *Metrics
}

var _ scheduler.Sender = (*Bot)(nil)

func New(token string, log *slog.Logger, m *Metrics) (*Bot, error) {
	a, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	b := newBot(a, log, m)
	b.log.Info("authorized", "username", a.Self.UserName)
	return b, nil
}

func newBot(a api, log *slog.Logger, m *Metrics) *Bot {
	if log == nil {
		log = utils.Discard()
	}
	return &Bot{api: a, log: log.With("component", "telegram"), metrics: m}
}

// Send delivers text to a chat. The Bot API client has no context support,
// so ctx is only checked before the call.
func (b *Bot) Send(ctx context.Context, chatID int64, text string, kb *models.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

func markup(kb *models.Keyboard) any {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return tgbotapi.NewRemoveKeyboard(false)
	case kb.Inline:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
			for _, btn := range r {
				data := btn.Data
				if data == "" {
					data = btn.Text
				}
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Text, data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	default:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, btn := range r {
				row = append(row, tgbotapi.NewKeyboardButton(btn.Text))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
		}
		rk := tgbotapi.NewReplyKeyboard(rows...)
		rk.ResizeKeyboard = true
		return rk
	}
}

// Run long-polls updates until ctx is done. Updates of one chat are handled
// one after another in arrival order, different chats run in parallel. Run
// returns after the queued updates finish.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := b.api.GetUpdatesChan(cfg)

	// начатые ответы доставляем и при остановке
	handleCtx := context.WithoutCancel(ctx)
	q := newChatQueue(func(upd tgbotapi.Update) { b.dispatch(handleCtx, h, upd) })
	defer q.wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("update loop stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			q.push(updateChat(upd), upd)
		}
	}
}

// updateChat returns the chat an update belongs to, 0 when there is none.
func updateChat(upd tgbotapi.Update) int64 {
	var c *tgbotapi.Chat
	switch {
	case upd.Message != nil:
		c = upd.Message.Chat
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		c = upd.CallbackQuery.Message.Chat
	}
	if c == nil {
		return 0
	}
	return c.ID
}

// chatQueue runs updates through handle, one drainer goroutine per chat
// with a non-empty backlog.
type chatQueue struct {
	handle func(tgbotapi.Update)

	mu      sync.Mutex
	backlog map[int64][]tgbotapi.Update // ключ есть, пока жив drainer чата
	wg      sync.WaitGroup
}

func newChatQueue(handle func(tgbotapi.Update)) *chatQueue {
	return &chatQueue{handle: handle, backlog: make(map[int64][]tgbotapi.Update)}
}

func (q *chatQueue) push(chatID int64, upd tgbotapi.Update) {
	q.mu.Lock()
	pending, running := q.backlog[chatID]
	q.backlog[chatID] = append(pending, upd)
	q.mu.Unlock()

	if running {
		return
	}
	q.wg.Add(1)
	go q.drain(chatID)
}

func (q *chatQueue) drain(chatID int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.backlog[chatID]
		if len(pending) == 0 {
			delete(q.backlog, chatID)
			q.mu.Unlock()
			return
		}
		upd := pending[0]
		q.backlog[chatID] = pending[1:]
		q.mu.Unlock()

		q.handle(upd)
	}
}

func (q *chatQueue) wait() { q.wg.Wait() }

func (b *Bot) dispatch(ctx context.Context, h Handler, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		m := upd.Message
		if m.Chat == nil || !m.Chat.IsPrivate() || m.Text == "" {
			b.metrics.update("ignored")
			return
		}
		b.metrics.update("text")
		h.HandleText(ctx, &chat{bot: b, id: m.Chat.ID, text: m.Text})

	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		// без ответа клиент крутит спиннер
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.log.Warn("answer callback", "err", err)
		}
		if cq.Message == nil || cq.Message.Chat == nil || !cq.Message.Chat.IsPrivate() {
			b.metrics.update("ignored")
			return
		}
		b.metrics.update("callback")
		h.HandleCallback(ctx, &chat{bot: b, id: cq.Message.Chat.ID, text: cq.Data})

	default:
		b.metrics.update("ignored")
	}
}

// chat is one inbound message seen through handlers.Conversation.
type chat struct {
	bot  *Bot
	id   int64
	text string
}

var _ handlers.Conversation = (*chat)(nil)

func (c *chat) ChatID() int64 { return c.id }
func (c *chat) Text() string  { return c.text }

func (c *chat) Reply(ctx context.Context, text string, kb *models.Keyboard) error {
	return c.bot.Send(ctx, c.id, text, kb)
}
