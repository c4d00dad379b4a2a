// Package telegram adapts the bot surface to Telegram via telebot: it
// routes incoming commands to the command service and implements the
// outbound transport used by notifications.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"steamwatch/internal/commands"
	logx "steamwatch/pkg/logx"
)

// telegramTextLimit is Telegram's hard per-message length cap.
const telegramTextLimit = 4096

const commandTimeout = 15 * time.Second

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	log  logx.Logger
	bot  *tele.Bot
	cmds *commands.Service
	loc  func() *time.Location

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, cmds *commands.Service, loc func() *time.Location, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{log: log, bot: b, cmds: cmds, loc: loc}
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	handle := func(cmd string, fn func(ctx context.Context, userID int64, args []string) string) {
		a.bot.Handle(cmd, func(c tele.Context) error {
			if c.Sender() == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			return c.Send(fn(ctx, c.Sender().ID, c.Args()))
		})
	}

	handle("/start", func(_ context.Context, _ int64, _ []string) string { return helpText })
	handle("/help", func(_ context.Context, _ int64, _ []string) string { return helpText })
	handle("/bind", func(ctx context.Context, userID int64, args []string) string {
		if len(args) < 1 {
			return "❌ Usage: /bind <steamid>"
		}
		return a.cmds.Bind(ctx, userID, args[0])
	})
	handle("/notify_group", a.cmds.NotifyGroup)
	handle("/subscribe", a.cmds.Subscribe)
	handle("/watch", a.cmds.Watch)
	handle("/unwatch", a.cmds.Unwatch)
	handle("/watches", func(ctx context.Context, userID int64, _ []string) string {
		return a.cmds.Watches(ctx, userID)
	})
	handle("/stats", func(ctx context.Context, userID int64, _ []string) string {
		return a.cmds.Stats(ctx, userID, a.loc())
	})
	handle("/achievements", a.cmds.Achievements)
}

// Start begins long polling. It returns immediately; telebot's loop runs
// until Stop.
func (a *Adapter) Start() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return
	}
	a.running = true
	go func() {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
}

func (a *Adapter) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	a.bot.Stop()
}

// SendToUser implements transport.Outbound.
func (a *Adapter) SendToUser(ctx context.Context, userID int64, text string) error {
	return a.send(ctx, tele.ChatID(userID), text)
}

// SendToGroup implements transport.Outbound.
func (a *Adapter) SendToGroup(ctx context.Context, groupID int64, text string) error {
	return a.send(ctx, tele.ChatID(groupID), text)
}

func (a *Adapter) send(ctx context.Context, to tele.ChatID, text string) error {
	for _, chunk := range splitText(text, telegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.bot.Send(to, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitText cuts text into chunks of at most limit bytes, preferring line
// boundaries and never splitting inside a rune.
func splitText(text string, limit int) []string {
	if text == "" {
		return []string{""}
	}
	var out []string
	for len(text) > limit {
		cut := limit
		if i := strings.LastIndexByte(text[:limit], '\n'); i > 0 {
			cut = i + 1
		} else {
			for cut > 0 && !utf8RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		out = append(out, strings.TrimRight(text[:cut], "\n"))
		text = text[cut:]
	}
	return append(out, text)
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

const helpText = `Steam watcher commands:
/bind <steamid> - bind your Steam account
/notify_group <add|remove|list> [group_id] [options] - mirror friend events to a group
/subscribe <add|remove|list> [appid] [news=false] [deals=false] - game news and deals
/watch <appid> <item name> <price> - watch a market item
/unwatch <watch_id> - stop watching
/watches - list your watches
/stats - today's library statistics
/achievements <appid> - your achievement progress`
