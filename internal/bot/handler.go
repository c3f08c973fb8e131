package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"eve-jita-price/internal/config"
	"eve-jita-price/internal/inquiry"
	"eve-jita-price/internal/logger"
)

// Asker answers price inquiries.
type Asker interface {
	Ask(ctx context.Context, req inquiry.Request) (inquiry.Reply, error)
}

// Handler maps chat commands to inquiries.
type Handler struct {
	asker    Asker
	commands []config.PriceCommand
	unavail  string
}

// NewHandler creates a Handler for the given command bindings.
func NewHandler(asker Asker, commands []config.PriceCommand) *Handler {
	return &Handler{
		asker:    asker,
		commands: append([]config.PriceCommand(nil), commands...),
		unavail:  "物品数据暂不可用，请稍后再试",
	}
}

// RegisterRoutes adds /start and one route per price command.
func (h *Handler) RegisterRoutes(bh *th.BotHandler) {
	bh.HandleMessage(h.OnStart, th.CommandEqual("start"))
	for _, pc := range h.commands {
		bh.HandleMessage(h.onPrice(pc), th.CommandEqual(pc.Command))
	}
}

// Commands returns the registered price command names.
func (h *Handler) Commands() []string {
	out := make([]string, len(h.commands))
	for i, pc := range h.commands {
		out[i] = pc.Command
	}
	return out
}

// StartText lists the available commands.
func (h *Handler) StartText() string {
	var b strings.Builder
	b.WriteString("EVE 市场查价\n")
	for _, pc := range h.commands {
		fmt.Fprintf(&b, "/%s <物品名称> 查询区域 %d 的价格\n", pc.Command, pc.Location)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) OnStart(ctx *th.Context, msg telego.Message) error {
	_, err := ctx.Bot().SendMessage(ctx, tu.Message(tu.ID(msg.Chat.ID), h.StartText()))
	return err
}

func (h *Handler) onPrice(pc config.PriceCommand) th.MessageHandler {
	return func(ctx *th.Context, msg telego.Message) error {
		texts := h.Answer(ctx, pc, CommandArgs(msg.Text))
		for _, text := range texts {
			params := tu.Message(tu.ID(msg.Chat.ID), text).
				WithReplyParameters(&telego.ReplyParameters{MessageID: msg.MessageID})
			if _, err := ctx.Bot().SendMessage(ctx, params); err != nil {
				return err
			}
		}
		return nil
	}
}

// Answer runs the inquiry for one command and returns the messages to send,
// preface first.
func (h *Handler) Answer(ctx context.Context, pc config.PriceCommand, query string) []string {
	reply, err := h.asker.Ask(ctx, inquiry.Request{
		Command:  pc.Command,
		RegionID: pc.Location,
		Text:     query,
	})
	if err != nil {
		logger.Error("Bot", "Inquiry failed", zap.String("command", pc.Command), zap.Error(err))
		if reply.Text == "" {
			reply.Text = h.unavail
		}
		return []string{reply.Text}
	}

	var out []string
	if reply.Preface != "" {
		out = append(out, reply.Preface)
	}
	return append(out, reply.Text)
}

// CommandArgs returns everything after the command, joined with single spaces.
func CommandArgs(text string) string {
	_, _, args := tu.ParseCommand(text)
	return strings.Join(args, " ")
}
