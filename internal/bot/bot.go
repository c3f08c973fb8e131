// Package bot exposes price inquiries as Telegram commands.
package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"go.uber.org/zap"

	"eve-jita-price/internal/config"
	"eve-jita-price/internal/logger"
)

// Bot is the Telegram front end.
type Bot struct {
	bot        *telego.Bot
	botHandler *th.BotHandler
	handler    *Handler
}

// New creates the bot and registers one route per configured price command.
func New(ctx context.Context, token string, commands []config.PriceCommand, asker Asker) (*Bot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 60,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}

	botHandler, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot handler: %w", err)
	}

	h := NewHandler(asker, commands)
	h.RegisterRoutes(botHandler)

	return &Bot{bot: bot, botHandler: botHandler, handler: h}, nil
}

// Run handles updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		if err := b.botHandler.Start(); err != nil {
			logger.Error("Bot", "Handler stopped", zap.Error(err))
		}
	}()
	logger.Success("Bot", "Listening for commands", zap.Strings("commands", b.handler.Commands()))

	<-ctx.Done()

	if err := b.botHandler.Stop(); err != nil {
		logger.Warn("Bot", "Failed to stop handler", zap.Error(err))
	}
	return ctx.Err()
}
