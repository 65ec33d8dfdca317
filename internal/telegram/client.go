// Package telegram wraps the narrow slice of the Bot API the linking flow
// needs: chat metadata lookups and confirmation messages.
package telegram

import (
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const apiTimeout = 10 * time.Second

// ChatFlags carries the capability bits read via getChat. When the lookup
// fails the flags fall back to their zero values, which are the conservative
// defaults, and Degraded records why.
type ChatFlags struct {
	JoinByRequest bool
	Degraded      error
}

// Client is the outbound Bot API surface. Implementations never fail the
// caller for metadata lookups; they degrade instead.
type Client interface {
	// BotID returns the bot's own Telegram user id, or 0 when unknown.
	BotID() int64
	// ChatFlags looks up join_by_request for a chat.
	ChatFlags(chatID int64) ChatFlags
	// SendMessage delivers a plain-text message. Best effort.
	SendMessage(chatID int64, text string) error
}

// BotAPI is the live implementation backed by gotgbot.
type BotAPI struct {
	api *tgbotapi.Bot
}

// NewClient builds a Client for the token, or a disabled no-op client when
// the token is empty or the API handshake fails.
func NewClient(botToken string) Client {
	if botToken == "" {
		log.Printf("telegram disabled, using noop: empty bot token")
		return noopClient{}
	}
	api, err := tgbotapi.NewBot(botToken, nil)
	if err != nil {
		log.Printf("telegram disabled, using noop: %v", err)
		return noopClient{}
	}
	return &BotAPI{api: api}
}

func (b *BotAPI) BotID() int64 {
	return b.api.Id
}

func (b *BotAPI) ChatFlags(chatID int64) ChatFlags {
	info, err := b.api.GetChat(chatID, &tgbotapi.GetChatOpts{
		RequestOpts: &tgbotapi.RequestOpts{Timeout: apiTimeout},
	})
	if err != nil {
		return ChatFlags{Degraded: fmt.Errorf("getChat %d: %w", chatID, err)}
	}
	return ChatFlags{JoinByRequest: info.JoinByRequest}
}

func (b *BotAPI) SendMessage(chatID int64, text string) error {
	_, err := b.api.SendMessage(chatID, text, &tgbotapi.SendMessageOpts{
		RequestOpts: &tgbotapi.RequestOpts{Timeout: apiTimeout},
	})
	return err
}

type noopClient struct{}

func (noopClient) BotID() int64 { return 0 }

func (noopClient) ChatFlags(int64) ChatFlags {
	return ChatFlags{Degraded: fmt.Errorf("telegram client disabled")}
}

func (noopClient) SendMessage(int64, string) error { return nil }
