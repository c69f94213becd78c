// Package helper holds small utilities shared by the chat front-end.
package helper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/p-shah256/resume-optimizer/pkg/errors"
)

// Reaction emoji used to show progress on a message.
const (
	ReactionWorking = "⏳"
	ReactionDone    = "✅"
	ReactionFailed  = "❌"
)

// Chat is the part of *discordgo.Session the bot talks through.
type Chat interface {
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DownloadFile fetches url into memory, refusing bodies larger than limit
// bytes.
func DownloadFile(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 response code: %d", resp.StatusCode)
	}
	if limit > 0 && resp.ContentLength > limit {
		return nil, fmt.Errorf("file exceeds %d MB", limit>>20)
	}

	r := io.Reader(resp.Body)
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d MB", limit>>20)
	}
	return data, nil
}

// HandleError swaps the progress reaction for a failure mark and replies with
// a message safe to show in chat.
func HandleError(chat Chat, botUserID, channelID, messageID string, err error) {
	slog.Error("Processing error", "component", "bot", "error", err)
	chat.MessageReactionRemove(channelID, messageID, ReactionWorking, botUserID)
	chat.MessageReactionAdd(channelID, messageID, ReactionFailed)
	chat.ChannelMessageSend(channelID, "Error: "+UserMessage(err))
}

// UserMessage renders err for chat. Classified pipeline errors use their
// client-safe detail; anything else gets its own text.
func UserMessage(err error) string {
	if errors.KindOf(err) != errors.Unknown {
		apiErr := errors.FromError(err)
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Message
	}
	return err.Error()
}
