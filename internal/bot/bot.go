// Package bot is a Discord front-end: post a resume .docx with the job
// description as the message text and get the optimized document back.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/p-shah256/resume-optimizer/internal/helper"
	"github.com/p-shah256/resume-optimizer/internal/optimizer"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const (
	processTimeout = 2 * time.Minute
	// attachments named like this are used as the render template
	templatePrefix = "template"
)

// Optimizer runs the pipeline for one upload.
type Optimizer interface {
	Optimize(ctx context.Context, up optimizer.Upload) (*types.OptimizeResult, error)
}

type Bot struct {
	session   *discordgo.Session
	svc       Optimizer
	client    *http.Client
	maxUpload int64

	ctx    context.Context
	cancel context.CancelFunc
}

func New(token string, svc Optimizer, maxUpload int64) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		session:   session,
		svc:       svc,
		client:    &http.Client{Timeout: 30 * time.Second},
		maxUpload: maxUpload,
		ctx:       ctx,
		cancel:    cancel,
	}
	session.AddHandler(bot.onMessageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord session: %w", err)
	}
	slog.Info("Bot is running...")
	return nil
}

// Close cancels in-flight work and closes the session.
func (b *Bot) Close() error {
	b.cancel()
	return b.session.Close()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	req, ok := requestFrom(m.Message)
	if !ok {
		return
	}
	slog.Info("Received resume", "component", "bot", "author", m.Author.Username, "filename", req.resume.Filename)

	go func() {
		ctx, cancel := context.WithTimeout(b.ctx, processTimeout)
		defer cancel()
		b.process(ctx, s, s.State.User.ID, m.Message, req)
	}()
}

type request struct {
	resume   *discordgo.MessageAttachment
	template *discordgo.MessageAttachment
	jd       string
}

// requestFrom picks the resume and optional template from a message. Messages
// without a .docx attachment are ignored.
func requestFrom(m *discordgo.Message) (request, bool) {
	var req request
	for _, att := range m.Attachments {
		if !strings.EqualFold(filepath.Ext(att.Filename), optimizer.DocxExt) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(att.Filename), templatePrefix) {
			if req.template == nil {
				req.template = att
			}
			continue
		}
		if req.resume == nil {
			req.resume = att
		}
	}
	req.jd = strings.TrimSpace(m.Content)
	return req, req.resume != nil
}

func (b *Bot) process(ctx context.Context, chat helper.Chat, botUserID string, m *discordgo.Message, req request) {
	ctx = logger.WithRequestID(ctx, uuid.New().String())
	log := logger.FromContext(ctx).With("component", "bot", "operation", "process")
	chat.MessageReactionAdd(m.ChannelID, m.ID, helper.ReactionWorking)

	data, err := helper.DownloadFile(ctx, b.client, req.resume.URL, b.maxUpload)
	if err != nil {
		helper.HandleError(chat, botUserID, m.ChannelID, m.ID, err)
		return
	}
	up := optimizer.Upload{
		Filename:       req.resume.Filename,
		Data:           data,
		JobDescription: req.jd,
	}
	if req.template != nil {
		tmpl, err := helper.DownloadFile(ctx, b.client, req.template.URL, b.maxUpload)
		if err != nil {
			helper.HandleError(chat, botUserID, m.ChannelID, m.ID, fmt.Errorf("template: %w", err))
			return
		}
		up.Template, up.TemplateName = tmpl, req.template.Filename
	}

	res, err := b.svc.Optimize(ctx, up)
	if err != nil {
		helper.HandleError(chat, botUserID, m.ChannelID, m.ID, err)
		return
	}

	if _, err := chat.ChannelFileSend(m.ChannelID, res.Filename, bytes.NewReader(res.Document)); err != nil {
		helper.HandleError(chat, botUserID, m.ChannelID, m.ID, fmt.Errorf("failed to send document: %w", err))
		return
	}
	chat.ChannelMessageSend(m.ChannelID, summary(res))

	chat.MessageReactionRemove(m.ChannelID, m.ID, helper.ReactionWorking, botUserID)
	chat.MessageReactionAdd(m.ChannelID, m.ID, helper.ReactionDone)
	log.Info("Done processing!", "filename", res.Filename)
}

func summary(res *types.OptimizeResult) string {
	msg := fmt.Sprintf("Skills match: %.0f%% -> %.0f%%", res.OriginalScore, res.OptimizedScore)
	if len(res.Fallbacks) > 0 {
		keys := make([]string, len(res.Fallbacks))
		for i, fb := range res.Fallbacks {
			keys[i] = fb.Key
		}
		msg += fmt.Sprintf("\nKept original text for: %s", strings.Join(keys, ", "))
	}
	return msg
}
