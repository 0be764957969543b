package channels

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/resend/resend-go/v2"
	"github.com/slack-go/slack"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type SlackSender struct {
	client slackPoster
}

type SlackConfig struct {
	Token  string
	APIURL string
}

func NewSlackSender(config SlackConfig) *SlackSender {
	var options []slack.Option
	if config.APIURL != "" {
		options = append(options, slack.OptionAPIURL(config.APIURL))
	}

	return &SlackSender{client: slack.New(config.Token, options...)}
}

// Send posts to a channel id and returns the message timestamp, which Slack
// uses as the message id.
func (s *SlackSender) Send(ctx context.Context, target string, message domain.ChannelMessage) (string, error) {
	_, timestamp, err := s.client.PostMessageContext(ctx, target, slack.MsgOptionText(message.Content, false))
	if err != nil {
		return "", fmt.Errorf("failed to post slack message: %w", err)
	}

	return timestamp, nil
}

type discordMessenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordSender struct {
	session discordMessenger
}

func NewDiscordSender(token string) (*DiscordSender, error) {
	session, err := discordgo.New(fmt.Sprintf("Bot %s", token))
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &DiscordSender{session: session}, nil
}

func (s *DiscordSender) Send(ctx context.Context, target string, message domain.ChannelMessage) (string, error) {
	sent, err := s.session.ChannelMessageSend(target, message.Content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send discord message: %w", err)
	}

	return sent.ID, nil
}

type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender connects lazily: creating the bot calls getMe, which should
// not block startup.
type TelegramSender struct {
	token    string
	endpoint string

	mtx sync.Mutex
	bot telegramBot
}

type TelegramConfig struct {
	Token    string
	Endpoint string
}

func NewTelegramSender(config TelegramConfig) *TelegramSender {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	return &TelegramSender{
		token:    config.Token,
		endpoint: endpoint,
	}
}

func (s *TelegramSender) getBot() (telegramBot, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.bot != nil {
		return s.bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(s.token, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	s.bot = bot
	return bot, nil
}

func (s *TelegramSender) Send(ctx context.Context, target string, message domain.ChannelMessage) (string, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q", target)
	}

	bot, err := s.getBot()
	if err != nil {
		return "", err
	}

	sent, err := bot.Send(tgbotapi.NewMessage(chatID, message.Content))
	if err != nil {
		return "", fmt.Errorf("failed to send telegram message: %w", err)
	}

	return strconv.Itoa(sent.MessageID), nil
}

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailSender struct {
	emails  emailSender
	from    string
	subject string
}

type EmailConfig struct {
	APIKey         string
	From           string
	DefaultSubject string
}

func NewEmailSender(config EmailConfig) (*EmailSender, error) {
	if config.From == "" {
		return nil, fmt.Errorf("email sender address is required")
	}

	subject := config.DefaultSubject
	if subject == "" {
		subject = "Flow notification"
	}

	return &EmailSender{
		emails:  resend.NewClient(config.APIKey).Emails,
		from:    config.From,
		subject: subject,
	}, nil
}

func (s *EmailSender) Send(ctx context.Context, target string, message domain.ChannelMessage) (string, error) {
	subject := message.Subject
	if subject == "" {
		subject = s.subject
	}

	var recipients []string
	for _, recipient := range strings.Split(target, ",") {
		if recipient = strings.TrimSpace(recipient); recipient != "" {
			recipients = append(recipients, recipient)
		}
	}

	response, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      recipients,
		Subject: subject,
		Text:    message.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return response.Id, nil
}
