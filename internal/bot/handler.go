package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkdock/internal/config"
	"linkdock/internal/domain"
	"linkdock/internal/metadata"
	"linkdock/internal/retry"
	"linkdock/internal/storage"
)

// Handler wires Telegram updates to the save and retry flows.
type Handler struct {
	bot         *tgbot.Bot
	cfg         config.Config
	repo        storage.Repository
	fetcher     metadata.Fetcher
	coordinator *retry.Coordinator
	log         logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.Config, repo storage.Repository, fetcher metadata.Fetcher, coordinator *retry.Coordinator, logger logrus.FieldLogger) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	b, err := tgbot.New(cfg.TelegramBotToken)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	h := &Handler{
		bot:         b,
		cfg:         cfg,
		repo:        repo,
		fetcher:     fetcher,
		coordinator: coordinator,
		log:         log,
	}

	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/list", tgbot.MatchTypeExact, h.listHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypeContains, h.defaultHandler)

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// Start begins polling for updates from Telegram. Blocks until the context
// is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	welcome := "Welcome to linkdock! Send me a link and I'll save it with its page metadata. Use /list to see your saved links."
	h.reply(ctx, b, update, welcome)
}

// listHandler handles the /list command.
func (h *Handler) listHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID
	log := h.log.WithField("user_id", userID)

	h.triggerRetry(userID)

	links, err := h.repo.GetLinksByUser(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Failed to list links")
		h.reply(ctx, b, update, "Sorry, I couldn't load your links right now.")
		return
	}
	if len(links) == 0 {
		h.reply(ctx, b, update, "You haven't saved any links yet. Send me one!")
		return
	}

	var sb strings.Builder
	for i, link := range links {
		fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, link.Title, link.URL)
	}
	h.reply(ctx, b, update, sb.String())
}

// defaultHandler saves any message containing a URL.
func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID
	log := h.log.WithField("user_id", userID)

	// Every incoming message doubles as the "user is back" signal that
	// kicks a background retry sweep for their incomplete links.
	h.triggerRetry(userID)

	rawURL := firstURL(update.Message.Text)
	if rawURL == "" {
		log.Debug("Message without URL ignored")
		h.reply(ctx, b, update, "Send me a URL to save, or use /list to see your links.")
		return
	}
	log = log.WithField("url", rawURL)

	// One synchronous fetch at save time. The fetcher never fails; at worst
	// the link is stored with fallback metadata and the retry sweep picks
	// it up later.
	md, finalURL, err := h.fetcher.FetchWithFinalURL(ctx, rawURL)
	if err != nil {
		log.WithError(err).Warn("Fetch failed at save time, storing fallback metadata")
		md = domain.Fallback(metadata.ExtractDomain(rawURL))
		finalURL = rawURL
	}

	now := time.Now()
	link := domain.Link{
		ID:                    uuid.NewString(),
		URL:                   finalURL,
		UserID:                userID,
		Title:                 md.Title,
		Description:           md.Description,
		ThumbnailURL:          md.ThumbnailURL,
		Domain:                md.Domain,
		SavedAt:               now,
		MetadataComplete:      md.HasRealData(),
		MetadataFetchAttempts: 1,
		LastMetadataAttemptAt: &now,
	}

	if err := h.repo.SaveLink(ctx, link); err != nil {
		log.WithError(err).Error("Failed to save link")
		h.reply(ctx, b, update, "Sorry, I couldn't save that link. Please try again.")
		return
	}

	log.WithField("metadata_complete", link.MetadataComplete).Info("Link saved")
	h.reply(ctx, b, update, fmt.Sprintf("Saved: %s", link.Title))
}

// triggerRetry runs a retry sweep in the background. The coordinator's own
// debouncing keeps rapid triggers cheap.
func (h *Handler) triggerRetry(userID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := h.coordinator.RetryIncompleteLinks(ctx, userID); err != nil {
			h.log.WithError(err).WithField("user_id", userID).Warn("Background retry sweep failed")
		}
	}()
}

func (h *Handler) reply(ctx context.Context, b *tgbot.Bot, update *models.Update, text string) {
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to send message")
	}
}

// firstURL returns the first http(s) URL in a message, or "".
func firstURL(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}
