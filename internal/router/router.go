// ABOUTME: EventRouter classifies inbound webhook events and dispatches them to handlers.
// ABOUTME: Coordinates the session store, task registry, engine, and outbound messaging.

package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/line-gateway/internal/compose"
	"github.com/2389/line-gateway/internal/engine"
	"github.com/2389/line-gateway/internal/flex"
	"github.com/2389/line-gateway/internal/history"
	"github.com/2389/line-gateway/internal/ingest"
	"github.com/2389/line-gateway/internal/line"
	"github.com/2389/line-gateway/internal/session"
	"github.com/2389/line-gateway/internal/task"
)

// User-facing reply texts, kept verbatim from the bot's voice.
const (
	msgResearchAck      = "正在處理您的研究查詢，這可能需要一些時間..."
	msgResearchBusy     = "您已有一個研究正在進行中，請等待完成或先取消。"
	msgResearchFailed   = "處理您的查詢時發生錯誤，請稍後再試。"
	msgFileAck          = "正在處理您的文件，這可能需要一些時間..."
	msgFileSuccess      = "文件處理成功！您現在可以查詢與此文件相關的問題。"
	msgFileFailed       = "文件處理失敗。請確保文件格式正確且未超過大小限制。"
	msgFileError        = "處理您的文件時發生錯誤，請稍後再試。"
	msgUnsupportedType  = "抱歉，我目前無法處理這種類型的訊息。"
	msgSessionReset     = "您的會話已重置。"
	msgCancelOK         = "研究已取消。"
	msgCancelFailed     = "無法取消研究，可能已經完成或不存在。"
	msgPostbackError    = "處理您的請求時發生錯誤，請稍後再試。"
	msgNoHistory        = "目前沒有研究記錄。"
	msgResearchingState = "正在處理您的研究查詢..."
)

// Messenger is what the router needs from the platform client: same-turn
// replies and out-of-band pushes. Delivery is best effort; the router
// logs failures and moves on.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages ...line.SendMessage) error
	Push(ctx context.Context, userID string, messages ...line.SendMessage) error
	PushText(ctx context.Context, userID string, texts ...string) error
}

// HistoryLog is what the router needs from the research history store.
type HistoryLog interface {
	Record(ctx context.Context, rec history.Record) error
	Finish(ctx context.Context, id, status, errDetail string) error
	Recent(ctx context.Context, userID string, limit int) ([]history.Record, error)
}

// Router routes inbound events. All handlers are side-effect only:
// session/task mutation plus outbound sends.
type Router struct {
	sessions  *session.Store
	tasks     *task.Registry
	messenger Messenger
	ingestor  ingest.Processor
	history   HistoryLog // may be nil; /history then reports no records
	logger    *slog.Logger
}

// New creates a Router. messenger, sessions, and tasks are required;
// ingestor and hist may be nil when the corresponding collaborator is
// not deployed.
func New(sessions *session.Store, tasks *task.Registry, messenger Messenger, ingestor ingest.Processor, hist HistoryLog, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		sessions:  sessions,
		tasks:     tasks,
		messenger: messenger,
		ingestor:  ingestor,
		history:   hist,
		logger:    logger.With("component", "router"),
	}
}

// Route dispatches one event by kind. Unknown kinds are logged and
// dropped; a failure in one event never propagates to its batch.
func (r *Router) Route(ctx context.Context, ev line.Event) {
	switch ev.Type {
	case line.EventTypeMessage:
		r.routeMessage(ctx, ev)
	case line.EventTypePostback:
		r.handlePostback(ctx, ev)
	case line.EventTypeFollow:
		r.handleFollow(ctx, ev)
	case line.EventTypeUnfollow:
		r.handleUnfollow(ev)
	default:
		r.logger.Info("unhandled event type", "type", ev.Type)
	}
}

// routeMessage splits message events by payload kind.
func (r *Router) routeMessage(ctx context.Context, ev line.Event) {
	if ev.Message == nil {
		r.logger.Warn("message event without message payload")
		return
	}

	switch ev.Message.Type {
	case line.MessageTypeText:
		r.handleText(ctx, ev)
	case line.MessageTypeImage, line.MessageTypeFile, line.MessageTypeAudio, line.MessageTypeVideo:
		r.handleFile(ctx, ev)
	default:
		if ev.Source.UserID == "" || ev.ReplyToken == "" {
			r.logger.Warn("message event missing user id or reply token")
			return
		}
		r.reply(ctx, ev.ReplyToken, line.NewText(msgUnsupportedType))
	}
}

// handleText runs the command sub-handler for slash-prefixed text and
// the research path for everything else.
func (r *Router) handleText(ctx context.Context, ev line.Event) {
	userID := ev.Source.UserID
	replyToken := ev.ReplyToken
	text := ev.Message.Text

	if userID == "" || replyToken == "" {
		r.logger.Warn("text event missing user id or reply token")
		return
	}

	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, text, userID, replyToken)
		return
	}

	r.startResearch(ctx, userID, replyToken, text)
}

// startResearch reserves the user's task slot, transitions the session
// to researching, acknowledges, and hands the invocation to a goroutine.
// The webhook response is never blocked on the engine.
func (r *Router) startResearch(ctx context.Context, userID, replyToken, query string) {
	sess := r.sessions.Get(userID)
	cfg := engine.ConfigFromUser(sess.Config)

	taskID, results, err := r.tasks.Submit(ctx, userID, query, cfg)
	if errors.Is(err, task.ErrTaskActive) {
		r.reply(ctx, replyToken, line.NewText(msgResearchBusy))
		return
	}
	if err != nil {
		r.logger.Error("submitting research task", "user_id", userID, "error", err)
		r.reply(ctx, replyToken, line.NewText(msgResearchFailed))
		return
	}

	now := time.Now()
	r.sessions.Mutate(userID, func(s *session.Session) {
		s.CurrentContext = query
		s.State = session.StateResearching
		s.AppendHistory(session.QueryRecord{ID: taskID, Query: query, Submitted: now})
	})

	if r.history != nil {
		rec := history.Record{
			ID:        taskID,
			UserID:    userID,
			Query:     query,
			Status:    string(task.StatusProcessing),
			StartedAt: now,
		}
		if err := r.history.Record(ctx, rec); err != nil {
			r.logger.Error("recording research history", "task_id", taskID, "error", err)
		}
	}

	r.reply(ctx, replyToken, line.NewText(msgResearchAck), flex.ResearchProgress(5))

	go r.awaitResult(userID, taskID, results)
}

// awaitResult consumes the task's terminal result, delivers it (or a
// failure notice) out of band, and returns the session to idle.
func (r *Router) awaitResult(userID, taskID string, results <-chan task.Result) {
	res, ok := <-results
	if !ok {
		return
	}

	// Detached from any request; the webhook that started this is long gone.
	ctx := context.Background()

	switch {
	case res.Cancelled:
		// The cancel handler already reset the session and closed the
		// history record; the late answer is dropped.
		r.logger.Info("research result dropped after cancellation", "user_id", userID, "task_id", taskID)

	case res.Err != nil:
		r.logger.Error("research task failed", "user_id", userID, "task_id", taskID, "error", res.Err)
		r.finishHistory(ctx, taskID, string(task.StatusFailed), res.Err.Error())
		r.pushText(ctx, userID, msgResearchFailed)
		r.setIdle(userID)

	default:
		r.finishHistory(ctx, taskID, string(task.StatusCompleted), "")
		chunks := compose.Chunk(compose.Flatten(res.Answer), compose.DefaultMaxLen)
		r.pushText(ctx, userID, chunks...)
		r.setIdle(userID)
	}
}

// handleFile acknowledges a non-text message and delegates its content
// to the ingestion collaborator. Any error collapses to a failure notice.
func (r *Router) handleFile(ctx context.Context, ev line.Event) {
	userID := ev.Source.UserID
	replyToken := ev.ReplyToken
	contentID := ev.Message.ID

	if userID == "" || replyToken == "" || contentID == "" {
		r.logger.Warn("file event missing user id, reply token, or message id")
		return
	}

	r.reply(ctx, replyToken, line.NewText(msgFileAck))

	if r.ingestor == nil {
		r.logger.Warn("file received but no ingestion collaborator configured", "user_id", userID)
		r.pushText(ctx, userID, msgFileFailed)
		return
	}

	ok, err := r.ingestor.Process(ctx, contentID, string(ev.Message.Type))
	switch {
	case err != nil:
		r.logger.Error("file ingestion error", "user_id", userID, "content_id", contentID, "error", err)
		r.pushText(ctx, userID, msgFileError)
	case ok:
		r.pushText(ctx, userID, msgFileSuccess)
	default:
		r.pushText(ctx, userID, msgFileFailed)
	}
}

// handleFollow creates or refreshes the session and sends the welcome card.
func (r *Router) handleFollow(ctx context.Context, ev line.Event) {
	userID := ev.Source.UserID
	replyToken := ev.ReplyToken

	if userID == "" || replyToken == "" {
		r.logger.Warn("follow event missing user id or reply token")
		return
	}

	r.sessions.Get(userID)
	r.reply(ctx, replyToken, flex.WelcomeMessage())
	r.logger.Info("user followed", "user_id", userID)
}

// handleUnfollow hard-deletes the user's session.
func (r *Router) handleUnfollow(ev line.Event) {
	userID := ev.Source.UserID
	if userID == "" {
		r.logger.Warn("unfollow event missing user id")
		return
	}

	r.sessions.Delete(userID)
	r.logger.Info("user unfollowed, session removed", "user_id", userID)
}

// setIdle returns the user's session to idle after a terminal task outcome.
func (r *Router) setIdle(userID string) {
	r.sessions.Mutate(userID, func(s *session.Session) {
		s.State = session.StateIdle
	})
}

// finishHistory stamps the terminal status on the history record, if a
// history store is wired.
func (r *Router) finishHistory(ctx context.Context, taskID, status, errDetail string) {
	if r.history == nil {
		return
	}
	if err := r.history.Finish(ctx, taskID, status, errDetail); err != nil {
		r.logger.Error("finishing research history", "task_id", taskID, "error", err)
	}
}

// reply sends a same-turn reply, logging delivery failures.
func (r *Router) reply(ctx context.Context, replyToken string, messages ...line.SendMessage) {
	if err := r.messenger.Reply(ctx, replyToken, messages...); err != nil {
		r.logger.Error("sending reply", "error", err)
	}
}

// pushText sends out-of-band text messages, logging delivery failures.
func (r *Router) pushText(ctx context.Context, userID string, texts ...string) {
	if err := r.messenger.PushText(ctx, userID, texts...); err != nil {
		r.logger.Error("pushing message", "user_id", userID, "error", err)
	}
}
