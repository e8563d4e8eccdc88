// ABOUTME: Slash command and postback sub-handlers for the event router.
// ABOUTME: Commands are synchronous single replies; only /reset touches session state.

package router

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/line-gateway/internal/flex"
	"github.com/2389/line-gateway/internal/line"
	"github.com/2389/line-gateway/internal/session"
	"github.com/2389/line-gateway/internal/task"
)

const helpText = "🤖 RAG 研究助手使用說明\n\n" +
	"📝 功能:\n" +
	"• 發送問題進行研究查詢\n" +
	"• 上傳文件進行分析\n" +
	"• 獲得詳細的研究報告\n\n" +
	"💬 命令:\n" +
	"/help - 顯示此幫助訊息\n" +
	"/config - 顯示配置選項\n" +
	"/reset - 重置當前會話\n" +
	"/status - 顯示當前研究狀態\n" +
	"/history - 顯示最近的研究查詢\n\n" +
	"試試發送: '台灣AI發展趨勢'"

// handleCommand dispatches a slash command. All commands answer with a
// single reply and leave session state alone, except /reset.
func (r *Router) handleCommand(ctx context.Context, text, userID, replyToken string) {
	command := strings.ToLower(strings.Fields(text)[0])

	switch command {
	case "/help":
		r.reply(ctx, replyToken, line.NewText(helpText), flex.HelpMessage())

	case "/config":
		sess := r.sessions.Get(userID)
		r.reply(ctx, replyToken, line.NewText(formatConfig(sess.Config)), flex.ConfigMenu())

	case "/reset":
		r.sessions.Clear(userID)
		r.reply(ctx, replyToken, line.NewText(msgSessionReset))

	case "/status":
		sess := r.sessions.Get(userID)
		r.reply(ctx, replyToken, line.NewText(r.formatStatus(userID, sess)))

	case "/history":
		r.reply(ctx, replyToken, line.NewText(r.formatHistory(ctx, userID)))

	default:
		r.reply(ctx, replyToken, line.NewText(fmt.Sprintf("未知命令: %s\n使用 /help 查看可用命令。", command)))
	}
}

// formatConfig renders the user's current settings.
func formatConfig(cfg session.UserConfig) string {
	onOff := func(b bool) string {
		if b {
			return "是"
		}
		return "否"
	}
	notify := "關閉"
	if cfg.NotificationEnabled {
		notify = "開啟"
	}
	return "⚙️ 當前配置:\n\n" +
		fmt.Sprintf("最大搜索查詢數: %d\n", cfg.MaxSearchQueries) +
		fmt.Sprintf("啟用網絡搜索: %s\n", onOff(cfg.EnableWebSearch)) +
		fmt.Sprintf("首選報告格式: %s\n", cfg.PreferredReportFormat) +
		fmt.Sprintf("語言: %s\n", cfg.Language) +
		fmt.Sprintf("通知: %s\n\n", notify) +
		"要更改配置，請使用下方選單。"
}

// formatStatus renders the session state, adding task detail when one is
// tracked for the user.
func (r *Router) formatStatus(userID string, sess session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "當前狀態: %s\n", sess.State)

	if sess.State == session.StateResearching {
		b.WriteString(msgResearchingState + "\n")
	}
	if view, ok := r.tasks.Status(userID); ok {
		fmt.Fprintf(&b, "最近查詢: %s\n研究狀態: %s", view.Query, view.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatHistory renders the user's recent research queries.
func (r *Router) formatHistory(ctx context.Context, userID string) string {
	if r.history == nil {
		return msgNoHistory
	}
	records, err := r.history.Recent(ctx, userID, 5)
	if err != nil {
		r.logger.Error("loading research history", "user_id", userID, "error", err)
		return msgPostbackError
	}
	if len(records) == 0 {
		return msgNoHistory
	}

	var b strings.Builder
	b.WriteString("📚 最近的研究查詢:\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, rec.Query, rec.Status)
	}
	return b.String()
}

// handlePostback parses the flat key=value payload and applies the
// action. Any parse failure or missing field answers with a generic
// error reply instead of propagating.
func (r *Router) handlePostback(ctx context.Context, ev line.Event) {
	userID := ev.Source.UserID
	replyToken := ev.ReplyToken

	if userID == "" || replyToken == "" {
		r.logger.Warn("postback event missing user id or reply token")
		return
	}
	if ev.Postback == nil {
		r.reply(ctx, replyToken, line.NewText(msgPostbackError))
		return
	}

	params, err := url.ParseQuery(ev.Postback.Data)
	if err != nil {
		r.logger.Warn("unparsable postback data", "user_id", userID, "error", err)
		r.reply(ctx, replyToken, line.NewText(msgPostbackError))
		return
	}

	switch action := params.Get("action"); action {
	case "config":
		r.handleConfigPostback(ctx, userID, replyToken, params.Get("option"), params.Get("value"))
	case "cancel_research":
		r.handleCancelPostback(ctx, userID, replyToken)
	default:
		r.logger.Info("unhandled postback action", "action", action)
	}
}

// handleConfigPostback updates one named user config field.
func (r *Router) handleConfigPostback(ctx context.Context, userID, replyToken, option, value string) {
	if option == "" || value == "" {
		r.reply(ctx, replyToken, line.NewText(msgPostbackError))
		return
	}

	var parseErr error
	switch option {
	case "web_search":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			parseErr = err
			break
		}
		r.sessions.Mutate(userID, func(s *session.Session) {
			s.Config.EnableWebSearch = enabled
		})
	case "max_queries":
		n, err := strconv.Atoi(value)
		if err != nil {
			parseErr = err
			break
		}
		r.sessions.Mutate(userID, func(s *session.Session) {
			s.Config.MaxSearchQueries = n
		})
	case "report_format":
		r.sessions.Mutate(userID, func(s *session.Session) {
			s.Config.PreferredReportFormat = value
		})
	default:
		r.logger.Warn("unknown config option", "option", option)
		r.reply(ctx, replyToken, line.NewText(msgPostbackError))
		return
	}

	if parseErr != nil {
		r.logger.Warn("bad config value", "option", option, "value", value, "error", parseErr)
		r.reply(ctx, replyToken, line.NewText(msgPostbackError))
		return
	}

	r.reply(ctx, replyToken, line.NewText(fmt.Sprintf("配置已更新: %s = %s", option, value)))
}

// handleCancelPostback marks the in-flight task cancelled and resets the
// session to idle. Failure to cancel (no task, already terminal) is a
// normal reply, not an error.
func (r *Router) handleCancelPostback(ctx context.Context, userID, replyToken string) {
	if !r.tasks.Cancel(userID) {
		r.reply(ctx, replyToken, line.NewText(msgCancelFailed))
		return
	}

	if view, ok := r.tasks.Status(userID); ok {
		r.finishHistory(ctx, view.ID, string(task.StatusCancelled), "")
	}
	r.setIdle(userID)
	r.reply(ctx, replyToken, line.NewText(msgCancelOK))
}
