// ABOUTME: Static flex message builders for rich-card replies.
// ABOUTME: Welcome, help, config menu, and research progress bubbles with postback controls.

package flex

import (
	"encoding/json"
	"fmt"

	"github.com/2389/line-gateway/internal/line"
)

type obj = map[string]any

// postbackButton builds a button whose tap sends a postback data string.
func postbackButton(label, data string) obj {
	return obj{
		"type":   "button",
		"height": "sm",
		"action": obj{
			"type":  "postback",
			"label": label,
			"data":  data,
		},
	}
}

// messageButton builds a button whose tap sends a text message back.
func messageButton(label, text string) obj {
	return obj{
		"type": "button",
		"action": obj{
			"type":  "message",
			"label": label,
			"text":  text,
		},
	}
}

func bubble(altText string, body, footer obj) line.FlexMessage {
	contents := obj{"type": "bubble", "body": body}
	if footer != nil {
		contents["footer"] = footer
	}
	raw, err := json.Marshal(contents)
	if err != nil {
		// The builders only marshal maps of strings and numbers.
		panic(fmt.Sprintf("flex: marshaling bubble: %v", err))
	}
	return line.FlexMessage{AltText: altText, Contents: raw}
}

func verticalBox(contents ...any) obj {
	return obj{"type": "box", "layout": "vertical", "spacing": "md", "contents": contents}
}

func horizontalBox(contents ...any) obj {
	return obj{"type": "box", "layout": "horizontal", "contents": contents}
}

func title(text string) obj {
	return obj{"type": "text", "text": text, "size": "xl", "weight": "bold"}
}

func bold(text string) obj {
	return obj{"type": "text", "text": text, "weight": "bold"}
}

func paragraph(text string) obj {
	return obj{"type": "text", "text": text, "wrap": true}
}

func separator() obj {
	return obj{"type": "separator"}
}

// WelcomeMessage is the bubble sent when a user follows the bot.
func WelcomeMessage() line.FlexMessage {
	return bubble("歡迎使用 RAG 研究助手",
		verticalBox(
			title("歡迎使用 RAG 研究助手"),
			paragraph("我可以幫助您進行深入的研究和分析。您可以發送問題進行研究查詢，上傳文件進行分析，獲得詳細的研究報告。"),
		),
		obj{"type": "box", "layout": "vertical", "contents": []any{
			obj{
				"type":   "button",
				"style":  "primary",
				"action": obj{"type": "message", "label": "開始使用", "text": "/help"},
			},
		}},
	)
}

// HelpMessage is the bubble behind the /help rich card.
func HelpMessage() line.FlexMessage {
	return bubble("RAG 研究助手使用說明",
		verticalBox(
			title("RAG 研究助手使用說明"),
			bold("功能:"),
			paragraph("• 發送問題進行研究查詢\n• 上傳文件進行分析\n• 獲得詳細的研究報告"),
			bold("命令:"),
			paragraph("/help - 顯示此幫助訊息\n/config - 顯示配置選項\n/reset - 重置當前會話\n/status - 顯示當前研究狀態\n/history - 顯示最近的研究查詢"),
		),
		obj{"type": "box", "layout": "vertical", "contents": []any{
			messageButton("查看配置", "/config"),
		}},
	)
}

// ConfigMenu is the interactive settings bubble; every button posts back
// an action=config payload.
func ConfigMenu() line.FlexMessage {
	return bubble("配置選單",
		verticalBox(
			title("配置選單"),
			separator(),
			bold("網絡搜索"),
			horizontalBox(
				postbackButton("開啟", "action=config&option=web_search&value=true"),
				postbackButton("關閉", "action=config&option=web_search&value=false"),
			),
			separator(),
			bold("最大搜索查詢數"),
			horizontalBox(
				postbackButton("2", "action=config&option=max_queries&value=2"),
				postbackButton("3", "action=config&option=max_queries&value=3"),
				postbackButton("5", "action=config&option=max_queries&value=5"),
			),
			separator(),
			bold("報告格式"),
			horizontalBox(
				postbackButton("標準", "action=config&option=report_format&value=standard"),
				postbackButton("學術", "action=config&option=report_format&value=academic"),
				postbackButton("簡潔", "action=config&option=report_format&value=concise"),
			),
		),
		nil,
	)
}

// ResearchProgress is the bubble shown while a query is in flight,
// carrying the cancel_research postback button.
func ResearchProgress(percent int) line.FlexMessage {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	bar := obj{
		"type":   "box",
		"layout": "vertical",
		"contents": []any{
			obj{
				"type":            "box",
				"layout":          "vertical",
				"contents":        []any{obj{"type": "filler"}},
				"width":           fmt.Sprintf("%d%%", percent),
				"backgroundColor": "#0D8186",
				"height":          "6px",
			},
		},
		"backgroundColor": "#9FD8E36E",
		"height":          "6px",
	}
	return bubble(fmt.Sprintf("研究進度: %d%%", percent),
		verticalBox(
			title("研究進度"),
			paragraph(fmt.Sprintf("%d%% 完成", percent)),
			bar,
		),
		obj{"type": "box", "layout": "vertical", "contents": []any{
			postbackButton("取消研究", "action=cancel_research"),
		}},
	)
}
