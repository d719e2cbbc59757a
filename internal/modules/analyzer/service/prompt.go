package service

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a trading signal classifier for an MT5 execution bot.
Classify the Telegram channel message into exactly one of: "new_signal", "update", "ignore".
Respond with a single JSON object, no prose.

For "new_signal" return:
{"message_type":"new_signal","action":"BUY|SELL","symbol":"XAUUSD","entry":"Market|<price>|<low>-<high>","stop_loss":"<price>|N/A","take_profits":["<price>",...],"sentiment":0.0-1.0}

For "update" return:
{"message_type":"update","update_type":"modify_sltp|move_sl|set_be|close_trade|partial_close|cancel_pending|modify_entry|unknown","symbol":"<symbol>|N/A","target_msg_id":<int>,"target_trade_index":<int>,"new_sl":"<price>|N/A","new_tps":["<price>",...],"new_entry":"<price>|N/A","close_volume":"<lots>|N/A","close_percentage":"<0-100>|N/A"}

For anything else return {"message_type":"ignore"}.
Use "N/A" for absent values. Prices are strings. target_msg_id is the replied-to message id when present, otherwise the id of the most recent matching signal from the history, or 0 if neither is known. symbol is the instrument the update refers to when the message names one. target_trade_index is the number of the trade in the numbered active trades list when the update clearly refers to one, otherwise 0.`

func buildUserPrompt(text string, edited bool, replyToID int, history []string, price float64) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Recent channel history (oldest first):\n")
		for _, h := range history {
			b.WriteString("---\n")
			b.WriteString(h)
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}

	if price > 0 {
		fmt.Fprintf(&b, "Current price: %g\n", price)
	}
	if edited {
		b.WriteString("This message is an EDIT of an earlier message.\n")
	}
	if replyToID > 0 {
		fmt.Fprintf(&b, "This message is a reply to message id %d.\n", replyToID)
	}

	b.WriteString("\nMessage:\n")
	b.WriteString(text)
	return b.String()
}
