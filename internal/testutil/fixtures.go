package testutil

import (
	"encoding/json"
	"fmt"
)

// SampleCompletionResponse returns a chat-completion response whose
// message content is the given JSON analysis payload.
func SampleCompletionResponse(analysisJSON string) []byte {
	resp := map[string]interface{}{
		"id":      "chatcmpl-test123",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": analysisJSON,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     120,
			"completion_tokens": 40,
			"total_tokens":      160,
		},
	}
	data, _ := json.Marshal(resp)
	return data
}

// SampleAnalysisJSON returns a well-formed analysis payload like the
// provider produces in JSON mode.
func SampleAnalysisJSON() string {
	return `{"title":"Marketing Email Generator","tags":["copywriting","marketing","email"],` +
		`"category":"Copywriting","effectiveness_score":8,` +
		`"effectiveness_reason":"Clear goal and audience, could specify tone."}`
}

// SampleTelegramUpdate returns a Telegram webhook update carrying the
// given message text.
func SampleTelegramUpdate(chatID int64, text string) []byte {
	update := map[string]interface{}{
		"update_id": 100001,
		"message": map[string]interface{}{
			"message_id": 42,
			"text":       text,
			"chat": map[string]interface{}{
				"id":   chatID,
				"type": "private",
			},
			"from": map[string]interface{}{
				"id":         chatID,
				"first_name": "Tester",
			},
		},
	}
	data, _ := json.Marshal(update)
	return data
}

// SampleLemonEvent returns a LemonSqueezy webhook body for the given
// event name, subscription status, and account id custom field.
func SampleLemonEvent(eventName, status, accountID string) []byte {
	body := fmt.Sprintf(`{
		"meta": {
			"event_name": %q,
			"custom_data": {"account_id": %q}
		},
		"data": {
			"id": "sub_12345",
			"type": "subscriptions",
			"attributes": {
				"status": %q,
				"customer_id": 987,
				"renews_at": "2026-10-01T00:00:00Z",
				"created_at": "2026-09-01T00:00:00Z"
			}
		}
	}`, eventName, accountID, status)
	return []byte(body)
}
