package http

import (
	"encoding/json"
	"fmt"
	"strings"
)

// messageParser pulls a human-readable message out of an error body.
type messageParser func(body []byte) (string, bool)

// errorMessageParsers run in order; the first match wins.
var errorMessageParsers = []messageParser{
	parseDetailString,
	parseDetailList,
	parseMessageField,
	parseErrorField,
}

// ExtractErrorMessage resolves the message for a non-2xx response. It never
// fails: bodies that match no known shape get a generic status message.
func ExtractErrorMessage(status int, body []byte) string {
	for _, parse := range errorMessageParsers {
		if msg, ok := parse(body); ok {
			return msg
		}
	}
	return GenericStatusMessage(status)
}

func GenericStatusMessage(status int) string {
	return fmt.Sprintf("request failed with status code %d", status)
}

// {"detail": "disk full"}
func parseDetailString(body []byte) (string, bool) {
	var v struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	return nonEmpty(v.Detail)
}

// {"detail": [{"loc": [...], "msg": "field required"}]}
func parseDetailList(body []byte) (string, bool) {
	var v struct {
		Detail []struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	msgs := make([]string, 0, len(v.Detail))
	for _, d := range v.Detail {
		if d.Msg != "" {
			msgs = append(msgs, d.Msg)
		}
	}
	return nonEmpty(strings.Join(msgs, "; "))
}

// {"message": "..."}
func parseMessageField(body []byte) (string, bool) {
	var v struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	return nonEmpty(v.Message)
}

// {"error": "..."}
func parseErrorField(body []byte) (string, bool) {
	var v struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	return nonEmpty(v.Error)
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
