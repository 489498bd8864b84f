// Package http serves the budget web UI.
//
// This file builds HTMX responses: HX-Trigger events telling the page which
// panels to reload, notifications, and the HTML error snippets.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Events the page listens for to reload its panels.
const (
	EventBudgetChanged       = "budget:changed"
	EventAccountsChanged     = "accounts:changed"
	EventTransactionsChanged = "transactions:changed"
	EventFormReset           = "form:reset"
	EventNotification        = "show-notification"
)

// HTMXResponseBuilder assembles one htmx reply. Events are merged into a
// single HX-Trigger header when the reply is written.
type HTMXResponseBuilder struct {
	status int
	events map[string]any
	header http.Header
	body   []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{status: http.StatusOK, events: map[string]any{}, header: http.Header{}}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger sets the payload of event name. A later call for the same name wins.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.events[name] = data
	return b
}

// TriggerBudgetChanged asks the budget panel for month to reload.
func (b *HTMXResponseBuilder) TriggerBudgetChanged(month string) *HTMXResponseBuilder {
	return b.Trigger(EventBudgetChanged, map[string]string{"month": month})
}

func (b *HTMXResponseBuilder) TriggerAccountsChanged() *HTMXResponseBuilder {
	return b.Trigger(EventAccountsChanged, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerTransactionsChanged() *HTMXResponseBuilder {
	return b.Trigger(EventTransactionsChanged, struct{}{})
}

// TriggerLedgerChanged is sent after writes that move balances everywhere.
func (b *HTMXResponseBuilder) TriggerLedgerChanged() *HTMXResponseBuilder {
	return b.TriggerBudgetChanged("").TriggerAccountsChanged().TriggerTransactionsChanged()
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, struct{}{})
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// notification is the payload app.js expects for EventNotification.
type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"` // ms
}

func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, notification{Type: kind, Message: message, Duration: durationMs})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

// Errors stay on screen longer than confirmations.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Retarget makes htmx swap the body into selector instead of the request's target.
func (b *HTMXResponseBuilder) Retarget(selector string) *HTMXResponseBuilder {
	return b.Header("HX-Retarget", selector).Header("HX-Reswap", "innerHTML")
}

func (b *HTMXResponseBuilder) BodyHTML(html []byte) *HTMXResponseBuilder {
	b.body = html
	return b.Header("Content-Type", "text/html; charset=utf-8")
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.events) > 0 {
		if raw, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(raw))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders the HTML-escaped message into the form's error
// slot and raises an error notification.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		TriggerErrorNotification(message).
		BodyHTML([]byte(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}
