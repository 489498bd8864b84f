package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusAccepted).
		BodyHTML([]byte("<p>ok</p>")).
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerBudgetChanged("2024-03").
		TriggerFormReset().
		TriggerSuccessNotification("Assigned").
		Write(w)

	var got map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &got); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventBudgetChanged, EventFormReset, EventNotification} {
		if _, ok := got[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}
	if string(got[EventBudgetChanged]) != `{"month":"2024-03"}` {
		t.Errorf("budget payload = %s", got[EventBudgetChanged])
	}
	if !strings.Contains(string(got[EventNotification]), `"type":"success"`) {
		t.Errorf("notification payload = %s", got[EventNotification])
	}
}

func TestHTMXResponseBuilder_LedgerChanged(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().TriggerLedgerChanged().Write(w)

	trigger := w.Header().Get("HX-Trigger")
	for _, name := range []string{EventBudgetChanged, EventAccountsChanged, EventTransactionsChanged} {
		if !strings.Contains(trigger, name) {
			t.Errorf("HX-Trigger missing %q: %s", name, trigger)
		}
	}
}

func TestErrorResponseEscapes(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, `amount <b>"x"</b> is invalid`).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<b>") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Errorf("error notification missing: %s", w.Header().Get("HX-Trigger"))
	}
}

func TestRetarget(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusBadGateway, "backend down").Retarget("#flash").Write(w)

	if w.Header().Get("HX-Retarget") != "#flash" || w.Header().Get("HX-Reswap") != "innerHTML" {
		t.Errorf("retarget headers = %v", w.Header())
	}
	if w.Code != http.StatusBadGateway {
		t.Errorf("Status code = %d", w.Code)
	}
}
