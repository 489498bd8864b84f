package http

import (
	"net/http"
	"strconv"

	"sobres/internal/core"
	"sobres/internal/log"
)

type settingsView struct {
	layout
	Path    string
	Samples []core.Money
}

var localeSamples = []core.Money{{Cents: 123456789}, {Cents: -543000}, {Cents: 5}}

func (s *Server) settingsView() settingsView {
	return settingsView{
		layout:  s.layout("Settings", "settings", nil),
		Path:    s.prefs.Path(),
		Samples: localeSamples,
	}
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, NewHTMXResponse(), "settings.html", s.settingsView())
}

// handleSaveLocale stores the display locale. Every amount on the page
// changes, so the browser reloads it.
func (s *Server) handleSaveLocale(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	decimals, err := strconv.Atoi(body.Get("decimals"))
	if err != nil {
		s.fail(w, r, log.OpUpdate, core.Invalid("decimals", "must be 0, 1 or 2"))
		return
	}
	loc := core.Locale{
		Symbol: body.Get("symbol"),
		// Separators may legitimately be a space, so they are not trimmed away.
		ThousandsSep: separator(body, "thousands_separator"),
		DecimalSep:   separator(body, "decimal_separator"),
		Decimals:     decimals,
	}
	if err := s.prefs.SetLocale(loc); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Locale saved", log.FieldOperation, log.OpUpdate,
		"symbol", loc.Symbol, "decimals", loc.Decimals)

	resp := NewHTMXResponse().
		Header("HX-Refresh", "true").
		TriggerSuccessNotification("Preferences saved")
	s.respond(w, r, resp, "settings_panel", s.settingsView())
}

// separator keeps a lone space and reads "space" as one.
func separator(body *RequestBodyParser, key string) string {
	var raw string
	if body.jsonData != nil {
		raw = stringValue(body.jsonData[key])
	} else {
		raw = body.formData.Get(key)
	}
	switch {
	case raw == " ":
		return " "
	case body.Get(key) == "space":
		return " "
	}
	return body.Get(key)
}
