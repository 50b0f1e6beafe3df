package web

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/m4xw311/mcpchat/agent"
	"github.com/m4xw311/mcpchat/session"
)

//go:embed page.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

// Stats are the chat statistics shown in the sidebar.
type Stats struct {
	Total     int `json:"total"`
	User      int `json:"user"`
	Assistant int `json:"assistant"`
}

func statsOf(tr *session.Transcript) Stats {
	return Stats{
		Total:     tr.Len(),
		User:      tr.Count(session.RoleUser),
		Assistant: tr.Count(session.RoleAssistant),
	}
}

type pageView struct {
	Title  string
	Dark   bool
	Ready  bool
	Status string
	Turns  []session.Turn
	Stats  Stats
	Error  string
}

func (s *Server) view(r *http.Request, sess *agent.Session, errMsg string) pageView {
	v := pageView{
		Title:  s.opts.Title,
		Dark:   darkMode(r),
		Ready:  sess.Ready(),
		Status: sess.Status(),
		Turns:  sess.Transcript().All(),
		Stats:  statsOf(sess.Transcript()),
		Error:  errMsg,
	}
	if !v.Ready && v.Error == "" {
		v.Error = cannotProceedMessage
	}
	return v
}

func (s *Server) render(w http.ResponseWriter, code int, v pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := pageTemplate.Execute(w, v); err != nil {
		s.log.Error().Err(err).Msg("render page")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
