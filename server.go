package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/razzie/gifenc/pkg/gifenc"
	"golang.org/x/net/websocket"
)

type Server struct {
	http.ServeMux
	mgr *SessionMgr
}

func NewServer(mgr *SessionMgr) *Server {
	srv := &Server{mgr: mgr}

	srv.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		settings, err := settingsFromQuery(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sess, err := mgr.NewSession(settings)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, sess.id)
	})

	srv.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		sess := mgr.GetSession(r.URL.Path[4:])
		if sess == nil {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		websocket.Handler(sess.serve).ServeHTTP(w, r)
	})

	srv.HandleFunc("/gif/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[5:]
		sess := mgr.GetSession(id)
		if sess == nil || !sess.Finished() {
			http.Error(w, "Recording not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename="+id+".gif")
		w.Header().Set("Content-Type", "image/gif")
		http.ServeFile(w, r, sess.path)
	})

	return srv
}

func settingsFromQuery(q url.Values) (gifenc.Settings, error) {
	var s gifenc.Settings
	var err error
	if s.Width, err = strconv.Atoi(q.Get("w")); err != nil {
		return s, fmt.Errorf("invalid width")
	}
	if s.Height, err = strconv.Atoi(q.Get("h")); err != nil {
		return s, fmt.Errorf("invalid height")
	}
	if v := q.Get("quality"); len(v) > 0 {
		if s.Quality, err = strconv.Atoi(v); err != nil {
			return s, fmt.Errorf("invalid quality")
		}
	}
	if v := q.Get("repeat"); len(v) > 0 {
		if s.Repeat, err = strconv.Atoi(v); err != nil {
			return s, fmt.Errorf("invalid repeat")
		}
	}
	s.Fast = q.Get("fast") == "1"
	return s, nil
}
