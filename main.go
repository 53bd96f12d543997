package main

import (
	"flag"
	"log"
	"net/http"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	redisURL := flag.String("redis", "", "Redis URL for the recording index (optional)")
	outDir := flag.String("out", ".", "directory for finished recordings")
	flag.Parse()

	mgr := NewSessionMgr(*outDir, *redisURL)
	log.Println("listening on", *addr)
	log.Fatalln(http.ListenAndServe(*addr, NewServer(mgr)))
}
