package server

import (
	"fmt"
	"io"
	oldlog "log"
	"net/http"
	"regexp"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

/*
HTTPServer hosts the pod registration and authentication API plus a static
demo UI. Routes registered through the API take precedence; everything else
falls through to the file server.
*/
type HTTPServer struct {
	htmlDir      string
	port         uint16
	bindAddress  string
	tlsCert      string
	tlsKey       string
	router       *mux.Router
	server       *http.Server
	contentType  map[string]string
	contentRegex map[*regexp.Regexp]string
}

// CORSMiddleware handles CORS and pre-flight requests.
func (s *HTTPServer) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Content-Type-Options, X-CSRF-Token, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HeaderMiddleware sets the Content-Type header based on the request path.
func (s *HTTPServer) HeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		matched := false
		for re, h := range s.contentRegex {
			if re.MatchString(r.RequestURI) {
				w.Header().Set("Content-Type", h)
				matched = true
				break
			}
		}
		if !matched {
			// default to JSON, likely this is an API request
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) Start() error {
	for regex, h := range s.contentType {
		if km, err := regexp.Compile(regex); err != nil {
			log.Warnf("ContentType regex %s did not compile due to %v", regex, err)
		} else {
			s.contentRegex[km] = h
		}
	}
	if s.htmlDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.htmlDir)))
	}
	if s.tlsCert != "" && s.tlsKey != "" {
		return s.server.ListenAndServeTLS(s.tlsCert, s.tlsKey)
	}
	return s.server.ListenAndServe()
}

func (s *HTTPServer) GetRouter() (router *mux.Router) {
	return s.router
}

func NewHTTPServer(bindAddress string, port uint16, htmlDir string, tlsCert string, tlsKey string) *HTTPServer {
	s := &HTTPServer{
		bindAddress:  bindAddress,
		port:         port,
		htmlDir:      htmlDir,
		contentType:  map[string]string{},
		contentRegex: map[*regexp.Regexp]string{},
		tlsCert:      tlsCert,
		tlsKey:       tlsKey,
	}

	// specify content types for the static demo UI
	s.contentType["(?i)^/.*[.](js|mjs)$"] = "application/javascript"
	s.contentType["(?i)^/.*[.](html)$"] = "text/html; charset=utf-8"

	s.router = mux.NewRouter().StrictSlash(true)
	s.router.Use(s.CORSMiddleware)
	s.router.Use(s.HeaderMiddleware)
	s.router.Use(handlers.CompressHandler)

	bindString := fmt.Sprintf("%s:%d", s.bindAddress, s.port)
	log.Infof("Starting HTTP server on %s", bindString)

	s.server = &http.Server{
		Addr:     bindString,
		Handler:  s.router,
		ErrorLog: oldlog.New(io.Discard, "", 0),
	}

	return s
}
