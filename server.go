package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/schema"
)

const maxBodySize = 8 << 20

type ApiServer struct {
	plugin    *digitalink.Plugin
	jwtSecret []byte
	upgrader  websocket.Upgrader
}

// result is what one call surface method produced: a single response, or
// a call streaming several.
type result struct {
	resp   digitalink.Response
	call   *digitalink.Call
	status int
}

// wsRequest is one frame sent by a websocket client.
type wsRequest struct {
	CallbackID string          `json:"callbackId"`
	Method     string          `json:"method"`
	Options    json.RawMessage `json:"options,omitempty"`
}

// wsResponse carries one response for a callbackId. A streaming call sends
// several frames with the same callbackId.
type wsResponse struct {
	CallbackID string              `json:"callbackId"`
	Response   digitalink.Response `json:"response"`
}

func NewApiServer(plugin *digitalink.Plugin, jwtSecret string) *ApiServer {
	s := &ApiServer{
		plugin: plugin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if jwtSecret != "" {
		s.jwtSecret = []byte(jwtSecret)
	}
	return s
}

func (s *ApiServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeResponse(w, status, digitalink.Response{OK: false, Msg: err.Error()})
}

func (s *ApiServer) writeResponse(w http.ResponseWriter, status int, resp digitalink.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, digitalink.ErrMalformedStroke),
		errors.Is(err, digitalink.ErrInvalidModel),
		errors.Is(err, digitalink.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, digitalink.ErrModelNotDownloaded),
		errors.Is(err, digitalink.ErrNoModelsDownloaded):
		return http.StatusNotFound
	case errors.Is(err, digitalink.ErrNotInitialized):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func invalidRequest(err error) result {
	return result{
		resp:   digitalink.Response{OK: false, Msg: "invalid request: " + err.Error(), Err: err},
		status: http.StatusBadRequest,
	}
}

func unknownMethod(method string) result {
	return result{
		resp:   digitalink.Response{OK: false, Msg: fmt.Sprintf("unknown method %q", method)},
		status: http.StatusNotFound,
	}
}

// dispatch runs one call surface method. body holds its options as JSON.
func (s *ApiServer) dispatch(ctx context.Context, method string, body []byte) result {
	if !schema.Has(method) {
		switch method {
		case "initializePlugin":
			return result{resp: s.plugin.InitializePlugin(ctx), status: http.StatusOK}
		case "erase":
			return result{resp: s.plugin.Erase(), status: http.StatusOK}
		case "getDownloadedModels":
			resp, err := s.plugin.GetDownloadedModels(ctx)
			return result{resp: resp, status: statusFor(err)}
		}
		return unknownMethod(method)
	}

	if err := schema.Validate(method, body); err != nil {
		return invalidRequest(err)
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	var (
		resp digitalink.Response
		call *digitalink.Call
		err  error
	)

	switch method {
	case "logStrokes":
		var opts digitalink.Strokes
		if err := json.Unmarshal(body, &opts); err != nil {
			return invalidRequest(err)
		}
		resp, err = s.plugin.LogStrokes(opts)

	case "doRecognition":
		var opts digitalink.RecognitionOptions
		if err := json.Unmarshal(body, &opts); err != nil {
			return invalidRequest(err)
		}
		resp, err = s.plugin.DoRecognition(ctx, opts)

	case "downloadSingularModel":
		var opts struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal(body, &opts); err != nil {
			return invalidRequest(err)
		}
		call, err = s.plugin.DownloadSingularModel(ctx, opts.Model)

	case "downloadMultipleModels":
		var opts struct {
			Models []string `json:"models"`
		}
		if err := json.Unmarshal(body, &opts); err != nil {
			return invalidRequest(err)
		}
		call, err = s.plugin.DownloadMultipleModels(ctx, opts.Models)

	case "deleteModel":
		var opts digitalink.DeleteOptions
		if err := json.Unmarshal(body, &opts); err != nil {
			return invalidRequest(err)
		}
		call, err = s.plugin.DeleteModel(ctx, opts)

	default:
		return unknownMethod(method)
	}

	if call == nil && err != nil && resp.Msg == "" {
		resp = digitalink.Response{OK: false, Msg: err.Error(), Err: err}
	}
	return result{resp: resp, call: call, status: statusFor(err)}
}

// POST /api/<method>
func (s *ApiServer) handleMethod(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/api/")

	switch method {
	case "getDownloadedModels":
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	case "deleteModel":
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	default:
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	res := s.dispatch(r.Context(), method, body)
	if res.call == nil {
		s.writeResponse(w, res.status, res.resp)
		return
	}
	s.streamCall(w, r, res.call)
}

// streamCall writes each response of call as one JSON line, ending with
// the done:true line.
func (s *ApiServer) streamCall(w http.ResponseWriter, r *http.Request, call *digitalink.Call) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Call-Id", call.ID)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for {
		select {
		case resp, open := <-call.Responses():
			if !open {
				return
			}
			if err := enc.Encode(resp); err != nil {
				log.Trace.Printf("call %s: client went away: %v", call.ID, err)
				go discard(call)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			log.Trace.Printf("call %s: request cancelled", call.ID)
			go discard(call)
			return
		}
	}
}

// discard drains a call nobody listens to any more.
func discard(call *digitalink.Call) {
	for range call.Responses() {
	}
}

// GET /api/ws
func (s *ApiServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Trace.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	send := func(frame wsResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(frame); err != nil {
			log.Trace.Printf("websocket write: %v", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Trace.Printf("websocket read: %v", err)
			}
			cancel()
			return
		}

		var req wsRequest
		if err := schema.Validate(schema.Request, msg); err != nil {
			// best effort to echo the callback id
			json.Unmarshal(msg, &req)
			send(wsResponse{CallbackID: req.CallbackID, Response: invalidRequest(err).resp})
			continue
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			send(wsResponse{Response: invalidRequest(err).resp})
			continue
		}

		res := s.dispatch(ctx, req.Method, req.Options)
		if res.call == nil {
			send(wsResponse{CallbackID: req.CallbackID, Response: res.resp})
			continue
		}

		wg.Add(1)
		go func(id string, call *digitalink.Call) {
			defer wg.Done()
			for {
				select {
				case resp, open := <-call.Responses():
					if !open {
						return
					}
					send(wsResponse{CallbackID: id, Response: resp})
				case <-ctx.Done():
					go discard(call)
					return
				}
			}
		}(req.CallbackID, res.call)
	}
}

// authenticate requires an HS256 bearer token when a secret is configured.
// Browsers can't set headers on websocket upgrades, so access_token in the
// query is accepted too.
func (s *ApiServer) authenticate(next http.Handler) http.Handler {
	if s.jwtSecret == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			raw = r.URL.Query().Get("access_token")
		}
		if raw == "" {
			s.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			s.writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the full route table.
func (s *ApiServer) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/ws", s.handleWebsocket)
	api.HandleFunc("/api/", s.handleMethod)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authenticate(api))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Root endpoint with API documentation
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
	<title>digitalink API</title>
</head>
<body>
	<h1>digitalink API</h1>
	<h2>Endpoints:</h2>
	<ul>
		<li>POST /api/initializePlugin - Start routing model completions</li>
		<li>POST /api/erase - Clear logged strokes</li>
		<li>POST /api/logStrokes - Log one stroke {x, y, t?}</li>
		<li>POST /api/doRecognition - Recognize logged strokes {model?, context?, writingArea?}</li>
		<li>POST /api/downloadSingularModel - Download a model {model}, streams NDJSON</li>
		<li>POST /api/downloadMultipleModels - Download models {models}, streams NDJSON</li>
		<li>POST|DELETE /api/deleteModel - Delete {model?, models?, all?}, streams NDJSON</li>
		<li>GET /api/getDownloadedModels - List downloaded models</li>
		<li>GET /api/ws - Websocket bridge, frames {callbackId, method, options}</li>
	</ul>
</body>
</html>
		`)
	})

	return mux
}

func runServerMode(plugin *digitalink.Plugin, port string, jwtSecret string) {
	server := NewApiServer(plugin, jwtSecret)
	if jwtSecret == "" {
		log.Warning.Println("server.jwt_secret is not set, API is unauthenticated")
	}

	log.Info.Printf("Starting HTTP server on port %s", port)
	if err := http.ListenAndServe(":"+port, server.Handler()); err != nil {
		log.Error.Fatalf("Server failed: %v", err)
	}
}
