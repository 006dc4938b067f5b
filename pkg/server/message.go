package server

import (
	"encoding/json"
	"net/http"
)

/*
Message is the JSON reply envelope: a status field plus flattened string
params, e.g. {"status":"ok","description":"...","challenge":"..."}.
*/
type Message struct {
	status string
	params map[string]string
}

func Ok() *Message {
	return &Message{status: "ok", params: map[string]string{}}
}

func Error() *Message {
	return &Message{status: "error", params: map[string]string{}}
}

func (m *Message) AddParam(key string, value string) *Message {
	m.params[key] = value
	return m
}

func (m *Message) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(m.params)+1)
	for key, value := range m.params {
		flat[key] = value
	}
	flat["status"] = m.status
	return json.Marshal(flat)
}

func writeMessage(w http.ResponseWriter, code int, message *Message) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(message)
}
