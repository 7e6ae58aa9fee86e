package web

import (
	"encoding/json"
	"net/http"

	"github.com/sweeney/coop-door/internal/door"
	"github.com/sweeney/coop-door/internal/logic"
)

// CommandJSON is the response body of the command API.
type CommandJSON struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`
}

func commandResult(cmd door.Command, state logic.DoorState, err error) CommandJSON {
	res := CommandJSON{Command: string(cmd), OK: err == nil}
	if state != "" {
		res.State = state.String()
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func writeCommand(w http.ResponseWriter, code int, res CommandJSON) {
	data, _ := json.Marshal(res)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
