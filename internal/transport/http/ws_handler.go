package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gechoice/internal/game"
)

// WSHandler wires websocket connections into the live session. Host-gated
// operations require the shared host key; the session itself never
// authenticates anyone.
type WSHandler struct {
	session  *game.Session
	hostKey  string
	upgrader websocket.Upgrader
}

func NewWSHandler(session *game.Session, hostKey string) *WSHandler {
	return &WSHandler{
		session: session,
		hostKey: hostKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Option string `json:"option"`
}

type weightedSubmitPayload struct {
	Option   string `json:"option"`
	Weight   int    `json:"weight"`
	TeamName string `json:"teamName"`
}

type teamPayload struct {
	TeamName string `json:"teamName"`
}

type resultRowPayload struct {
	Index    int    `json:"index"`
	TeamName string `json:"teamName"`
}

type weightAckPayload struct {
	Weight int    `json:"weight"`
	Reason string `json:"reason,omitempty"`
}

type advisoryPayload struct {
	Message string `json:"message"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ServeWS upgrades the request and runs the connection until the client
// goes away. Disconnecting removes the participant's current vote.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		participantID = uuid.NewString()
	}
	isHost := h.hostKey != "" && r.URL.Query().Get("hostKey") == h.hostKey

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.session.Subscribe()
	defer cancel()
	defer h.session.Disconnect(participantID)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("participant", participantID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(send, participantID, isHost, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch routes one inbound message. Guard violations never close the
// connection; they come back as advisory messages to this caller only.
func (h *WSHandler) dispatch(send chan<- outboundMessage, participantID string, isHost bool, inbound inboundMessage) {
	switch inbound.Type {
	case "getState":
		send <- outboundMessage{Type: "state", Payload: h.session.GetState()}

	case "submit":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- advisory("invalid submit payload")
			return
		}
		if err := h.session.Submit(participantID, payload.Option); err != nil {
			send <- advisory(err.Error())
		}

	case "submitWeighted":
		var payload weightedSubmitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- advisory("invalid weighted submit payload")
			return
		}
		if err := h.session.SubmitWithWeight(participantID, payload.TeamName, payload.Option, payload.Weight); err != nil {
			send <- outboundMessage{Type: "weightRejected", Payload: weightAckPayload{Weight: payload.Weight, Reason: err.Error()}}
			return
		}
		send <- outboundMessage{Type: "weightAccepted", Payload: weightAckPayload{Weight: payload.Weight}}

	case "updateTeam":
		var payload teamPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- advisory("invalid team payload")
			return
		}
		if err := h.session.UpdateTeamName(participantID, payload.TeamName); err != nil {
			send <- advisory(err.Error())
		}

	case "startVoting":
		h.hostOp(send, isHost, h.session.StartVoting)
	case "stopVoting":
		h.hostOp(send, isHost, h.session.StopVoting)
	case "showResults":
		h.hostOp(send, isHost, func() error {
			_, err := h.session.ShowQuestionResults()
			return err
		})
	case "nextQuestion":
		h.hostOp(send, isHost, h.session.NextQuestion)
	case "prevQuestion":
		h.hostOp(send, isHost, h.session.PrevQuestion)
	case "finalResults":
		h.hostOp(send, isHost, func() error {
			_, err := h.session.RequestFinalResults()
			return err
		})
	case "resetGame":
		h.hostOp(send, isHost, func() error {
			h.session.ResetGame()
			return nil
		})

	case "deleteTeamVote":
		var payload teamPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- advisory("invalid team payload")
			return
		}
		h.hostOp(send, isHost, func() error {
			return h.session.DeleteTeamVote(payload.TeamName)
		})

	case "deleteResultRow":
		var payload resultRowPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- advisory("invalid result row payload")
			return
		}
		h.hostOp(send, isHost, func() error {
			return h.session.DeleteResultRow(payload.Index, payload.TeamName)
		})

	default:
		send <- advisory("unsupported message type")
	}
}

func (h *WSHandler) hostOp(send chan<- outboundMessage, isHost bool, op func() error) {
	if !isHost {
		send <- advisory("host privileges required")
		return
	}
	if err := op(); err != nil {
		send <- advisory(err.Error())
	}
}

func advisory(message string) outboundMessage {
	return outboundMessage{Type: "advisory", Payload: advisoryPayload{Message: message}}
}
