package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/MaastrichtU-BISS/grid-planner/navgrid"
	"github.com/MaastrichtU-BISS/grid-planner/planner"
)

// MoveIntent asks for a path on behalf of one agent.
type MoveIntent struct {
	AgentID string        `json:"agentId"`
	Start   navgrid.Point `json:"start"`
	End     navgrid.Point `json:"end"`
}

// PlanResult answers a MoveIntent.
type PlanResult struct {
	AgentID   string       `json:"agentId"`
	RequestID string       `json:"requestId"`
	Path      planner.Path `json:"path"`
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
}

// GET /ws - Stream move intents and receive planned paths, one reply per intent
func (s *server) intentsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Printf("❌ WebSocket upgrade failed: %v\n", err)
		return
	}
	defer conn.Close()

	log.Printf("🔌 Intent stream opened from %s\n", r.RemoteAddr)
	for {
		var intent MoveIntent
		if err := conn.ReadJSON(&intent); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("⚠️  Intent stream closed: %v\n", err)
			}
			return
		}

		if err := conn.WriteJSON(s.planIntent(intent)); err != nil {
			log.Printf("⚠️  Failed to send plan: %v\n", err)
			return
		}
	}
}

func (s *server) planIntent(intent MoveIntent) PlanResult {
	p := s.currentPlanner()
	if p == nil {
		return PlanResult{
			AgentID: intent.AgentID,
			Path:    planner.Path{},
			Message: "Grid not loaded",
		}
	}

	route := planRoute(p, intent.Start, intent.End)
	return PlanResult{
		AgentID:   intent.AgentID,
		RequestID: route.RequestID,
		Path:      route.Path,
		Success:   route.Success,
		Message:   route.Message,
	}
}
