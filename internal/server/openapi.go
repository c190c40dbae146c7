package server

import (
	"fmt"
	"net/http"
)

// openAPI describes the paid endpoints for agent discovery.
func (s *Server) openAPI() map[string]any {
	gate := s.oracle.Gate()
	guidance := gate.Guidance()

	paths := map[string]any{}
	for _, d := range s.oracle.Domains() {
		paths["/api/"+string(d)] = map[string]any{
			"post": map[string]any{
				"summary":     fmt.Sprintf("Answer a %s question", d),
				"operationId": "ask_" + string(d),
				"x-payment": map[string]any{
					"required": gate.Enabled(),
					"cost":     gate.Cost(),
					"price":    guidance.Price,
					"planId":   guidance.PlanID,
					"agentId":  guidance.AgentID,
					"header":   gate.Header(),
				},
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type":     "object",
								"required": []string{"question"},
								"properties": map[string]any{
									"question": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Verification result with settlement outcome"},
					"400": map[string]any{"description": "Missing or malformed question"},
					"401": map[string]any{"description": "Invalid credential (with purchase guidance) or verifier unreachable"},
					"402": map[string]any{"description": "Payment credential required"},
					"404": map[string]any{"description": "Unknown domain"},
					"500": map[string]any{"description": "Internal error"},
					"503": map[string]any{"description": "Source breaker open or daily quota reached"},
				},
			},
		}
	}
	paths["/api/stats/{domain}"] = map[string]any{
		"get": map[string]any{
			"summary":   "Query log and breaker state for a domain",
			"responses": map[string]any{"200": map[string]any{"description": "Stats snapshot"}},
		},
	}
	paths["/health"] = map[string]any{
		"get": map[string]any{
			"summary":   "Liveness",
			"responses": map[string]any{"200": map[string]any{"description": "OK"}},
		},
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Fact Oracle",
			"version": "1.0.0",
		},
		"paths": paths,
	}
	if s.cfg.PublicURL != "" {
		doc["servers"] = []map[string]string{{"url": s.cfg.PublicURL}}
	}
	return doc
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.openAPI())
}
