package model

import "encoding/json"

type AuthResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    UserView `json:"user"`
}

type ProfileResponse struct {
	User UserView `json:"user"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// GenerationResponse mirrors the envelope of the generation service. Data
// fields are relayed untouched.
type GenerationResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    *GenerationData `json:"data,omitempty"`
}

type GenerationData struct {
	Files          json.RawMessage `json:"files"`
	Attributes     json.RawMessage `json:"attributes"`
	ProcessingTime float64         `json:"processing_time"`
}

type RelayError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
