package model

type SignupRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type GenerateRequest struct {
	Description string `json:"description"`
	Style       string `json:"style,omitempty"`
	Floors      *int   `json:"floors,omitempty"`
	OutputName  string `json:"output_name,omitempty"`
}
