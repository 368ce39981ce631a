// File: internal/dtos/user.go
package dtos

// RegisterRequestDTO represents the expected payload to create a new user.
type RegisterRequestDTO struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequestDTO represents the login payload.
type LoginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponseDTO represents the login response.
type TokenResponseDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

// ChangePasswordRequestDTO represents the password change payload.
type ChangePasswordRequestDTO struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// MessageResponse is the generic success body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadResponseDTO carries the stable URL of a stored upload.
type UploadResponseDTO struct {
	URL string `json:"url"`
}
