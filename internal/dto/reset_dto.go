package dto

type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetCompleteRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}
