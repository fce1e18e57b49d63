package dto

type UpdateMeDTO struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" binding:"omitempty,email"`
}

type AdminUpdateUserDTO struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty" binding:"omitempty,email"`
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}
