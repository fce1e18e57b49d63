package dto

type CreateTourDTO struct {
	Name         string  `json:"name" binding:"required,min=3"`
	Duration     int     `json:"duration" binding:"required,gt=0"`
	MaxGroupSize int     `json:"maxGroupSize" binding:"required,gt=0"`
	Difficulty   string  `json:"difficulty" binding:"required,oneof=easy medium difficult"`
	Price        float64 `json:"price" binding:"required,gt=0"`
	Summary      string  `json:"summary" binding:"required"`
	Description  string  `json:"description"`
}

type UpdateTourDTO struct {
	Name         *string  `json:"name,omitempty" binding:"omitempty,min=3"`
	Duration     *int     `json:"duration,omitempty" binding:"omitempty,gt=0"`
	MaxGroupSize *int     `json:"maxGroupSize,omitempty" binding:"omitempty,gt=0"`
	Difficulty   *string  `json:"difficulty,omitempty" binding:"omitempty,oneof=easy medium difficult"`
	Price        *float64 `json:"price,omitempty" binding:"omitempty,gt=0"`
	Summary      *string  `json:"summary,omitempty"`
	Description  *string  `json:"description,omitempty"`
}
