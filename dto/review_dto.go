package dto

type CreateReviewDTO struct {
	Review string  `json:"review" binding:"required"`
	Rating float64 `json:"rating" binding:"required,gte=1,lte=5"`
	Tour   string  `json:"tour"`
	User   string  `json:"user"`
}

type UpdateReviewDTO struct {
	Review *string  `json:"review,omitempty"`
	Rating *float64 `json:"rating,omitempty" binding:"omitempty,gte=1,lte=5"`
}
