package dto

// Pagination is bound from ?page=&limit= query parameters
type Pagination struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Normalize applies defaults: page 1, limit 20
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
}

// Offset returns the row offset for the current page
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// StatusRequest changes the status of a partner or seat
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}
