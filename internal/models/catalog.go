package models

import "time"

type BrandCategory struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name" validate:"required"`
	Image string `json:"image,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

type Banner struct {
	ID       string `json:"_id,omitempty"`
	Title    string `json:"title" validate:"required"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"image,omitempty"`
	Link     string `json:"link,omitempty"`
	Active   bool   `json:"active"`
}

type Service struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type BlogPost struct {
	ID        string    `json:"_id,omitempty"`
	Title     string    `json:"title" validate:"required"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Content   string    `json:"content,omitempty"`
	Image     string    `json:"image,omitempty"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
