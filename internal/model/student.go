package model

// Student is a subject known to the dev Exam Authority.
type Student struct {
	ID           int    `json:"id"`
	NISN         string `json:"nisn"`
	Name         string `json:"name"`
	ClassID      int    `json:"class_id"`
	PasswordHash string `json:"-"`
}
