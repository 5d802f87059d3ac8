package domain

// SubjectType identifies the kind of authenticated principal.
type SubjectType string

const (
	SubjectTypeUser SubjectType = "USER"
)
