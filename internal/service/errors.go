package service

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrAccountNotFound = errors.New("instagram account not found")
	ErrAccountExists   = errors.New("instagram account already exists")
	ErrContentNotFound = errors.New("scheduled content not found")
	ErrNotEditable     = errors.New("content is no longer scheduled")
)
