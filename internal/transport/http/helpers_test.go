package http

import "github.com/rs/zerolog"

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}
