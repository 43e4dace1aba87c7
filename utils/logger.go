package utils

import (
	"go.uber.org/zap"
)

// Logger globale del client
var Logger *zap.SugaredLogger

func init() {
	// Logger silenzioso finché InitLogger non viene chiamato; nei test
	// resta così
	Logger = zap.NewNop().Sugar()
}

// InitLogger inizializza il logger globale
func InitLogger(debug bool) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	Logger = logger.Sugar()
}
