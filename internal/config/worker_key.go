package config

import "time"

type WorkerKeyStruct struct {
	AutosaveQueueSize  int
	AutosaveRetryDelay time.Duration
	AutosaveDialWait   time.Duration
}

var WorkerKey = &WorkerKeyStruct{
	AutosaveQueueSize:  256,
	AutosaveRetryDelay: 3 * time.Second,
	AutosaveDialWait:   5 * time.Second,
}
