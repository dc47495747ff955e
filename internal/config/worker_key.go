package config

type WorkerKeyStruct struct {
	PersistEventsQueue     string
	PersistHeartbeatsQueue string
	PersistAnswersQueue    string
	FinalizeAttemptsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistEventsQueue:     "persist_events_queue",
	PersistHeartbeatsQueue: "persist_heartbeats_queue",
	PersistAnswersQueue:    "persist_answers_queue",
	FinalizeAttemptsQueue:  "finalize_attempts_queue",
}
