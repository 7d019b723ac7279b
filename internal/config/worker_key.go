package config

type WorkerKeyStruct struct {
	PersistInfractionsQueue string
	PersistSnapshotsQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	PersistInfractionsQueue: "persist_infractions_queue",
	PersistSnapshotsQueue:   "persist_snapshots_queue",
}
