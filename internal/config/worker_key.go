package config

type WorkerKeyStruct struct {
	ReconcileQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ReconcileQueue: "reconcile_roster_queue",
}
