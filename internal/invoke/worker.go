package invoke

import "os"

// WorkerIDEnvVar is set by the execution sandbox when the current process
// is itself running on the remote worker host, not the author's machine.
// Its presence turns every RemoteBinding.Call into a local pass-through: a
// worker invoking its own decorated functions must not recurse back out
// over the network.
const WorkerIDEnvVar = "TETRA_WORKER_ID"

// IsWorkerProcess reports whether this process is running as a remote
// worker rather than on the author's machine.
func IsWorkerProcess() bool {
	return os.Getenv(WorkerIDEnvVar) != ""
}
