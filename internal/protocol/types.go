package protocol

// Carried by a build command.
type BuildRequest struct {
	Context string `json:"context"`            // Build context: local directory or git URL.
	Profile string `json:"profile"`            // Bootstrap profile to build ("full" or "slim").
	Output  string `json:"output"`             // Directory for the exported image.
	NoCache bool   `json:"no_cache,omitempty"` // Skip the layer prefix cache.
}

// Returned after a successful build.
type BuildResult struct {
	Output string `json:"output"` // Directory containing the exported image.
	Cached bool   `json:"cached"` // Whether the pre-source prefix came from cache.
}

// Carried by an up command.
type UpRequest struct {
	Context string   `json:"context"`            // Build context, for the Bootstrapfile and env file.
	Profile string   `json:"profile"`            // Bootstrap profile to launch.
	Image   string   `json:"image"`              // Path to the built OCI archive.
	EnvFile string   `json:"env_file,omitempty"` // Optional env file injected at start.
	Env     []string `json:"env,omitempty"`      // Explicit KEY=VAL overrides, highest precedence.
	NoWait  bool     `json:"no_wait,omitempty"`  // Skip the readiness gate.
	Timeout int      `json:"timeout,omitempty"`  // Readiness timeout in seconds.
}

// Returned after the launched service exits.
type UpResult struct {
	ExitCode int `json:"exit_code"` // Exit code of the service process, passed through verbatim.
}

// Carried by a down command.
type DownRequest struct {
	Service string `json:"service"`        // Service name from the bootstrap definition.
	Purge   bool   `json:"purge,omitempty"` // Also remove the service's built images.
}

// Carried by a probe command.
type ProbeRequest struct {
	Port    int `json:"port"`              // TCP port to probe on the loopback interface.
	Timeout int `json:"timeout,omitempty"` // Probe timeout in seconds.
}

// Returned after a successful probe.
type ProbeResult struct {
	Status string `json:"status"` // Readiness level reached: "tcp" or "http".
}

// Returned by a status command.
type StatusResult struct {
	Running  bool      `json:"running"`
	Version  string    `json:"version"`
	Pid      int       `json:"pid"`
	Uptime   string    `json:"uptime"`
	Builds   int       `json:"builds"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Records the most recent deployment attempt for a service.
type Attempt struct {
	Service    string `json:"service"`
	Profile    string `json:"profile"` // Profile selected for the attempt.
	Phase      string `json:"phase"`   // "build" or "launch".
	Outcome    string `json:"outcome"` // "succeeded" or "failed".
	Detail     string `json:"detail,omitempty"`
	FinishedAt string `json:"finished_at"`
}

// Carried by an error response.
type ErrorResult struct {
	Message string `json:"message"`
}

// Streamed before the terminal response during long operations.
type Event struct {
	Kind    string `json:"kind"`    // "stage" for build progress, "log" for service output.
	Message string `json:"message"`
}
