package api

// =============================================================================
// Request Types
// =============================================================================

// ActionRequest is the body of a lifecycle action call. Instances narrows the
// action to specific instances of the configuration; Kwargs carries extra
// engine-call arguments merged into the generated ones.
type ActionRequest struct {
	Instances []string       `json:"instances,omitempty"`
	Kwargs    map[string]any `json:"kwargs,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ClientResultResponse is one engine result of an action.
type ClientResultResponse struct {
	Client string `json:"client"`
	Value  any    `json:"value"`
}

// ActionResponse reports the results of an executed lifecycle action.
type ActionResponse struct {
	Map     string                 `json:"map"`
	Config  string                 `json:"config"`
	Action  string                 `json:"action"`
	Results []ClientResultResponse `json:"results"`
}

// MapResponse describes one container map.
type MapResponse struct {
	Name       string   `json:"name"`
	Containers []string `json:"containers"`
}

// ContainerResponse describes one container configuration.
type ContainerResponse struct {
	Name      string   `json:"name"`
	Image     string   `json:"image,omitempty"`
	Instances []string `json:"instances,omitempty"`
	Clients   []string `json:"clients,omitempty"`
}

// PathResponse lists a dependency path in execution order.
type PathResponse struct {
	Path []string `json:"path"`
}

// JournalEntryResponse is one journaled action.
type JournalEntryResponse struct {
	ID        int64  `json:"id"`
	Client    string `json:"client"`
	Map       string `json:"map"`
	Config    string `json:"config"`
	Instance  string `json:"instance,omitempty"`
	Verb      string `json:"verb"`
	Container string `json:"container"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}
