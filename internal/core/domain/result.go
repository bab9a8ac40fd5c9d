package domain

// UploadResult is the stable reference to a successfully uploaded
// artifact. Immutable once returned by a backend.
type UploadResult struct {
	RemoteID string            `json:"remoteId"`
	Name     string            `json:"name"`
	ViewLink string            `json:"webViewLink,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// FolderRef identifies a remotely created folder
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatMessageRef identifies a file message delivered into a chat context
type ChatMessageRef struct {
	MessageID string `json:"messageId"`
	FileKey   string `json:"fileKey"`
	ChatID    string `json:"chatId"`
}

// ExitResult is the structured outcome of a subprocess invocation
type ExitResult struct {
	Code   int
	Stdout string
	Stderr string
}

// MemoryStats is a snapshot of process and system memory usage
type MemoryStats struct {
	RSS         uint64
	VMS         uint64
	UsedPercent float64
}
