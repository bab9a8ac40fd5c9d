package domain

import "time"

// FileInfo is the cached result of a filesystem stat. A path that does
// not exist is represented by Exists=false rather than an error, so
// callers can decide to skip missing entries.
type FileInfo struct {
	Exists  bool
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Listing is one entry of a browsed directory
type Listing struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
}

// DownloadEntry describes a locally retained archive artifact
type DownloadEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modified"`
	URL      string    `json:"downloadUrl"`
}
