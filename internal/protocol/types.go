// Package protocol defines the JSON wire types exchanged between the
// scanning agent and the inventory service.
package protocol

import "time"

// SkippedReason explains why a file record carries no content hash.
type SkippedReason string

const (
	SkippedNone                   SkippedReason = ""
	SkippedVolatileActive         SkippedReason = "volatile_active"
	SkippedSparseFile             SkippedReason = "sparse_file"
	SkippedMacOSDataless          SkippedReason = "macos_dataless"
	SkippedWindowsCloudPlaceholder SkippedReason = "windows_cloud_placeholder"
	SkippedRecentlyModified       SkippedReason = "recently_modified"
	SkippedPermissionError        SkippedReason = "permission_error"
)

// FileCategory is the closed set of coarse file categories, mirroring
// internal/classify.Category on the wire.
type FileCategory string

// ScanRunStatus is the scan run's linear state machine.
type ScanRunStatus string

const (
	ScanRunning     ScanRunStatus = "running"
	ScanComplete    ScanRunStatus = "complete"
	ScanFailed      ScanRunStatus = "failed"
	ScanInterrupted ScanRunStatus = "interrupted"
)

// FileRecord is one row of the inventory, as shipped by POST /files.
type FileRecord struct {
	Host          string        `json:"host"`
	Drive         string        `json:"drive"`
	Path          string        `json:"path"`
	PathDisplay   string        `json:"path_display"`
	Filename      string        `json:"filename"`
	Ext           string        `json:"ext"`
	FileCategory  FileCategory  `json:"file_category"`
	SizeBytes     *int64        `json:"size_bytes"`
	Hash          *string       `json:"hash"`
	Mtime         int64         `json:"mtime"`
	LastChecked   time.Time     `json:"last_checked"`
	LastSeenAt    time.Time     `json:"last_seen_at"`
	SourceOS      string        `json:"source_os"`
	SkippedReason SkippedReason `json:"skipped_reason,omitempty"`
	Inode         *uint64       `json:"inode"`
	Device        *uint64       `json:"device"`
}

// ScanRunCreate is the body of POST /scan-runs.
type ScanRunCreate struct {
	Host            string    `json:"host"`
	RootPath        string    `json:"root_path"`
	RootPathDisplay string    `json:"root_path_display"`
	StartedAt       time.Time `json:"started_at"`
}

// ScanRunCreateResponse is the response to POST /scan-runs.
type ScanRunCreateResponse struct {
	ID int64 `json:"id"`
}

// ScanRunPatch is the body of PATCH /scan-runs/{id}.
type ScanRunPatch struct {
	Status ScanRunStatus `json:"status"`
}

// OKResponse is a generic acknowledgement body.
type OKResponse struct {
	OK bool `json:"ok"`
}

// UpsertResponse is the response to POST /files.
type UpsertResponse struct {
	Upserted int `json:"upserted"`
}

// SeenPath identifies one file by its drive/path key for a seen-update.
type SeenPath struct {
	Drive string `json:"drive"`
	Path  string `json:"path"`
}

// SeenRequest is the body of POST /files/seen.
type SeenRequest struct {
	Host       string     `json:"host"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	Paths      []SeenPath `json:"paths"`
}

// SeenResponse is the response to POST /files/seen.
type SeenResponse struct {
	Updated int `json:"updated"`
}

// CacheEntry is one row of the streamed GET /files/cache/stream response,
// serialized as a 3-element JSON array: [path, mtime, size_bytes].
type CacheEntry struct {
	Path  string
	Mtime int64
	Size  int64
}

// MarshalJSON encodes a CacheEntry as a compact [path, mtime, size] array
// rather than an object, halving the per-row overhead across the millions
// of cached rows a cache stream can carry.
func (c CacheEntry) MarshalJSON() ([]byte, error) {
	return marshalTuple(c.Path, c.Mtime, c.Size)
}

// UnmarshalJSON decodes the compact 3-element array form.
func (c *CacheEntry) UnmarshalJSON(b []byte) error {
	var tuple [3]any
	if err := unmarshalTuple(b, &tuple); err != nil {
		return err
	}
	path, _ := tuple[0].(string)
	c.Path = path
	c.Mtime = toInt64(tuple[1])
	c.Size = toInt64(tuple[2])
	return nil
}

// TrimRequest is the body of POST /trim.
type TrimRequest struct {
	Host        string   `json:"host"`
	PathPrefix  string   `json:"path_prefix"`
	Recursive   bool     `json:"recursive"`
	DeletedOnly bool     `json:"deleted_only"`
	Patterns    []string `json:"patterns,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
	CountOnly   bool     `json:"count_only,omitempty"`
	Preview     bool     `json:"preview,omitempty"`
}

// TrimResponse is the response to POST /trim.
type TrimResponse struct {
	Matched      int      `json:"matched"`
	Deleted      int      `json:"deleted"`
	PreviewPaths []string `json:"preview_paths,omitempty"`
}

// LsEntry is one row of GET /files/ls's directory-listing aggregation.
type LsEntry struct {
	Segment       string   `json:"segment"`
	EntryType     string   `json:"entry_type"` // "file" or "dir"
	FileCount     int64    `json:"file_count"`
	TotalBytes    int64    `json:"total_bytes"`
	DupCount      int64    `json:"dup_count"`
	DupHashCount  int64    `json:"dup_hash_count"`
	Filename      string   `json:"filename,omitempty"`
	SizeBytes     *int64   `json:"size_bytes,omitempty"`
	Hash          *string  `json:"hash,omitempty"`
	Mtime         *int64   `json:"mtime,omitempty"`
	FileCategory  string   `json:"file_category,omitempty"`
	PathDisplay   string   `json:"path_display,omitempty"`
	OtherHosts    []string `json:"other_hosts,omitempty"`
	IsHardLinked  bool     `json:"is_hard_linked"`
}

// FileEntry is one row of GET /files's search results.
type FileEntry struct {
	Host          string   `json:"host"`
	Drive         string   `json:"drive"`
	PathDisplay   string   `json:"path_display"`
	Filename      string   `json:"filename"`
	Ext           string   `json:"ext"`
	FileCategory  string   `json:"file_category"`
	SizeBytes     *int64   `json:"size_bytes"`
	Hash          *string  `json:"hash"`
	Mtime         int64    `json:"mtime"`
	HasDuplicates bool     `json:"has_duplicates"`
	OtherHosts    []string `json:"other_hosts,omitempty"`
}

// DuplicateLocation is one instance of a duplicate set.
type DuplicateLocation struct {
	Host        string `json:"host"`
	PathDisplay string `json:"path_display"`
}

// DuplicateSet is one row of GET /stats/duplicates.
type DuplicateSet struct {
	Hash      string              `json:"hash"`
	SizeBytes int64               `json:"size_bytes"`
	Copies    int                 `json:"copies"`
	Wasted    int64               `json:"wasted"`
	Locations []DuplicateLocation `json:"locations"`
}

// StatsOverview is the response to GET /stats/overview.
type StatsOverview struct {
	TotalFiles     int64          `json:"total_files"`
	TotalBytes     int64          `json:"total_bytes"`
	TotalHashed    int64          `json:"total_hashed"`
	DuplicateSets  int64          `json:"duplicate_sets"`
	WastedBytes    int64          `json:"wasted_bytes"`
	ByCategory     map[string]int64 `json:"by_category,omitempty"`
}

// HostEntry is one row of GET /hosts.
type HostEntry struct {
	Host         string    `json:"host"`
	LastScanAt   time.Time `json:"last_scan_at"`
	LastScanRoot string    `json:"last_scan_root"`
	TotalFiles   int64     `json:"total_files"`
	TotalBytes   int64     `json:"total_bytes"`
	TotalHashed  int64     `json:"total_hashed"`
}

// ScanRunEntry is one row of GET /scan-runs.
type ScanRunEntry struct {
	ID              int64         `json:"id"`
	Host            string        `json:"host"`
	RootPath        string        `json:"root_path"`
	RootPathDisplay string        `json:"root_path_display"`
	StartedAt       time.Time     `json:"started_at"`
	Status          ScanRunStatus `json:"status"`
}

// InitResponse is the response to GET /init.
type InitResponse struct {
	Hosts        []HostEntry `json:"hosts"`
	DetectedHost string      `json:"detected_host,omitempty"`
	RootListing  []LsEntry   `json:"root_listing,omitempty"`
}
