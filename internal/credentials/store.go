package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"alpacon-mcp/pkg/logging"
)

// FileName is the name of the credential file inside a config directory.
const FileName = "token.json"

// ErrNotFound is returned by Remove when no credential exists for the pair.
var ErrNotFound = errors.New("credential not found")

// Credential is one API token scoped to a (region, workspace) pair.
type Credential struct {
	Token     string `json:"token"`
	Workspace string `json:"workspace"`
	Region    string `json:"region"`
}

// Options configures Open.
type Options struct {
	// Path is the resolved credential file.
	Path string

	// Fallbacks are other candidate credential files. When Path does not
	// exist, the first fallback holding credentials is migrated into Path.
	Fallbacks []string

	// DevMode records whether the development location was selected.
	DevMode bool

	// DevModeEnv is the raw value of the dev-mode environment variable,
	// reported by ConfigInfo.
	DevModeEnv string
}

// Store keeps credentials in memory and rewrites the whole file on every
// mutation. Concurrent writers in other processes follow last-writer-wins.
//
// SECURITY: token values are never logged. Files are written 0600 inside a
// 0700 directory.
type Store struct {
	mu    sync.RWMutex
	opts  Options
	creds map[string]map[string]Credential
}

// Open loads the credential file described by opts. A missing or
// unparseable file yields an empty store.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("credential file path is required")
	}

	s := &Store{
		opts:  opts,
		creds: make(map[string]map[string]Credential),
	}

	if _, err := os.Stat(opts.Path); errors.Is(err, os.ErrNotExist) {
		if err := s.migrateLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	creds, err := readFile(opts.Path)
	if err != nil {
		logging.Warn("Credentials", "Ignoring unreadable credential file %s: %v", opts.Path, err)
		return s, nil
	}
	s.creds = creds
	return s, nil
}

// migrateLocked copies credentials from the first non-empty fallback into
// the resolved path.
func (s *Store) migrateLocked() error {
	for _, fb := range s.opts.Fallbacks {
		if fb == "" || fb == s.opts.Path {
			continue
		}
		creds, err := readFile(fb)
		if err != nil || countCredentials(creds) == 0 {
			continue
		}

		s.creds = creds
		if err := s.writeLocked(); err != nil {
			return fmt.Errorf("failed to migrate credentials from %s: %w", fb, err)
		}
		logging.Info("Credentials", "Migrated %d credential(s) from %s to %s", countCredentials(creds), fb, s.opts.Path)
		return nil
	}
	return nil
}

// Path returns the credential file in use.
func (s *Store) Path() string {
	return s.opts.Path
}

// Set stores or replaces the token for (region, workspace) and persists.
func (s *Store) Set(region, workspace, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := cloneCredentials(s.creds)

	bucket, ok := s.creds[region]
	if !ok {
		bucket = make(map[string]Credential)
		s.creds[region] = bucket
	}
	bucket[workspace] = Credential{Token: token, Workspace: workspace, Region: region}

	if err := s.writeLocked(); err != nil {
		s.creds = prev
		logging.Audit(logging.AuditEvent{
			Action:    "credential_set",
			Outcome:   "failure",
			Region:    region,
			Workspace: workspace,
			Target:    s.opts.Path,
			Error:     err.Error(),
		})
		return err
	}

	logging.Audit(logging.AuditEvent{
		Action:    "credential_set",
		Outcome:   "success",
		Region:    region,
		Workspace: workspace,
		Target:    s.opts.Path,
	})
	return nil
}

// Get returns the credential for (region, workspace).
func (s *Store) Get(region, workspace string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[region][workspace]
	return c, ok
}

// Remove deletes the credential for (region, workspace). An emptied region
// bucket is dropped. Returns ErrNotFound when nothing was stored.
func (s *Store) Remove(region, workspace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.creds[region]
	if !ok {
		return ErrNotFound
	}
	if _, ok := bucket[workspace]; !ok {
		return ErrNotFound
	}

	prev := cloneCredentials(s.creds)
	delete(bucket, workspace)
	if len(bucket) == 0 {
		delete(s.creds, region)
	}

	if err := s.writeLocked(); err != nil {
		s.creds = prev
		logging.Audit(logging.AuditEvent{
			Action:    "credential_remove",
			Outcome:   "failure",
			Region:    region,
			Workspace: workspace,
			Target:    s.opts.Path,
			Error:     err.Error(),
		})
		return err
	}

	logging.Audit(logging.AuditEvent{
		Action:    "credential_remove",
		Outcome:   "success",
		Region:    region,
		Workspace: workspace,
		Target:    s.opts.Path,
	})
	return nil
}

// List returns a deep copy of all stored credentials keyed by region then workspace.
func (s *Store) List() map[string]map[string]Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCredentials(s.creds)
}

// Reload re-reads the credential file. A deleted file empties the store;
// an unparseable file leaves the in-memory state untouched.
func (s *Store) Reload() error {
	creds, err := readFile(s.opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		creds = make(map[string]map[string]Credential)
	} else if err != nil {
		logging.Warn("Credentials", "Keeping current credentials, reload of %s failed: %v", s.opts.Path, err)
		return err
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	logging.Debug("Credentials", "Reloaded %d credential(s) from %s", countCredentials(creds), s.opts.Path)
	return nil
}

// RegionStatus summarises the workspaces stored for one region.
type RegionStatus struct {
	Region     string   `json:"region"`
	Workspaces []string `json:"workspaces"`
	Count      int      `json:"count"`
}

// Status is the authentication overview exposed as a resource.
type Status struct {
	Authenticated bool           `json:"authenticated"`
	TotalTokens   int            `json:"total_tokens"`
	Regions       []RegionStatus `json:"regions"`
	ConfigDir     string         `json:"config_dir"`
	TokenFile     string         `json:"token_file"`
	IsDevMode     bool           `json:"is_dev_mode"`
}

// Status reports which (region, workspace) pairs hold credentials.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Regions:   []RegionStatus{},
		ConfigDir: filepath.Dir(s.opts.Path),
		TokenFile: s.opts.Path,
		IsDevMode: s.opts.DevMode,
	}

	regions := make([]string, 0, len(s.creds))
	for r := range s.creds {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	for _, r := range regions {
		ws := make([]string, 0, len(s.creds[r]))
		for w := range s.creds[r] {
			ws = append(ws, w)
		}
		sort.Strings(ws)
		st.Regions = append(st.Regions, RegionStatus{Region: r, Workspaces: ws, Count: len(ws)})
		st.TotalTokens += len(ws)
	}
	st.Authenticated = st.TotalTokens > 0
	return st
}

// Location describes one candidate credential file.
type Location struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Current bool   `json:"current"`
}

// ConfigInfo describes how the credential location was chosen.
type ConfigInfo struct {
	CurrentConfigDir string     `json:"current_config_dir"`
	TokenFile        string     `json:"token_file"`
	IsDevMode        bool       `json:"is_dev_mode"`
	AvailableConfigs []Location `json:"available_configs"`
	EnvVarDevMode    string     `json:"env_var_dev_mode"`
}

// ConfigInfo lists the candidate credential files and which one is in use.
func (s *Store) ConfigInfo() ConfigInfo {
	info := ConfigInfo{
		CurrentConfigDir: filepath.Dir(s.opts.Path),
		TokenFile:        s.opts.Path,
		IsDevMode:        s.opts.DevMode,
		EnvVarDevMode:    s.opts.DevModeEnv,
	}

	seen := map[string]bool{}
	for _, p := range append([]string{s.opts.Path}, s.opts.Fallbacks...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		_, err := os.Stat(p)
		info.AvailableConfigs = append(info.AvailableConfigs, Location{
			Path:    p,
			Exists:  err == nil,
			Current: p == s.opts.Path,
		})
	}
	return info
}

// writeLocked rewrites the whole file atomically. Caller holds s.mu.
func (s *Store) writeLocked() error {
	dir := filepath.Dir(s.opts.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict credential file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.opts.Path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

func readFile(path string) (map[string]map[string]Credential, error) {
	// #nosec G304 -- path comes from configuration, not tool input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	creds := make(map[string]map[string]Credential)
	if len(data) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if creds == nil {
		creds = make(map[string]map[string]Credential)
	}

	// Drop empty buckets and fill region/workspace from the map keys.
	for r, bucket := range creds {
		if len(bucket) == 0 {
			delete(creds, r)
			continue
		}
		for w, c := range bucket {
			c.Region, c.Workspace = r, w
			bucket[w] = c
		}
	}
	return creds, nil
}

func cloneCredentials(in map[string]map[string]Credential) map[string]map[string]Credential {
	out := make(map[string]map[string]Credential, len(in))
	for r, bucket := range in {
		b := make(map[string]Credential, len(bucket))
		for w, c := range bucket {
			b[w] = c
		}
		out[r] = b
	}
	return out
}

func countCredentials(in map[string]map[string]Credential) int {
	n := 0
	for _, bucket := range in {
		n += len(bucket)
	}
	return n
}
