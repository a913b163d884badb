package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one backup file on disk.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Positions int       `json:"positions"`
	Edges     int       `json:"edges"`
	Walkers   int       `json:"walkers"`
	// Err is set when the header could not be read.
	Err string `json:"error,omitempty"`
}

// RetentionPolicy decides which backups to keep. Input is newest first.
type RetentionPolicy interface {
	Apply(backups []Info) (keep []Info)
}

// CountPolicy keeps the N most recent backups.
type CountPolicy struct {
	MaxCount int
}

func (p *CountPolicy) Apply(backups []Info) []Info {
	if len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps backups younger than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (p *AgePolicy) Apply(backups []Info) []Info {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, b := range backups {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// SizePolicy keeps the newest backups whose total size fits MaxTotalBytes.
// The newest backup is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

func (p *SizePolicy) Apply(backups []Info) []Info {
	var keep []Info
	var total int64
	for _, b := range backups {
		if total+b.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, b)
		total += b.Size
	}
	return keep
}

// CompositePolicy keeps a backup if any sub-policy keeps it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

func (p *CompositePolicy) Apply(backups []Info) []Info {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, b := range policy.Apply(backups) {
			kept[b.Path] = true
		}
	}

	var result []Info
	for _, b := range backups {
		if kept[b.Path] {
			result = append(result, b)
		}
	}
	return result
}

// NewPolicy combines the non-zero limits into one policy. With no limits
// it returns nil and nothing is pruned.
func NewPolicy(maxCount int, maxAge time.Duration, maxTotalBytes int64) RetentionPolicy {
	var policies []RetentionPolicy
	if maxCount > 0 {
		policies = append(policies, &CountPolicy{MaxCount: maxCount})
	}
	if maxAge > 0 {
		policies = append(policies, &AgePolicy{MaxAge: maxAge})
	}
	if maxTotalBytes > 0 {
		policies = append(policies, &SizePolicy{MaxTotalBytes: maxTotalBytes})
	}
	switch len(policies) {
	case 0:
		return nil
	case 1:
		return policies[0]
	default:
		return &CompositePolicy{Policies: policies}
	}
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// ListBackups scans dir for backup files, newest first. A missing
// directory has no backups.
func ListBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.Positions = h.Positions
			info.Edges = h.Edges
			info.Walkers = h.Walkers
		} else {
			info.Err = err.Error()
		}
		backups = append(backups, info)
	}

	// Timestamp is embedded in the name.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// ApplyRetention deletes the backups in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	if policy == nil {
		return nil, nil
	}
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, b := range policy.Apply(backups) {
		keepSet[b.Path] = true
	}

	for _, b := range backups {
		if keepSet[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration accepts Go durations plus day ("30d") and week ("2w") suffixes.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	units := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}
	unit, ok := units[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	return time.Duration(n) * unit, nil
}

// ParseSize parses sizes like "100MB", "1GB" or "500KB" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Longest suffix first so "MB" is not read as "B".
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid size: %q", s)
			}
			return n * u.mult, nil
		}
	}
	return 0, fmt.Errorf("invalid size: %q (expected suffix: B, KB, MB, GB)", s)
}
