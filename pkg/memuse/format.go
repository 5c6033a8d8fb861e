package memuse

import "fmt"

// FormatKB renders a KB count with a unit suited to its magnitude.
func FormatKB(kb uint64) string {
	switch {
	case kb >= 1024*1024:
		return fmt.Sprintf("%.2f GB", float64(kb)/(1024.0*1024.0))
	case kb >= 1024:
		return fmt.Sprintf("%.1f MB", float64(kb)/1024.0)
	default:
		return fmt.Sprintf("%d KB", kb)
	}
}

// FormatMB renders a KB count in megabytes.
func FormatMB(kb uint64) string {
	return fmt.Sprintf("%.1f MB", float64(kb)/1024.0)
}
