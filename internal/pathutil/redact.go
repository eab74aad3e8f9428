// Package pathutil provides path helpers for log and error messages.
package pathutil

import "path/filepath"

// Redact reduces a full path to .../<parent>/<basename> for messages that may
// end up in shared logs. For example, "/home/user/.swarmlod/audit.jsonl"
// becomes ".../.swarmlod/audit.jsonl".
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}
